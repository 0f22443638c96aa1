// Package related holds the scoring constants and selection rule the
// pipeline's related step applies to vector-search candidates. The Store
// Gateway does not import it.
package related

import "github.com/linkmind-dev/linkmind/internal/models"

// Threshold is the minimum similarity score (in 1/(1+distance) space) a
// candidate must meet to be kept as a related link.
const Threshold = 0.65

// MaxRelations is the maximum number of related links retained per link.
const MaxRelations = 5

// Select filters candidates to those at or above Threshold, sorts by score
// descending with ties broken by lower linkId first, and truncates to
// MaxRelations.
func Select(candidates []models.RelatedLink) []models.RelatedLink {
	kept := make([]models.RelatedLink, 0, len(candidates))
	for _, c := range candidates {
		if c.Score >= Threshold {
			kept = append(kept, c)
		}
	}

	sortByScoreDesc(kept)

	if len(kept) > MaxRelations {
		kept = kept[:MaxRelations]
	}
	return kept
}

func sortByScoreDesc(links []models.RelatedLink) {
	for i := 1; i < len(links); i++ {
		for j := i; j > 0 && less(links[j], links[j-1]); j-- {
			links[j], links[j-1] = links[j-1], links[j]
		}
	}
}

// less reports whether a should sort before b: higher score first, lower
// linkId breaks ties.
func less(a, b models.RelatedLink) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	return a.LinkID < b.LinkID
}
