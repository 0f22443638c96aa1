package store

import (
	"context"
	"fmt"
	"math"

	"github.com/jackc/pgx/v5"

	"github.com/linkmind-dev/linkmind/internal/models"
)

// VectorSearch returns the topK links (scoped to userID, excluding
// excludeID) closest to query by cosine similarity over summary_vector.
// score = 1/(1+distance) rounded to two decimals, so it falls in (0,1] and
// higher is more similar; results are ordered by ascending distance (i.e.
// descending score).
func (c *Client) VectorSearch(ctx context.Context, userID, excludeID int64, query []float32, k int) ([]models.RelatedLink, error) {
	lit := vectorLiteral(query)
	rows, err := c.pool.Query(ctx,
		`SELECT id, (summary_vector <=> $2::vector) AS distance
		 FROM links
		 WHERE user_id = $1 AND id != $4 AND summary_vector IS NOT NULL
		 ORDER BY summary_vector <=> $2::vector
		 LIMIT $3`,
		userID, lit, k, excludeID,
	)
	if err != nil {
		return nil, wrapReadErr(err)
	}
	return collectDistances(rows)
}

// BM25Search returns linkIDs (scoped to userID) ranked by Postgres's ts_rank
// over the title/summary/markdown tsvector — this store's stand-in for a
// full BM25 ranker. No BM25 library appeared anywhere in the dependency
// pack this module was grounded on, so relevance ranking leans on
// Postgres's own text-search operator instead of a hand-rolled scorer.
func (c *Client) BM25Search(ctx context.Context, userID int64, query string, k int) ([]int64, error) {
	rows, err := c.pool.Query(ctx,
		`SELECT id FROM links
		 WHERE user_id = $1
		   AND to_tsvector('english', coalesce(title,'') || ' ' || coalesce(summary,'') || ' ' || coalesce(markdown,''))
		       @@ plainto_tsquery('english', $2)
		 ORDER BY ts_rank(
		     to_tsvector('english', coalesce(title,'') || ' ' || coalesce(summary,'') || ' ' || coalesce(markdown,'')),
		     plainto_tsquery('english', $2)
		 ) DESC
		 LIMIT $3`,
		userID, query, k,
	)
	if err != nil {
		return nil, wrapReadErr(err)
	}
	defer rows.Close()

	ids := make([]int64, 0)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("store: scanning BM25 result: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: %w", err)
	}
	return ids, nil
}

func collectDistances(rows pgx.Rows) ([]models.RelatedLink, error) {
	defer rows.Close()
	out := make([]models.RelatedLink, 0)
	for rows.Next() {
		var id int64
		var distance float64
		if err := rows.Scan(&id, &distance); err != nil {
			return nil, fmt.Errorf("store: scanning search result: %w", err)
		}
		score := math.Round(1.0/(1.0+distance)*100) / 100
		out = append(out, models.RelatedLink{LinkID: id, Score: score})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: %w", err)
	}
	return out, nil
}
