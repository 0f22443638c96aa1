package related

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/linkmind-dev/linkmind/internal/models"
)

func TestSelect_FiltersThreshold(t *testing.T) {
	in := []models.RelatedLink{
		{LinkID: 1, Score: 0.9},
		{LinkID: 2, Score: 0.5},
		{LinkID: 3, Score: 0.65},
	}
	out := Select(in)
	assert.Equal(t, []models.RelatedLink{{LinkID: 1, Score: 0.9}, {LinkID: 3, Score: 0.65}}, out)
}

func TestSelect_CapsAtMaxRelations(t *testing.T) {
	in := make([]models.RelatedLink, 0, 8)
	for i := int64(1); i <= 8; i++ {
		in = append(in, models.RelatedLink{LinkID: i, Score: 0.7})
	}
	out := Select(in)
	assert.Len(t, out, MaxRelations)
}

func TestSelect_TieBreaksByLowerLinkID(t *testing.T) {
	in := []models.RelatedLink{
		{LinkID: 5, Score: 0.8},
		{LinkID: 2, Score: 0.8},
		{LinkID: 3, Score: 0.8},
	}
	out := Select(in)
	assert.Equal(t, []int64{2, 3, 5}, []int64{out[0].LinkID, out[1].LinkID, out[2].LinkID})
}
