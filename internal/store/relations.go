package store

import (
	"context"
	"fmt"

	"github.com/linkmind-dev/linkmind/internal/models"
)

// maxRelations caps the number of related links returned by GetRelations.
const maxRelations = 5

// SaveRelations replaces linkID's outgoing relation edges with newRelations
// in a single transaction: every existing edge touching linkID is removed,
// then each entry in newRelations is inserted as a normalized
// (link_a < link_b) pair. Called after the related step recomputes
// neighbors for a link. newRelations is assumed already threshold-filtered
// and truncated by the caller.
func (c *Client) SaveRelations(ctx context.Context, linkID int64, newRelations []models.RelatedLink) error {
	tx, err := c.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("store: beginning relations tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`DELETE FROM link_relations WHERE link_a = $1 OR link_b = $1`, linkID,
	); err != nil {
		return wrapWriteErr(err)
	}

	for _, rel := range newRelations {
		a, b := linkID, rel.LinkID
		if a > b {
			a, b = b, a
		}
		if a == b {
			continue
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO link_relations (link_a, link_b, score)
			 VALUES ($1, $2, $3)
			 ON CONFLICT (link_a, link_b) DO UPDATE SET score = EXCLUDED.score`,
			a, b, rel.Score,
		); err != nil {
			return wrapWriteErr(err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("store: committing relations tx: %w", err)
	}
	return nil
}

// GetRelations returns the union of outgoing (link_a = linkID) and incoming
// (link_b = linkID) edges, deduplicated by the other endpoint keeping the
// maximum score, sorted by score descending (ties broken by the lower
// linkId first), capped at maxRelations.
func (c *Client) GetRelations(ctx context.Context, linkID int64) ([]models.RelatedLink, error) {
	rows, err := c.pool.Query(ctx,
		`SELECT other, max(score) AS score FROM (
		     SELECT link_b AS other, score FROM link_relations WHERE link_a = $1
		     UNION ALL
		     SELECT link_a AS other, score FROM link_relations WHERE link_b = $1
		 ) edges
		 GROUP BY other
		 ORDER BY score DESC, other ASC
		 LIMIT $2`,
		linkID, maxRelations,
	)
	if err != nil {
		return nil, wrapReadErr(err)
	}
	defer rows.Close()

	related := make([]models.RelatedLink, 0, maxRelations)
	for rows.Next() {
		var r models.RelatedLink
		if err := rows.Scan(&r.LinkID, &r.Score); err != nil {
			return nil, fmt.Errorf("store: scanning related link: %w", err)
		}
		related = append(related, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: %w", err)
	}
	return related, nil
}

// RemoveLinkFromRelations drops every edge touching linkID (the FK cascade
// on link deletion does this automatically; this exists for the case where
// a caller wants a best-effort scrub without deleting the link itself) and
// returns how many edges were removed, for audit purposes.
func (c *Client) RemoveLinkFromRelations(ctx context.Context, linkID int64) (int64, error) {
	tag, err := c.pool.Exec(ctx,
		`DELETE FROM link_relations WHERE link_a = $1 OR link_b = $1`, linkID)
	if err != nil {
		return 0, wrapWriteErr(err)
	}
	return tag.RowsAffected(), nil
}
