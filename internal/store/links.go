package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/linkmind-dev/linkmind/internal/models"
)

// UpsertLink is idempotent by (userID, url): a first submission inserts a
// new pending link; a resubmission of a URL the user already has resets its
// status to pending and clears any stored error, returning wasExisting=true
// so the caller can decide whether to re-spawn the pipeline.
func (c *Client) UpsertLink(ctx context.Context, userID int64, url string) (id int64, wasExisting bool, err error) {
	err = c.pool.QueryRow(ctx,
		`INSERT INTO links (user_id, url, status)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (user_id, url) DO UPDATE
		   SET status = $3, error_message = NULL, updated_at = now()
		 RETURNING id, (xmax <> 0)`,
		userID, url, models.LinkStatusPending,
	).Scan(&id, &wasExisting)
	if err != nil {
		return 0, false, wrapWriteErr(err)
	}
	return id, wasExisting, nil
}

// GetLink fetches a link by id, scoped to userID so one user can never read
// another's link by guessing an id.
func (c *Client) GetLink(ctx context.Context, userID, id int64) (*models.Link, error) {
	var l models.Link
	err := c.pool.QueryRow(ctx,
		`SELECT id, user_id, url, title, description, image, site_name, type,
		        markdown, summary, insight, tags, images, status, error_message,
		        created_at, updated_at
		 FROM links WHERE id = $1 AND user_id = $2`,
		id, userID,
	).Scan(scanLinkArgs(&l)...)
	if err != nil {
		return nil, wrapReadErr(err)
	}
	return &l, nil
}

// GetLinkByURL fetches a link by its exact URL within a user's scope. Used
// by CreateLink callers that want to short-circuit on an existing submission
// instead of relying on the constraint error.
func (c *Client) GetLinkByURL(ctx context.Context, userID int64, url string) (*models.Link, error) {
	var l models.Link
	err := c.pool.QueryRow(ctx,
		`SELECT id, user_id, url, title, description, image, site_name, type,
		        markdown, summary, insight, tags, images, status, error_message,
		        created_at, updated_at
		 FROM links WHERE user_id = $1 AND url = $2`,
		userID, url,
	).Scan(scanLinkArgs(&l)...)
	if err != nil {
		return nil, wrapReadErr(err)
	}
	return &l, nil
}

// UpdateLinkFields applies a partial update to a link. Nil fields are left
// untouched; ClearError explicitly nulls error_message even though Error is
// nil (used on retry to drop a stale error before reprocessing).
func (c *Client) UpdateLinkFields(ctx context.Context, id int64, fields models.LinkFields) error {
	set := []string{"updated_at = now()"}
	args := []any{id}
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if fields.Title != nil {
		set = append(set, "title = "+arg(*fields.Title))
	}
	if fields.Description != nil {
		set = append(set, "description = "+arg(*fields.Description))
	}
	if fields.Image != nil {
		set = append(set, "image = "+arg(*fields.Image))
	}
	if fields.SiteName != nil {
		set = append(set, "site_name = "+arg(*fields.SiteName))
	}
	if fields.Type != nil {
		set = append(set, "type = "+arg(*fields.Type))
	}
	if fields.Markdown != nil {
		set = append(set, "markdown = "+arg(*fields.Markdown))
	}
	if fields.Summary != nil {
		set = append(set, "summary = "+arg(*fields.Summary))
	}
	if fields.Insight != nil {
		set = append(set, "insight = "+arg(*fields.Insight))
	}
	if fields.Tags != nil {
		b, err := json.Marshal(*fields.Tags)
		if err != nil {
			return fmt.Errorf("marshaling tags: %w", err)
		}
		set = append(set, "tags = "+arg(b))
	}
	if fields.Images != nil {
		b, err := json.Marshal(*fields.Images)
		if err != nil {
			return fmt.Errorf("marshaling images: %w", err)
		}
		set = append(set, "images = "+arg(b))
	}
	if fields.Vector != nil {
		set = append(set, "summary_vector = "+arg(vectorLiteral(*fields.Vector))+"::vector")
	}
	if fields.Status != nil {
		set = append(set, "status = "+arg(*fields.Status))
	}
	if fields.Error != nil {
		set = append(set, "error_message = "+arg(*fields.Error))
	} else if fields.ClearError {
		set = append(set, "error_message = NULL")
	}

	query := "UPDATE links SET "
	for i, s := range set {
		if i > 0 {
			query += ", "
		}
		query += s
	}
	query += " WHERE id = $1"

	tag, err := c.pool.Exec(ctx, query, args...)
	if err != nil {
		return wrapWriteErr(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListRecent returns a user's links ordered by creation time, most recent
// first, for the default feed view.
func (c *Client) ListRecent(ctx context.Context, userID int64, limit, offset int) ([]models.LinkListItem, error) {
	rows, err := c.pool.Query(ctx,
		`SELECT id, url, title, status, created_at
		 FROM links WHERE user_id = $1
		 ORDER BY created_at DESC
		 LIMIT $2 OFFSET $3`,
		userID, limit, offset,
	)
	if err != nil {
		return nil, wrapReadErr(err)
	}
	return collectLinkListItems(rows)
}

// ListByStatus returns a user's links in a given status, most recent first.
// Used for both the "analyzed" browse view and the "error" retry-all view.
func (c *Client) ListByStatus(ctx context.Context, userID int64, status models.LinkStatus, limit, offset int) ([]models.LinkListItem, error) {
	rows, err := c.pool.Query(ctx,
		`SELECT id, url, title, status, created_at
		 FROM links WHERE user_id = $1 AND status = $2
		 ORDER BY created_at DESC
		 LIMIT $3 OFFSET $4`,
		userID, status, limit, offset,
	)
	if err != nil {
		return nil, wrapReadErr(err)
	}
	return collectLinkListItems(rows)
}

// DeleteLink removes a link and cascades to its relations and probe events.
func (c *Client) DeleteLink(ctx context.Context, userID, id int64) error {
	tag, err := c.pool.Exec(ctx, `DELETE FROM links WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return wrapWriteErr(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func collectLinkListItems(rows pgx.Rows) ([]models.LinkListItem, error) {
	defer rows.Close()
	items := make([]models.LinkListItem, 0)
	for rows.Next() {
		var it models.LinkListItem
		if err := rows.Scan(&it.ID, &it.URL, &it.Title, &it.Status, &it.CreatedAt); err != nil {
			return nil, fmt.Errorf("store: scanning link list item: %w", err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: %w", err)
	}
	return items, nil
}

// scanLinkArgs returns the destination pointers matching the column order
// used by every full-row Link select above, keeping them in lockstep.
func scanLinkArgs(l *models.Link) []any {
	return []any{
		&l.ID, &l.UserID, &l.URL, &l.Title, &l.Description, &l.Image, &l.SiteName, &l.Type,
		&l.Markdown, &l.Summary, &l.Insight, &l.Tags, &l.Images, &l.Status, &l.Error,
		&l.CreatedAt, &l.UpdatedAt,
	}
}
