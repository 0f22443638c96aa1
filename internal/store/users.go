package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/linkmind-dev/linkmind/internal/models"
)

// CreateUser inserts a new user in pending status and returns it with its
// assigned id.
func (c *Client) CreateUser(ctx context.Context, externalChatID, displayName string, inviteRef *string) (*models.User, error) {
	var u models.User
	err := c.pool.QueryRow(ctx,
		`INSERT INTO users (external_chat_id, display_name, invite_ref)
		 VALUES ($1, $2, $3)
		 RETURNING id, external_chat_id, display_name, status, invite_ref, created_at`,
		externalChatID, displayName, inviteRef,
	).Scan(&u.ID, &u.ExternalChatID, &u.DisplayName, &u.Status, &u.InviteRef, &u.CreatedAt)
	if err != nil {
		return nil, wrapWriteErr(err)
	}
	return &u, nil
}

// GetUser fetches a user by id.
func (c *Client) GetUser(ctx context.Context, id int64) (*models.User, error) {
	var u models.User
	err := c.pool.QueryRow(ctx,
		`SELECT id, external_chat_id, display_name, status, invite_ref, created_at
		 FROM users WHERE id = $1`, id,
	).Scan(&u.ID, &u.ExternalChatID, &u.DisplayName, &u.Status, &u.InviteRef, &u.CreatedAt)
	if err != nil {
		return nil, wrapReadErr(err)
	}
	return &u, nil
}

// GetUserByExternalChatID fetches a user by its external chat identity.
func (c *Client) GetUserByExternalChatID(ctx context.Context, externalChatID string) (*models.User, error) {
	var u models.User
	err := c.pool.QueryRow(ctx,
		`SELECT id, external_chat_id, display_name, status, invite_ref, created_at
		 FROM users WHERE external_chat_id = $1`, externalChatID,
	).Scan(&u.ID, &u.ExternalChatID, &u.DisplayName, &u.Status, &u.InviteRef, &u.CreatedAt)
	if err != nil {
		return nil, wrapReadErr(err)
	}
	return &u, nil
}

// ActivateUser flips a pending user to active.
func (c *Client) ActivateUser(ctx context.Context, id int64) error {
	tag, err := c.pool.Exec(ctx,
		`UPDATE users SET status = $2 WHERE id = $1`, id, models.UserStatusActive)
	if err != nil {
		return wrapWriteErr(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// wrapReadErr maps pgx.ErrNoRows to the package-level ErrNotFound sentinel so
// callers never need to import pgx to check for a miss.
func wrapReadErr(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return fmt.Errorf("store: %w", err)
}

// wrapWriteErr maps unique/check constraint violations to
// ErrConstraintViolation.
func wrapWriteErr(err error) error {
	if err == nil {
		return nil
	}
	if isConstraintViolation(err) {
		return fmt.Errorf("%w: %v", ErrConstraintViolation, err)
	}
	return fmt.Errorf("store: %w", err)
}
