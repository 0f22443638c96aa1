package store

import (
	"context"

	"github.com/linkmind-dev/linkmind/internal/models"
)

// CreateDeviceAuth records a new in-flight device-code enrollment.
func (c *Client) CreateDeviceAuth(ctx context.Context, req *models.DeviceAuthRequest) error {
	_, err := c.pool.Exec(ctx,
		`INSERT INTO device_auth_requests (device_code, user_code, status, expires_at)
		 VALUES ($1, $2, $3, $4)`,
		req.DeviceCode, req.UserCode, req.Status, req.ExpiresAt,
	)
	if err != nil {
		return wrapWriteErr(err)
	}
	return nil
}

// GetDeviceAuth fetches a device-code enrollment by its device code, the
// value a probe polls with.
func (c *Client) GetDeviceAuth(ctx context.Context, deviceCode string) (*models.DeviceAuthRequest, error) {
	var req models.DeviceAuthRequest
	err := c.pool.QueryRow(ctx,
		`SELECT device_code, user_code, status, authorized_by, expires_at, created_at
		 FROM device_auth_requests WHERE device_code = $1`, deviceCode,
	).Scan(&req.DeviceCode, &req.UserCode, &req.Status, &req.AuthorizedBy, &req.ExpiresAt, &req.CreatedAt)
	if err != nil {
		return nil, wrapReadErr(err)
	}
	return &req, nil
}

// GetDeviceAuthByUserCode fetches a device-code enrollment by its short
// user-facing code, entered on the verification page.
func (c *Client) GetDeviceAuthByUserCode(ctx context.Context, userCode string) (*models.DeviceAuthRequest, error) {
	var req models.DeviceAuthRequest
	err := c.pool.QueryRow(ctx,
		`SELECT device_code, user_code, status, authorized_by, expires_at, created_at
		 FROM device_auth_requests WHERE user_code = $1`, userCode,
	).Scan(&req.DeviceCode, &req.UserCode, &req.Status, &req.AuthorizedBy, &req.ExpiresAt, &req.CreatedAt)
	if err != nil {
		return nil, wrapReadErr(err)
	}
	return &req, nil
}

// AuthorizeDeviceAuth marks a pending device-code enrollment authorized by
// userID. Only succeeds if the request is still pending and unexpired.
func (c *Client) AuthorizeDeviceAuth(ctx context.Context, userCode string, userID int64) error {
	tag, err := c.pool.Exec(ctx,
		`UPDATE device_auth_requests
		 SET status = $1, authorized_by = $2
		 WHERE user_code = $3 AND status = $4 AND expires_at > now()`,
		models.DeviceAuthAuthorized, userID, userCode, models.DeviceAuthPending,
	)
	if err != nil {
		return wrapWriteErr(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteDeviceAuth removes a device-code enrollment once it has been
// claimed by PollDeviceToken, so a probe cannot mint a second bearer token
// from the same authorized code.
func (c *Client) DeleteDeviceAuth(ctx context.Context, deviceCode string) error {
	_, err := c.pool.Exec(ctx, `DELETE FROM device_auth_requests WHERE device_code = $1`, deviceCode)
	if err != nil {
		return wrapWriteErr(err)
	}
	return nil
}

// ExpireStaleDeviceAuths marks every pending request past its expiry as
// expired, so a poller gets a definitive terminal state instead of pending
// forever.
func (c *Client) ExpireStaleDeviceAuths(ctx context.Context) error {
	_, err := c.pool.Exec(ctx,
		`UPDATE device_auth_requests SET status = $1
		 WHERE status = $2 AND expires_at <= now()`,
		models.DeviceAuthExpired, models.DeviceAuthPending,
	)
	if err != nil {
		return wrapWriteErr(err)
	}
	return nil
}
