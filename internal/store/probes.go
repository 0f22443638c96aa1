package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/linkmind-dev/linkmind/internal/models"
)

// CreateProbeEvent records a unit of scrape work dispatched to a user's
// probe device.
func (c *Client) CreateProbeEvent(ctx context.Context, ev *models.ProbeEvent) error {
	_, err := c.pool.Exec(ctx,
		`INSERT INTO probe_events (id, user_id, link_id, url, url_kind, status)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		ev.ID, ev.UserID, ev.LinkID, ev.URL, ev.URLKind, ev.Status,
	)
	if err != nil {
		return wrapWriteErr(err)
	}
	return nil
}

// GetProbeEvent fetches a probe event by id.
func (c *Client) GetProbeEvent(ctx context.Context, id string) (*models.ProbeEvent, error) {
	var ev models.ProbeEvent
	var resultJSON []byte
	err := c.pool.QueryRow(ctx,
		`SELECT id, user_id, link_id, url, url_kind, status, result, error_message,
		        created_at, sent_at, completed_at
		 FROM probe_events WHERE id = $1`, id,
	).Scan(&ev.ID, &ev.UserID, &ev.LinkID, &ev.URL, &ev.URLKind, &ev.Status, &resultJSON,
		&ev.Error, &ev.CreatedAt, &ev.SentAt, &ev.CompletedAt)
	if err != nil {
		return nil, wrapReadErr(err)
	}
	if len(resultJSON) > 0 {
		var data models.ScrapeData
		if err := json.Unmarshal(resultJSON, &data); err != nil {
			return nil, fmt.Errorf("store: unmarshaling probe result: %w", err)
		}
		ev.Result = &data
	}
	return &ev, nil
}

// SetProbeEventStatus transitions a probe event to status, optionally
// attaching a successful scrape result or an error message. Only one of
// result/errMsg is expected to be non-nil/non-empty for a given call; sent
// carries neither, completed carries result, error carries errMsg.
func (c *Client) SetProbeEventStatus(ctx context.Context, id string, status models.ProbeEventStatus, result *models.ScrapeData, errMsg *string) error {
	var resultJSON []byte
	if result != nil {
		b, err := json.Marshal(result)
		if err != nil {
			return fmt.Errorf("store: marshaling probe result: %w", err)
		}
		resultJSON = b
	}

	var sentAtClause, completedAtClause string
	switch status {
	case models.ProbeEventSent:
		sentAtClause = ", sent_at = now()"
	case models.ProbeEventCompleted, models.ProbeEventError:
		completedAtClause = ", completed_at = now()"
	}

	tag, err := c.pool.Exec(ctx,
		`UPDATE probe_events SET status = $2, result = $3::jsonb, error_message = $4`+sentAtClause+completedAtClause+
			` WHERE id = $1`,
		id, status, resultJSON, errMsg,
	)
	if err != nil {
		return wrapWriteErr(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListPendingProbeEvents returns a user's not-yet-sent probe events, oldest
// first, for delivery once a probe subscribes.
func (c *Client) ListPendingProbeEvents(ctx context.Context, userID int64) ([]models.ProbeEvent, error) {
	rows, err := c.pool.Query(ctx,
		`SELECT id, user_id, link_id, url, url_kind, status, error_message, created_at, sent_at, completed_at
		 FROM probe_events WHERE user_id = $1 AND status = $2
		 ORDER BY created_at ASC`,
		userID, models.ProbeEventPending,
	)
	if err != nil {
		return nil, wrapReadErr(err)
	}
	defer rows.Close()

	events := make([]models.ProbeEvent, 0)
	for rows.Next() {
		var ev models.ProbeEvent
		if err := rows.Scan(&ev.ID, &ev.UserID, &ev.LinkID, &ev.URL, &ev.URLKind, &ev.Status,
			&ev.Error, &ev.CreatedAt, &ev.SentAt, &ev.CompletedAt); err != nil {
			return nil, fmt.Errorf("store: scanning probe event: %w", err)
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: %w", err)
	}
	return events, nil
}

// SweepExpiredProbeEvents fails every probe event older than the given
// deadline that is still pending or sent, and returns their ids. The
// affected links are not touched and stay in waiting_probe.
func (c *Client) SweepExpiredProbeEvents(ctx context.Context, olderThanSeconds int) ([]string, error) {
	rows, err := c.pool.Query(ctx,
		`UPDATE probe_events
		 SET status = $1, error_message = 'probe did not respond before expiry', completed_at = now()
		 WHERE status IN ($2, $3) AND created_at < now() - ($4 || ' seconds')::interval
		 RETURNING id`,
		models.ProbeEventError, models.ProbeEventPending, models.ProbeEventSent, olderThanSeconds,
	)
	if err != nil {
		return nil, wrapWriteErr(err)
	}
	defer rows.Close()

	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("store: scanning expired probe event id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: %w", err)
	}
	return ids, nil
}

// CreateProbeDevice registers a new probe device for a user with a bearer
// token minted by the caller (the Probe Bridge owns token generation).
func (c *Client) CreateProbeDevice(ctx context.Context, d *models.ProbeDevice) error {
	_, err := c.pool.Exec(ctx,
		`INSERT INTO probe_devices (id, user_id, bearer_token, display_name)
		 VALUES ($1, $2, $3, $4)`,
		d.ID, d.UserID, d.BearerToken, d.DisplayName,
	)
	if err != nil {
		return wrapWriteErr(err)
	}
	return nil
}

// GetProbeDeviceByToken resolves a bearer token to its owning device, used
// by the Admission API's probe-auth middleware on every probe request.
func (c *Client) GetProbeDeviceByToken(ctx context.Context, token string) (*models.ProbeDevice, error) {
	var d models.ProbeDevice
	err := c.pool.QueryRow(ctx,
		`SELECT id, user_id, bearer_token, display_name, last_seen_at, created_at
		 FROM probe_devices WHERE bearer_token = $1`, token,
	).Scan(&d.ID, &d.UserID, &d.BearerToken, &d.DisplayName, &d.LastSeenAt, &d.CreatedAt)
	if err != nil {
		return nil, wrapReadErr(err)
	}
	return &d, nil
}

// ListProbeDevices returns all probe devices registered to a user.
func (c *Client) ListProbeDevices(ctx context.Context, userID int64) ([]models.ProbeDevice, error) {
	rows, err := c.pool.Query(ctx,
		`SELECT id, user_id, bearer_token, display_name, last_seen_at, created_at
		 FROM probe_devices WHERE user_id = $1 ORDER BY created_at DESC`, userID,
	)
	if err != nil {
		return nil, wrapReadErr(err)
	}
	defer rows.Close()

	devices := make([]models.ProbeDevice, 0)
	for rows.Next() {
		var d models.ProbeDevice
		if err := rows.Scan(&d.ID, &d.UserID, &d.BearerToken, &d.DisplayName, &d.LastSeenAt, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("store: scanning probe device: %w", err)
		}
		devices = append(devices, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: %w", err)
	}
	return devices, nil
}

// TouchProbeDevice updates a device's last_seen_at, called on every
// subscribe and heartbeat.
func (c *Client) TouchProbeDevice(ctx context.Context, id string) error {
	_, err := c.pool.Exec(ctx, `UPDATE probe_devices SET last_seen_at = now() WHERE id = $1`, id)
	if err != nil {
		return wrapWriteErr(err)
	}
	return nil
}

// RevokeProbeDevice deletes a probe device, immediately invalidating its
// bearer token. Supplements the spec's device lifecycle with an explicit
// revocation path (the distilled spec only describes enrollment).
func (c *Client) RevokeProbeDevice(ctx context.Context, userID int64, id string) error {
	tag, err := c.pool.Exec(ctx,
		`DELETE FROM probe_devices WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return wrapWriteErr(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
