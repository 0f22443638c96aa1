// Package probebridge delivers scrape work to a user's probe agents over
// Server-Sent Events and runs the device-code enrollment flow probes use to
// obtain a bearer token. It mirrors the coordinator's original WebSocket
// connection-manager idiom — a per-user sink registry guarded by a mutex, a
// heartbeat timer per connection, catch-up replay of missed events — but
// adapted to SSE's simpler one-way push model: there is no client-driven
// subscribe-to-channel protocol, a connection's single stream carries every
// event for that user's probes.
package probebridge

import (
	"context"
	"time"

	"github.com/linkmind-dev/linkmind/internal/models"
)

// Event types written onto a probe's SSE stream.
const (
	EventScrapeRequest = "scrape_request"
	EventPing          = "ping"
)

// heartbeatInterval is how often a ping event is written to a connected
// sink, matching spec.md's 30-second heartbeat.
const heartbeatInterval = 30 * time.Second

// Sink is a single probe's outbound event stream. The manager serializes
// every Send call for a given sink itself (heartbeat ticks and scrape
// dispatch both write to the same sink from independent goroutines); an
// implementation still owns its own flush-after-write discipline but does
// not need its own locking.
type Sink interface {
	// Send writes one SSE frame: "event: <eventType>\ndata: <json>\n\n".
	Send(eventType string, data []byte) error
}

// ScrapeRequestPayload is the scrape_request event body delivered to a
// probe: enough for it to classify the URL and know which event id to
// report the result against.
type ScrapeRequestPayload struct {
	EventID   string         `json:"event_id"`
	URL       string         `json:"url"`
	URLType   models.URLKind `json:"url_type"`
	LinkID    int64          `json:"link_id"`
	CreatedAt time.Time      `json:"created_at"`
}

// ProbeResultRequest is the body a probe posts back once it has finished
// (or failed) a scrape_request.
type ProbeResultRequest struct {
	EventID string             `json:"event_id"`
	Success bool               `json:"success"`
	Data    *models.ScrapeData `json:"data,omitempty"`
	Error   string             `json:"error,omitempty"`
}

// Store is the subset of the Store Gateway the bridge depends on.
type Store interface {
	ListPendingProbeEvents(ctx context.Context, userID int64) ([]models.ProbeEvent, error)
	GetProbeEvent(ctx context.Context, id string) (*models.ProbeEvent, error)
	SetProbeEventStatus(ctx context.Context, id string, status models.ProbeEventStatus, result *models.ScrapeData, errMsg *string) error

	CreateDeviceAuth(ctx context.Context, req *models.DeviceAuthRequest) error
	GetDeviceAuth(ctx context.Context, deviceCode string) (*models.DeviceAuthRequest, error)
	GetDeviceAuthByUserCode(ctx context.Context, userCode string) (*models.DeviceAuthRequest, error)
	AuthorizeDeviceAuth(ctx context.Context, userCode string, userID int64) error
	DeleteDeviceAuth(ctx context.Context, deviceCode string) error

	CreateProbeDevice(ctx context.Context, d *models.ProbeDevice) error
	TouchProbeDevice(ctx context.Context, id string) error
}

// ProbeResultHandler is the spec.md §4.3.5 entry point a successful
// scrape_request result is handed to. Implemented by
// *pipeline.ProbeResultHandler; kept as an interface here so this package
// doesn't have to depend on the pipeline's task-spawning plumbing directly.
type ProbeResultHandler interface {
	HandleProbeResult(ctx context.Context, userID int64, eventID string, data models.ScrapeData) (taskID string, err error)
}
