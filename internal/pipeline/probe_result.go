package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/linkmind-dev/linkmind/internal/models"
	"github.com/linkmind-dev/linkmind/internal/runtime"
)

// ErrForbiddenProbeEvent is returned when a probe result references an event
// owned by a different user than the one submitting it.
var ErrForbiddenProbeEvent = errors.New("pipeline: probe event belongs to a different user")

// ProbeResultHandler implements the spec.md §4.3.5 entry point the Probe
// Bridge calls once a probe finishes a scrape_request.
type ProbeResultHandler struct {
	Store Store
	Tasks runtime.TaskStore
	Queue string
}

// NewProbeResultHandler builds a ProbeResultHandler.
func NewProbeResultHandler(store Store, tasks runtime.TaskStore, queue string) *ProbeResultHandler {
	return &ProbeResultHandler{Store: store, Tasks: tasks, Queue: queue}
}

// HandleProbeResult validates the event and link, then spawns a brand new
// process-link task carrying the probe's payload; the task that originally
// suspended on this event is already terminated and is never resumed.
func (h *ProbeResultHandler) HandleProbeResult(ctx context.Context, userID int64, eventID string, data models.ScrapeData) (taskID string, err error) {
	event, err := h.Store.GetProbeEvent(ctx, eventID)
	if err != nil {
		return "", fmt.Errorf("pipeline: fetching probe event %s: %w", eventID, err)
	}
	if event.UserID != userID {
		return "", ErrForbiddenProbeEvent
	}
	if _, err := h.Store.GetLink(ctx, userID, event.LinkID); err != nil {
		return "", fmt.Errorf("pipeline: fetching link %d for probe result: %w", event.LinkID, err)
	}

	params := ProcessLinkParams{
		UserID: userID, URL: event.URL, LinkID: event.LinkID, ScrapeData: &data,
	}
	return runtime.Spawn(ctx, h.Tasks, h.Queue, KindProcessLink, params, ProcessLinkRetryOptions())
}
