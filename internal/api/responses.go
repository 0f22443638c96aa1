package api

import "github.com/linkmind-dev/linkmind/internal/models"

// taskQueuedStatus is the literal status wire value spec.md §6 names for a
// just-spawned task — distinct from models.LinkStatus, which describes the
// link's own lifecycle.
const taskQueuedStatus = "queued"

// submitLinkResponse is returned by POST /api/links.
type submitLinkResponse struct {
	TaskID string `json:"taskId"`
	URL    string `json:"url"`
	Status string `json:"status"`
}

// linkDetailResponse is returned by GET /api/links/:id: the link itself
// plus its parsed tag and relation lists.
type linkDetailResponse struct {
	*models.Link
	Related []models.RelatedLink `json:"related"`
}

// deleteLinkResponse is returned by DELETE /api/links/:id.
type deleteLinkResponse struct {
	Message             string `json:"message"`
	LinkID              int64  `json:"linkId"`
	URL                 string `json:"url"`
	RelatedLinksUpdated int64  `json:"relatedLinksUpdated"`
}

// retryAllResponse is returned by POST /api/retry.
type retryAllResponse struct {
	Message string  `json:"message"`
	IDs     []int64 `json:"ids"`
}

// retryOneResponse is returned by POST /api/retry/:id.
type retryOneResponse struct {
	TaskID string `json:"taskId"`
	LinkID int64  `json:"linkId"`
	Status string `json:"status"`
}

// probeStatusResponse is returned by GET /api/probe/status.
type probeStatusResponse struct {
	Devices            []models.ProbeDevice `json:"devices"`
	PendingEventsCount int                  `json:"pending_events_count"`
}

// healthResponse is returned by GET /health.
type healthResponse struct {
	Status string       `json:"status"`
	Pool   *poolSummary `json:"pool,omitempty"`
}

type poolSummary struct {
	IsHealthy      bool `json:"is_healthy"`
	StoreReachable bool `json:"store_reachable"`
	ActiveWorkers  int  `json:"active_workers"`
	ActiveTasks    int  `json:"active_tasks"`
}
