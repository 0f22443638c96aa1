package api

import (
	"fmt"
	"net/http"
)

// ginSink is a probebridge.Sink backed directly by the response writer's
// http.Flusher, rather than gin's own SSE helper — the wire format is
// hand-written to match spec.md §6 exactly (event type line, data line,
// blank line) and every write is flushed immediately so a slow probe never
// buffers behind the framework.
type ginSink struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

// newGinSink prepares w for an SSE response: sets the streaming headers and
// wraps it for per-frame flushing. Returns an error if the underlying
// ResponseWriter doesn't support flushing (should never happen with the
// standard net/http server).
func newGinSink(w http.ResponseWriter) (*ginSink, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("api: response writer does not support flushing")
	}
	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()
	return &ginSink{w: w, flusher: flusher}, nil
}

// Send writes one SSE frame and flushes it to the client immediately.
func (s *ginSink) Send(eventType string, data []byte) error {
	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", eventType, data); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}
