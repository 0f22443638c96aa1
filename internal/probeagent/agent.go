package probeagent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/linkmind-dev/linkmind/internal/models"
)

// heartbeatGrace is how long after the last received event (a ping or a
// scrape_request) the connection is considered dead and torn down.
const heartbeatGrace = 60 * time.Second

// scrapeRequestPayload mirrors probebridge.ScrapeRequestPayload's wire
// shape — the probe agent only ever deserializes this, never the bridge's
// Go type, since it talks to the coordinator purely over HTTP/SSE.
type scrapeRequestPayload struct {
	EventID   string         `json:"event_id"`
	URL       string         `json:"url"`
	URLType   models.URLKind `json:"url_type"`
	LinkID    int64          `json:"link_id"`
	CreatedAt time.Time      `json:"created_at"`
}

// Agent is the probe's single event-loop: one outstanding subscription at a
// time, reconnecting on drop, dispatching each scrape_request to a
// background fetch that the loop never awaits.
type Agent struct {
	client  *Client
	fetcher *Fetcher

	wg sync.WaitGroup
}

// NewAgent builds an Agent against the given Client and Fetcher.
func NewAgent(client *Client, fetcher *Fetcher) *Agent {
	return &Agent{client: client, fetcher: fetcher}
}

// Run drives the reconnect loop until ctx is cancelled, then waits for any
// in-flight scrape dispatches to finish.
func (a *Agent) Run(ctx context.Context) {
	boff := backoff.NewExponentialBackOff()
	boff.InitialInterval = 5 * time.Second
	boff.Multiplier = 2
	boff.MaxInterval = 60 * time.Second
	boff.RandomizationFactor = 0
	boff.MaxElapsedTime = 0

	for {
		if ctx.Err() != nil {
			a.wg.Wait()
			return
		}

		connected, err := a.runOneConnection(ctx)
		if connected {
			boff.Reset()
		}
		if ctx.Err() != nil {
			a.wg.Wait()
			return
		}
		if err != nil {
			slog.Warn("probe event stream disconnected, reconnecting", "error", err)
		}

		wait := boff.NextBackOff()
		select {
		case <-ctx.Done():
			a.wg.Wait()
			return
		case <-time.After(wait):
		}
	}
}

// runOneConnection opens the subscription, reads frames until the
// heartbeat deadline lapses or the stream ends, and dispatches each
// scrape_request to a background fetch. connected reports whether at least
// one complete frame was received, which is what resets the reconnect
// backoff regardless of how the connection later ends. A connection that
// answers 200 but ends before its first complete frame does not reset it.
func (a *Agent) runOneConnection(ctx context.Context) (connected bool, err error) {
	connCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	resp, err := a.client.subscribe(connCtx)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	events := make(chan streamEvent)
	readErr := make(chan error, 1)
	go func() { readErr <- readEvents(connCtx, resp, events) }()

	deadline := time.NewTimer(heartbeatGrace)
	defer deadline.Stop()

	for {
		select {
		case <-ctx.Done():
			return connected, ctx.Err()
		case <-deadline.C:
			return connected, fmt.Errorf("probeagent: heartbeat deadline exceeded")
		case ev, ok := <-events:
			if !ok {
				return connected, <-readErr
			}
			connected = true
			if !deadline.Stop() {
				<-deadline.C
			}
			deadline.Reset(heartbeatGrace)
			a.dispatch(ctx, ev)
		}
	}
}

// dispatch handles one parsed SSE frame: ping resets the heartbeat deadline
// (already done by the caller), scrape_request spawns a background fetch
// the loop does not await.
func (a *Agent) dispatch(ctx context.Context, ev streamEvent) {
	switch ev.Type {
	case "ping":
		// heartbeat deadline already reset by the caller.
	case "scrape_request":
		var req scrapeRequestPayload
		if err := json.Unmarshal(ev.Data, &req); err != nil {
			slog.Error("probe received malformed scrape_request", "error", err)
			return
		}
		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			a.handleScrapeRequest(ctx, req)
		}()
	default:
		slog.Warn("probe received unknown event type", "type", ev.Type)
	}
}

func (a *Agent) handleScrapeRequest(ctx context.Context, req scrapeRequestPayload) {
	slog.Info("handling scrape request", "event_id", req.EventID, "url", req.URL, "url_type", req.URLType)

	data, err := a.fetcher.Fetch(ctx, req.URLType, req.URL)
	if err != nil {
		slog.Warn("scrape failed", "event_id", req.EventID, "error", err)
		if postErr := a.client.PostResult(ctx, req.EventID, nil, err); postErr != nil {
			slog.Error("failed to post scrape error result", "event_id", req.EventID, "error", postErr)
		}
		return
	}

	if err := a.client.PostResult(ctx, req.EventID, data, nil); err != nil {
		slog.Error("failed to post scrape result", "event_id", req.EventID, "error", err)
	}
}
