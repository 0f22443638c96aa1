package probebridge

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/linkmind-dev/linkmind/internal/models"
)

// subscriber is one connected probe's live stream: its sink plus the
// heartbeat timer keeping it alive. heartbeatDone is closed by Unsubscribe
// to stop the timer goroutine. sendMu serializes every write to sink —
// the heartbeat goroutine and NotifyScrapeRequest's dispatch goroutine both
// write to the same sink independently, and an interleaved write would
// corrupt the SSE frame a probe's scanner parses.
type subscriber struct {
	sink          Sink
	heartbeatDone chan struct{}
	sendMu        sync.Mutex
}

// send writes one SSE frame to sub's sink, holding sendMu for the
// duration so concurrent callers (heartbeat vs. scrape dispatch) never
// interleave.
func (sub *subscriber) send(eventType string, data []byte) error {
	sub.sendMu.Lock()
	defer sub.sendMu.Unlock()
	return sub.sink.Send(eventType, data)
}

// Manager fans scrape_request events out to a user's connected probes and
// dispatches scrape results back into the pipeline. One Manager instance is
// shared by every HTTP handler goroutine in the process.
type Manager struct {
	mu   sync.RWMutex
	subs map[int64]map[Sink]*subscriber // userID -> sink -> subscriber

	store   Store
	results ProbeResultHandler
}

// NewManager builds a Manager. results is typically a
// *pipeline.ProbeResultHandler.
func NewManager(store Store, results ProbeResultHandler) *Manager {
	return &Manager{
		subs:    make(map[int64]map[Sink]*subscriber),
		store:   store,
		results: results,
	}
}

// Subscribe registers sink as a live stream for userID. It immediately
// replays the user's pending probe events (marking each sent as it's
// written) and starts a 30-second heartbeat for as long as the sink stays
// registered. The returned func must be called when the connection closes.
func (m *Manager) Subscribe(ctx context.Context, userID int64, sink Sink) (unsubscribe func(), err error) {
	sub := &subscriber{sink: sink, heartbeatDone: make(chan struct{})}

	m.mu.Lock()
	if m.subs[userID] == nil {
		m.subs[userID] = make(map[Sink]*subscriber)
	}
	m.subs[userID][sink] = sub
	m.mu.Unlock()

	if err := m.replayPending(ctx, userID, sub); err != nil {
		slog.Warn("probebridge: replaying pending events failed", "user_id", userID, "error", err)
	}

	go m.heartbeat(sub)

	return func() { m.Unsubscribe(userID, sink) }, nil
}

// Unsubscribe removes sink from userID's registry and stops its heartbeat.
func (m *Manager) Unsubscribe(userID int64, sink Sink) {
	m.mu.Lock()
	defer m.mu.Unlock()
	subs, ok := m.subs[userID]
	if !ok {
		return
	}
	if sub, ok := subs[sink]; ok {
		close(sub.heartbeatDone)
		delete(subs, sink)
	}
	if len(subs) == 0 {
		delete(m.subs, userID)
	}
}

// heartbeat writes a ping event on sub's sink every heartbeatInterval until
// heartbeatDone is closed (by Unsubscribe) or a write fails.
func (m *Manager) heartbeat(sub *subscriber) {
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-sub.heartbeatDone:
			return
		case <-ticker.C:
			if err := sub.send(EventPing, []byte(`{}`)); err != nil {
				return
			}
		}
	}
}

// replayPending delivers every still-pending probe event for userID onto
// sink, marking each sent. Called once, synchronously, at subscribe time —
// this is the "retransmission is handled by pending-event replay on
// reconnect" path; a sink that disconnects before an event is marked sent
// will see it again the next time it (or another sink for the same user)
// subscribes.
func (m *Manager) replayPending(ctx context.Context, userID int64, sub *subscriber) error {
	pending, err := m.store.ListPendingProbeEvents(ctx, userID)
	if err != nil {
		return fmt.Errorf("probebridge: listing pending probe events: %w", err)
	}
	for _, ev := range pending {
		if err := m.sendScrapeRequest(sub, ev); err != nil {
			return err
		}
		if err := m.store.SetProbeEventStatus(ctx, ev.ID, models.ProbeEventSent, nil, nil); err != nil {
			slog.Warn("probebridge: marking replayed event sent", "event_id", ev.ID, "error", err)
		}
	}
	return nil
}

// NotifyScrapeRequest implements pipeline.ProbeNotifier. It pushes event to
// every sink currently connected for userID; if at least one sink received
// it, the event is marked sent so it isn't redelivered by a later replay.
// If no sink is connected, the event stays pending and is picked up by the
// next Subscribe's catch-up pass.
func (m *Manager) NotifyScrapeRequest(ctx context.Context, userID int64, event models.ProbeEvent) error {
	m.mu.RLock()
	byUser := m.subs[userID]
	subs := make([]*subscriber, 0, len(byUser))
	for _, sub := range byUser {
		subs = append(subs, sub)
	}
	m.mu.RUnlock()

	if len(subs) == 0 {
		return nil
	}

	delivered := false
	for _, sub := range subs {
		if err := m.sendScrapeRequest(sub, event); err != nil {
			slog.Warn("probebridge: pushing scrape_request failed", "user_id", userID, "event_id", event.ID, "error", err)
			continue
		}
		delivered = true
	}
	if !delivered {
		return nil
	}
	return m.store.SetProbeEventStatus(ctx, event.ID, models.ProbeEventSent, nil, nil)
}

func (m *Manager) sendScrapeRequest(sub *subscriber, event models.ProbeEvent) error {
	payload := ScrapeRequestPayload{
		EventID: event.ID, LinkID: event.LinkID, URL: event.URL,
		URLType: event.URLKind, CreatedAt: event.CreatedAt,
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("probebridge: marshaling scrape_request payload: %w", err)
	}
	return sub.send(EventScrapeRequest, data)
}

// ReceiveResult handles a probe's POST of a scrape_request outcome. It
// verifies the event belongs to device's owner, transitions the event to
// its terminal status, and — on success — asynchronously spawns the
// process-link task that resumes the suspended pipeline.
func (m *Manager) ReceiveResult(ctx context.Context, device *models.ProbeDevice, result ProbeResultRequest) error {
	event, err := m.store.GetProbeEvent(ctx, result.EventID)
	if err != nil {
		return fmt.Errorf("probebridge: fetching probe event %s: %w", result.EventID, err)
	}
	if event.UserID != device.UserID {
		return fmt.Errorf("probebridge: probe event %s does not belong to this device's user", result.EventID)
	}

	if !result.Success {
		errMsg := result.Error
		if errMsg == "" {
			errMsg = "probe reported failure without a message"
		}
		return m.store.SetProbeEventStatus(ctx, event.ID, models.ProbeEventError, nil, &errMsg)
	}

	data := models.ScrapeData{}
	if result.Data != nil {
		data = *result.Data
	}
	if err := m.store.SetProbeEventStatus(ctx, event.ID, models.ProbeEventCompleted, &data, nil); err != nil {
		return fmt.Errorf("probebridge: marking probe event completed: %w", err)
	}

	go func() {
		bg := context.Background()
		if _, err := m.results.HandleProbeResult(bg, device.UserID, event.ID, data); err != nil {
			slog.Error("probebridge: spawning process-link from probe result failed",
				"event_id", event.ID, "user_id", device.UserID, "error", err)
		}
	}()

	return nil
}

// InitiateDeviceAuth starts a device-code enrollment against this
// Manager's store. Thin wrapper so callers only need a *Manager, not a
// separate handle on the Store.
func (m *Manager) InitiateDeviceAuth(ctx context.Context, verificationURI string) (*DeviceAuthResponse, error) {
	return InitiateDeviceAuth(ctx, m.store, verificationURI)
}

// AuthorizeDeviceAuthCode marks a device-code enrollment authorized by
// userID.
func (m *Manager) AuthorizeDeviceAuthCode(ctx context.Context, userCode string, userID int64) error {
	return AuthorizeDeviceAuth(ctx, m.store, userCode, userID)
}

// PollDeviceToken polls a device-code enrollment's status.
func (m *Manager) PollDeviceToken(ctx context.Context, deviceCode string) (*PollResult, error) {
	return PollDeviceToken(ctx, m.store, deviceCode)
}

// ActiveSubscriberCount reports how many sinks are currently registered for
// userID.
func (m *Manager) ActiveSubscriberCount(userID int64) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.subs[userID])
}
