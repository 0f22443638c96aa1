package probeagent

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linkmind-dev/linkmind/internal/models"
	"github.com/linkmind-dev/linkmind/internal/scrape"
)

type fakeArticleExtractor struct {
	result scrape.ArticleResult
	err    error
}

func (f fakeArticleExtractor) Extract(ctx context.Context, url string) (scrape.ArticleResult, error) {
	return f.result, f.err
}

func TestDispatch_ScrapeRequestPostsResultWithoutBlockingTheLoop(t *testing.T) {
	var mu sync.Mutex
	var gotEventID string
	var gotSuccess bool

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req scrapeResultRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		mu.Lock()
		gotEventID, gotSuccess = req.EventID, req.Success
		mu.Unlock()
		_ = json.NewEncoder(w).Encode(map[string]bool{"ok": true})
	}))
	defer srv.Close()

	fetcher := &Fetcher{Extractor: fakeArticleExtractor{result: scrape.ArticleResult{Markdown: "body"}}}
	agent := NewAgent(NewClient(srv.URL, ""), fetcher)

	payload := scrapeRequestPayload{EventID: "ev1", URL: "https://example.com", URLType: models.URLKindWeb}
	data, err := json.Marshal(payload)
	require.NoError(t, err)

	agent.dispatch(context.Background(), streamEvent{Type: "scrape_request", Data: data})
	agent.wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "ev1", gotEventID)
	assert.True(t, gotSuccess)
}

func TestDispatch_UnknownEventTypeIsIgnored(t *testing.T) {
	agent := NewAgent(NewClient("http://unused", ""), &Fetcher{})

	assert.NotPanics(t, func() {
		agent.dispatch(context.Background(), streamEvent{Type: "mystery"})
	})
}

func TestDispatch_MalformedScrapeRequestIsIgnored(t *testing.T) {
	agent := NewAgent(NewClient("http://unused", ""), &Fetcher{})

	assert.NotPanics(t, func() {
		agent.dispatch(context.Background(), streamEvent{Type: "scrape_request", Data: []byte("not json")})
	})
	agent.wg.Wait()
}

func TestRunOneConnection_ReturnsConnectedAfterFirstEvent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("event: ping\ndata: {}\n\n"))
	}))
	defer srv.Close()

	agent := NewAgent(NewClient(srv.URL, ""), &Fetcher{})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	connected, err := agent.runOneConnection(ctx)

	assert.True(t, connected)
	assert.NoError(t, err)
}

func TestRunOneConnection_ReportsNotConnectedOnSubscribeFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	agent := NewAgent(NewClient(srv.URL, ""), &Fetcher{})

	connected, err := agent.runOneConnection(context.Background())

	assert.False(t, connected)
	assert.Error(t, err)
}
