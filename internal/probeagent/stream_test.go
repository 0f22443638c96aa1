package probeagent

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeResponse(body string) *http.Response {
	return &http.Response{Body: io.NopCloser(strings.NewReader(body))}
}

func TestReadEvents_ParsesBlankLineDelimitedFrames(t *testing.T) {
	body := "event: ping\ndata: {}\n\nevent: scrape_request\ndata: {\"id\":\"1\"}\n\n"
	events := make(chan streamEvent, 10)

	err := readEvents(context.Background(), fakeResponse(body), events)
	require.NoError(t, err)

	var got []streamEvent
	for ev := range events {
		got = append(got, ev)
	}

	require.Len(t, got, 2)
	assert.Equal(t, "ping", got[0].Type)
	assert.Equal(t, "{}", string(got[0].Data))
	assert.Equal(t, "scrape_request", got[1].Type)
	assert.Equal(t, `{"id":"1"}`, string(got[1].Data))
}

func TestReadEvents_JoinsMultilineData(t *testing.T) {
	body := "event: scrape_request\ndata: line one\ndata: line two\n\n"
	events := make(chan streamEvent, 10)

	err := readEvents(context.Background(), fakeResponse(body), events)
	require.NoError(t, err)

	ev := <-events
	assert.Equal(t, "line one\nline two", string(ev.Data))
}

func TestReadEvents_IgnoresTrailingIncompleteFrame(t *testing.T) {
	body := "event: ping\ndata: {}\n\nevent: scrape_request\ndata: {}"
	events := make(chan streamEvent, 10)

	require.NoError(t, readEvents(context.Background(), fakeResponse(body), events))

	var count int
	for range events {
		count++
	}
	assert.Equal(t, 1, count)
}

func TestReadEvents_ClosesChannelOnEOF(t *testing.T) {
	events := make(chan streamEvent)
	done := make(chan struct{})

	go func() {
		_ = readEvents(context.Background(), fakeResponse(""), events)
		close(done)
	}()

	_, ok := <-events
	assert.False(t, ok)
	<-done
}

func TestReadEvents_StopsOnContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	events := make(chan streamEvent)
	err := readEvents(ctx, fakeResponse("event: ping\ndata: {}\n\n"), events)

	assert.Error(t, err)
}
