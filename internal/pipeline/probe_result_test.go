package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linkmind-dev/linkmind/internal/models"
)

func TestHandleProbeResult_SpawnsProcessLinkTask(t *testing.T) {
	fs := newFakeStore()
	id, _, _ := fs.UpsertLink(context.Background(), 1, "https://twitter.com/a/status/1")
	fs.probeEvents["ev-1"] = &models.ProbeEvent{ID: "ev-1", UserID: 1, LinkID: id, URL: "https://twitter.com/a/status/1"}

	h := NewProbeResultHandler(fs, newFakeTaskStore(), "default")

	title := "A Tweet"
	taskID, err := h.HandleProbeResult(context.Background(), 1, "ev-1", models.ScrapeData{Title: &title, Markdown: "tweet markdown"})
	require.NoError(t, err)
	assert.NotEmpty(t, taskID)
}

func TestHandleProbeResult_RejectsForeignUser(t *testing.T) {
	fs := newFakeStore()
	id, _, _ := fs.UpsertLink(context.Background(), 1, "https://twitter.com/a/status/1")
	fs.probeEvents["ev-1"] = &models.ProbeEvent{ID: "ev-1", UserID: 1, LinkID: id}

	h := NewProbeResultHandler(fs, newFakeTaskStore(), "default")
	_, err := h.HandleProbeResult(context.Background(), 2, "ev-1", models.ScrapeData{})
	assert.ErrorIs(t, err, ErrForbiddenProbeEvent)
}

func TestHandleProbeResult_RejectsUnknownEvent(t *testing.T) {
	fs := newFakeStore()
	h := NewProbeResultHandler(fs, newFakeTaskStore(), "default")
	_, err := h.HandleProbeResult(context.Background(), 1, "missing", models.ScrapeData{})
	assert.Error(t, err)
}
