package pipeline

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linkmind-dev/linkmind/internal/models"
	"github.com/linkmind-dev/linkmind/internal/runtime"
	"github.com/linkmind-dev/linkmind/internal/scrape"
)

// fakeTaskStore implements runtime.TaskStore just enough to back a
// StepContext's SaveTaskStep calls; the other methods are unused by
// runtime.Step and are not exercised here.
type fakeTaskStore struct {
	saved map[string]json.RawMessage
}

func newFakeTaskStore() *fakeTaskStore { return &fakeTaskStore{saved: map[string]json.RawMessage{}} }

func (f *fakeTaskStore) SpawnTask(ctx context.Context, id, queue, kind string, params any, opts models.SpawnOptions) error {
	return nil
}
func (f *fakeTaskStore) ClaimTask(ctx context.Context, queue, claimedBy string, leaseSeconds int) (*models.Task, error) {
	return nil, nil
}
func (f *fakeTaskStore) ReclaimExpiredLeases(ctx context.Context, queue string) (int64, error) {
	return 0, nil
}
func (f *fakeTaskStore) SaveTaskStep(ctx context.Context, taskID, stepName string, value json.RawMessage) error {
	f.saved[stepName] = value
	return nil
}
func (f *fakeTaskStore) CompleteTask(ctx context.Context, taskID string, result any) error { return nil }
func (f *fakeTaskStore) FailTask(ctx context.Context, taskID, errMsg string, terminal bool, runAfter time.Time) error {
	return nil
}
func (f *fakeTaskStore) CancelTask(ctx context.Context, taskID string) error { return nil }
func (f *fakeTaskStore) GetTaskStatus(ctx context.Context, taskID string) (*models.TaskStatus, error) {
	return nil, nil
}
func (f *fakeTaskStore) CountActiveTasks(ctx context.Context, queue string) (int, error) {
	return 0, nil
}

func TestProcessLinkHandler_FullFlow(t *testing.T) {
	fs := newFakeStore()
	deps := Dependencies{
		Store:      fs,
		Extractor:  fakeExtractor{result: scrape.ArticleResult{Title: "An Article", Markdown: "# content"}},
		Summarizer: fakeSummarizer{},
		Embedder:   fakeEmbedder{},
		Insighter:  fakeInsighter{},
		OCR:        nopOCR{},
	}
	registry := runtime.NewRegistry()
	Register(registry, deps)

	handler, ok := registry.Lookup(KindProcessLink)
	require.True(t, ok)

	raw, err := json.Marshal(ProcessLinkParams{UserID: 1, URL: "https://example.com/article"})
	require.NoError(t, err)

	step := runtime.NewStepContextForTesting("task-1", newFakeTaskStore(), nil)
	result, err := handler(context.Background(), step, raw)
	require.NoError(t, err)

	res, ok := result.(processLinkResult)
	require.True(t, ok)
	assert.Equal(t, models.LinkStatusAnalyzed, res.Status)
	assert.Equal(t, models.LinkStatusAnalyzed, fs.links[1].Status)
}

func TestProcessLinkHandler_TwitterSuspends(t *testing.T) {
	fs := newFakeStore()
	fs.devices[1] = []models.ProbeDevice{{ID: "dev-1", UserID: 1}}
	deps := Dependencies{Store: fs}
	registry := runtime.NewRegistry()
	Register(registry, deps)

	handler, _ := registry.Lookup(KindProcessLink)
	raw, _ := json.Marshal(ProcessLinkParams{UserID: 1, URL: "https://twitter.com/a/status/1"})
	step := runtime.NewStepContextForTesting("task-2", newFakeTaskStore(), nil)

	result, err := handler(context.Background(), step, raw)
	require.NoError(t, err)
	assert.Equal(t, runtime.Suspended(), result)
	assert.Equal(t, models.LinkStatusWaitingProbe, fs.links[1].Status)
}

func TestRefreshRelatedHandler(t *testing.T) {
	fs := newFakeStore()
	id, _, _ := fs.UpsertLink(context.Background(), 1, "https://example.com/article")
	summary := "existing summary"
	vec := []float32{0.5, 0.5}
	require.NoError(t, fs.UpdateLinkFields(context.Background(), id, models.LinkFields{
		Summary: &summary, Vector: &vec,
	}))
	fs.vectorHits = []models.RelatedLink{{LinkID: 5, Score: 0.7}}

	deps := Dependencies{Store: fs, Insighter: fakeInsighter{}}
	registry := runtime.NewRegistry()
	Register(registry, deps)

	handler, ok := registry.Lookup(KindRefreshRelated)
	require.True(t, ok)

	raw, err := json.Marshal(RefreshRelatedParams{UserID: 1, LinkID: id})
	require.NoError(t, err)
	step := runtime.NewStepContextForTesting("task-3", newFakeTaskStore(), nil)

	result, err := handler(context.Background(), step, raw)
	require.NoError(t, err)
	res, ok := result.(refreshRelatedResult)
	require.True(t, ok)
	assert.Equal(t, models.LinkStatusAnalyzed, res.Status)
	assert.Equal(t, []models.RelatedLink{{LinkID: 5, Score: 0.7}}, fs.relations[id])
}
