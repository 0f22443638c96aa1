package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linkmind-dev/linkmind/internal/llm"
	"github.com/linkmind-dev/linkmind/internal/models"
	"github.com/linkmind-dev/linkmind/internal/scrape"
)

type fakeStore struct {
	links       map[int64]*models.Link
	nextID      int64
	probeEvents map[string]*models.ProbeEvent
	devices     map[int64][]models.ProbeDevice
	relations   map[int64][]models.RelatedLink
	vectorHits  []models.RelatedLink
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		links:       map[int64]*models.Link{},
		probeEvents: map[string]*models.ProbeEvent{},
		devices:     map[int64][]models.ProbeDevice{},
		relations:   map[int64][]models.RelatedLink{},
	}
}

func (s *fakeStore) UpsertLink(ctx context.Context, userID int64, url string) (int64, bool, error) {
	s.nextID++
	id := s.nextID
	s.links[id] = &models.Link{ID: id, UserID: userID, URL: url, Status: models.LinkStatusPending}
	return id, false, nil
}

func (s *fakeStore) GetLink(ctx context.Context, userID, id int64) (*models.Link, error) {
	l, ok := s.links[id]
	if !ok || l.UserID != userID {
		return nil, errors.New("not found")
	}
	cp := *l
	return &cp, nil
}

func (s *fakeStore) UpdateLinkFields(ctx context.Context, id int64, fields models.LinkFields) error {
	l, ok := s.links[id]
	if !ok {
		return errors.New("not found")
	}
	if fields.Title != nil {
		l.Title = fields.Title
	}
	if fields.Description != nil {
		l.Description = fields.Description
	}
	if fields.SiteName != nil {
		l.SiteName = fields.SiteName
	}
	if fields.Markdown != nil {
		l.Markdown = fields.Markdown
	}
	if fields.Summary != nil {
		l.Summary = fields.Summary
	}
	if fields.Insight != nil {
		l.Insight = fields.Insight
	}
	if fields.Tags != nil {
		l.Tags = *fields.Tags
	}
	if fields.Vector != nil {
		l.Vector = *fields.Vector
	}
	if fields.Status != nil {
		l.Status = *fields.Status
	}
	if fields.Error != nil {
		l.Error = fields.Error
	} else if fields.ClearError {
		l.Error = nil
	}
	return nil
}

func (s *fakeStore) CreateProbeEvent(ctx context.Context, ev *models.ProbeEvent) error {
	cp := *ev
	s.probeEvents[ev.ID] = &cp
	return nil
}

func (s *fakeStore) GetProbeEvent(ctx context.Context, id string) (*models.ProbeEvent, error) {
	ev, ok := s.probeEvents[id]
	if !ok {
		return nil, errors.New("not found")
	}
	cp := *ev
	return &cp, nil
}

func (s *fakeStore) ListProbeDevices(ctx context.Context, userID int64) ([]models.ProbeDevice, error) {
	return s.devices[userID], nil
}

func (s *fakeStore) VectorSearch(ctx context.Context, userID, excludeID int64, query []float32, k int) ([]models.RelatedLink, error) {
	return s.vectorHits, nil
}

func (s *fakeStore) SaveRelations(ctx context.Context, linkID int64, newRelations []models.RelatedLink) error {
	s.relations[linkID] = newRelations
	return nil
}

func (s *fakeStore) GetRelations(ctx context.Context, linkID int64) ([]models.RelatedLink, error) {
	return s.relations[linkID], nil
}

type fakeSummarizer struct{}

func (fakeSummarizer) Summarize(ctx context.Context, markdown string) (llm.Summary, error) {
	return llm.Summary{Summary: "a summary of: " + markdown, Tags: []string{"tag1"}}, nil
}

type fakeEmbedder struct{}

func (fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return []float32{0.1, 0.2, 0.3}, nil
}

type fakeInsighter struct{}

func (fakeInsighter) GenerateInsight(ctx context.Context, title, url, summary string, related []llm.RelatedContext) (string, error) {
	return "insight about " + title, nil
}

type fakeExtractor struct {
	result scrape.ArticleResult
	err    error
}

func (f fakeExtractor) Extract(ctx context.Context, url string) (scrape.ArticleResult, error) {
	if f.err != nil {
		return scrape.ArticleResult{}, f.err
	}
	return f.result, nil
}

type fakeTwitter struct {
	result scrape.TweetResult
	err    error
}

func (f fakeTwitter) Fetch(ctx context.Context, url string) (scrape.TweetResult, error) {
	if f.err != nil {
		return scrape.TweetResult{}, f.err
	}
	return f.result, nil
}

type nopOCR struct{}

func (nopOCR) OCR(ctx context.Context, imageURL string) (string, error) { return "", nil }

func TestScrape_CloudWeb(t *testing.T) {
	fs := newFakeStore()
	id, _, _ := fs.UpsertLink(context.Background(), 1, "https://example.com/article")
	deps := Dependencies{
		Store:     fs,
		Extractor: fakeExtractor{result: scrape.ArticleResult{Title: "An Article", Markdown: "# content", OGDescription: "desc"}},
		OCR:       nopOCR{},
	}

	cp, err := deps.scrape(context.Background(), id, ProcessLinkParams{UserID: 1, URL: "https://example.com/article"})
	require.NoError(t, err)
	assert.False(t, cp.Suspended)
	assert.Equal(t, "An Article", cp.Title)
	assert.Equal(t, "# content", *fs.links[id].Markdown)
	assert.Equal(t, "desc", *fs.links[id].Description)
}

func TestScrape_TwitterWithoutProbe_FallsBackToDirectFetch(t *testing.T) {
	fs := newFakeStore()
	id, _, _ := fs.UpsertLink(context.Background(), 1, "https://twitter.com/a/status/1")
	deps := Dependencies{
		Store:   fs,
		Twitter: fakeTwitter{result: scrape.TweetResult{Markdown: "tweet body"}},
		OCR:     nopOCR{},
	}

	cp, err := deps.scrape(context.Background(), id, ProcessLinkParams{UserID: 1, URL: "https://twitter.com/a/status/1"})
	require.NoError(t, err)
	assert.False(t, cp.Suspended)
	assert.Equal(t, "tweet body", *fs.links[id].Markdown)
}

func TestScrape_TwitterWithProbeDevice_Suspends(t *testing.T) {
	fs := newFakeStore()
	id, _, _ := fs.UpsertLink(context.Background(), 1, "https://twitter.com/a/status/1")
	fs.devices[1] = []models.ProbeDevice{{ID: "dev-1", UserID: 1}}
	deps := Dependencies{Store: fs}

	cp, err := deps.scrape(context.Background(), id, ProcessLinkParams{UserID: 1, URL: "https://twitter.com/a/status/1"})
	require.NoError(t, err)
	assert.True(t, cp.Suspended)
	assert.Equal(t, models.LinkStatusWaitingProbe, fs.links[id].Status)
	assert.Len(t, fs.probeEvents, 1)
}

func TestScrape_ProbeSupplied(t *testing.T) {
	fs := newFakeStore()
	id, _, _ := fs.UpsertLink(context.Background(), 1, "https://twitter.com/a/status/1")
	deps := Dependencies{Store: fs, OCR: nopOCR{}}

	title := "Supplied Title"
	data := models.ScrapeData{Title: &title, Markdown: "supplied markdown"}

	cp, err := deps.scrapeProbeSupplied(context.Background(), id, data)
	require.NoError(t, err)
	assert.False(t, cp.Suspended)
	assert.Equal(t, "Supplied Title", cp.Title)
	assert.Equal(t, "supplied markdown", *fs.links[id].Markdown)
}

func TestSummarizeEmbedRelatedInsight(t *testing.T) {
	fs := newFakeStore()
	id, _, _ := fs.UpsertLink(context.Background(), 1, "https://example.com/article")
	markdown := "# some content"
	require.NoError(t, fs.UpdateLinkFields(context.Background(), id, models.LinkFields{Markdown: &markdown}))

	deps := Dependencies{
		Store:      fs,
		Summarizer: fakeSummarizer{},
		Embedder:   fakeEmbedder{},
		Insighter:  fakeInsighter{},
	}

	sumCP, err := deps.summarize(context.Background(), 1, id, nil)
	require.NoError(t, err)
	assert.Equal(t, "a summary of: # some content", sumCP.Summary)

	vec, err := deps.embed(context.Background(), 1, id)
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, vec)

	fs.vectorHits = []models.RelatedLink{{LinkID: 99, Score: 0.9}, {LinkID: 98, Score: 0.4}}
	relatedLinks, err := deps.related(context.Background(), 1, id, vec)
	require.NoError(t, err)
	require.Len(t, relatedLinks, 1)
	assert.Equal(t, int64(99), relatedLinks[0].LinkID)
	assert.Equal(t, fs.relations[id], relatedLinks)

	err = deps.insight(context.Background(), 1, id, "https://example.com/article", sumCP.Summary, relatedLinks)
	require.NoError(t, err)
	assert.Equal(t, models.LinkStatusAnalyzed, fs.links[id].Status)
	assert.NotNil(t, fs.links[id].Insight)
}

func TestIsPermanentScrapeError(t *testing.T) {
	assert.True(t, isPermanentScrapeError(errors.New("xyz: Download is starting now")))
	assert.True(t, isPermanentScrapeError(errors.New("nav error net::ERR_ABORTED")))
	assert.False(t, isPermanentScrapeError(errors.New("connection refused")))
}

func TestHandleStepOutcome_PermanentErrorIsCleanSuccess(t *testing.T) {
	fs := newFakeStore()
	id, _, _ := fs.UpsertLink(context.Background(), 1, "https://example.com/file.zip")

	handled, result, err := handleStepOutcome(context.Background(), fs, id, errors.New("Download is starting"))
	require.True(t, handled)
	assert.Nil(t, result)
	assert.NoError(t, err)
	assert.Equal(t, models.LinkStatusError, fs.links[id].Status)
}

func TestHandleStepOutcome_TransientErrorPropagates(t *testing.T) {
	fs := newFakeStore()
	id, _, _ := fs.UpsertLink(context.Background(), 1, "https://example.com")

	handled, _, err := handleStepOutcome(context.Background(), fs, id, errors.New("temporary network blip"))
	require.True(t, handled)
	assert.Error(t, err)
	assert.Equal(t, models.LinkStatusError, fs.links[id].Status)
}

func TestEnsureLink_NewSubmissionVsProbeResume(t *testing.T) {
	fs := newFakeStore()

	id, err := ensureLink(context.Background(), fs, ProcessLinkParams{UserID: 1, URL: "https://example.com"})
	require.NoError(t, err)
	assert.Equal(t, models.LinkStatusPending, fs.links[id].Status)

	errMsg := "stale error"
	fs.links[id].Error = &errMsg
	fs.links[id].Status = models.LinkStatusError

	resumedID, err := ensureLink(context.Background(), fs, ProcessLinkParams{UserID: 1, URL: "https://example.com", LinkID: id})
	require.NoError(t, err)
	assert.Equal(t, id, resumedID)
	assert.Equal(t, models.LinkStatusPending, fs.links[id].Status)
	assert.Nil(t, fs.links[id].Error)
}
