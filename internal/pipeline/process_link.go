package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/linkmind-dev/linkmind/internal/llm"
	"github.com/linkmind-dev/linkmind/internal/models"
	"github.com/linkmind-dev/linkmind/internal/related"
	"github.com/linkmind-dev/linkmind/internal/runtime"
	"github.com/linkmind-dev/linkmind/internal/scrape"
	"github.com/linkmind-dev/linkmind/internal/store"
)

// ProcessLinkParams is the params payload a process-link task is spawned
// with. LinkID is set whenever the link row already exists (the Admission
// API's submit and retry handlers, and a probe-result re-spawn); when it is
// zero the handler upserts the link itself. ScrapeData is set only on a
// probe-result re-spawn; without it the scrape step chooses a sub-path.
type ProcessLinkParams struct {
	UserID     int64              `json:"userId"`
	URL        string             `json:"url"`
	LinkID     int64              `json:"linkId,omitempty"`
	ScrapeData *models.ScrapeData `json:"scrapeData,omitempty"`
}

// maxStoredErrorLen bounds the error text written to a Link so a pathological
// stack trace from an external collaborator never blows up a text column.
const maxStoredErrorLen = 2000

func newProcessLinkHandler(deps Dependencies) runtime.Handler {
	return func(ctx context.Context, step *runtime.StepContext, raw json.RawMessage) (any, error) {
		var params ProcessLinkParams
		if err := json.Unmarshal(raw, &params); err != nil {
			return nil, fmt.Errorf("pipeline: unmarshaling process-link params: %w", err)
		}

		linkID, err := ensureLink(ctx, deps.Store, params)
		if err != nil {
			return nil, fmt.Errorf("pipeline: preparing link: %w", err)
		}

		scrapeCP, err := runtime.Step(ctx, step, "scrape", func(ctx context.Context) (scrapeCheckpoint, error) {
			return deps.scrape(ctx, linkID, params)
		})
		if handled, result, err := handleStepOutcome(ctx, deps.Store, linkID, err); handled {
			return result, err
		}
		if scrapeCP.Suspended {
			return runtime.Suspended(), nil
		}

		sumCP, err := runtime.Step(ctx, step, "summarize", func(ctx context.Context) (summarizeCheckpoint, error) {
			return deps.summarize(ctx, params.UserID, linkID, scrapeCP.OCRTexts)
		})
		if handled, result, err := handleStepOutcome(ctx, deps.Store, linkID, err); handled {
			return result, err
		}

		vec, err := runtime.Step(ctx, step, "embed", func(ctx context.Context) ([]float32, error) {
			return deps.embed(ctx, params.UserID, linkID)
		})
		if handled, result, err := handleStepOutcome(ctx, deps.Store, linkID, err); handled {
			return result, err
		}

		relatedLinks, err := runtime.Step(ctx, step, "related", func(ctx context.Context) ([]models.RelatedLink, error) {
			return deps.related(ctx, params.UserID, linkID, vec)
		})
		if handled, result, err := handleStepOutcome(ctx, deps.Store, linkID, err); handled {
			return result, err
		}

		_, err = runtime.Step(ctx, step, "insight", func(ctx context.Context) (struct{}, error) {
			return struct{}{}, deps.insight(ctx, params.UserID, linkID, params.URL, sumCP.Summary, relatedLinks)
		})
		if handled, result, err := handleStepOutcome(ctx, deps.Store, linkID, err); handled {
			return result, err
		}

		_, err = runtime.Step(ctx, step, "export", func(ctx context.Context) (struct{}, error) {
			return struct{}{}, nil
		})
		if handled, result, err := handleStepOutcome(ctx, deps.Store, linkID, err); handled {
			return result, err
		}

		return processLinkResult{Status: models.LinkStatusAnalyzed}, nil
	}
}

// ensureLink resolves the link the task operates on: params without a
// linkId upsert the link (which leaves it pending); params that already
// carry a linkId only need its status reset to pending with any stale error
// cleared.
func ensureLink(ctx context.Context, store Store, params ProcessLinkParams) (int64, error) {
	if params.LinkID != 0 {
		pending := models.LinkStatusPending
		if err := store.UpdateLinkFields(ctx, params.LinkID, models.LinkFields{
			Status: &pending, ClearError: true,
		}); err != nil {
			return 0, err
		}
		return params.LinkID, nil
	}

	id, _, err := store.UpsertLink(ctx, params.UserID, params.URL)
	return id, err
}

// handleStepOutcome applies spec's on-exception contract for a step's error.
// handled=false means no error occurred and the caller should continue to
// the next step. handled=true means the handler should return immediately
// with (result, err): either a clean success (permanent error, result=nil,
// err=nil) or an error the runtime will retry (result=nil, err=cause).
func handleStepOutcome(ctx context.Context, store Store, linkID int64, err error) (handled bool, result any, outErr error) {
	if err == nil {
		return false, nil, nil
	}

	msg := err.Error()
	if len(msg) > maxStoredErrorLen {
		msg = msg[:maxStoredErrorLen]
	}
	errored := models.LinkStatusError
	if updateErr := store.UpdateLinkFields(ctx, linkID, models.LinkFields{Status: &errored, Error: &msg}); updateErr != nil {
		slog.Error("failed to record link error", "link_id", linkID, "error", updateErr)
	}

	if isPermanentScrapeError(err) {
		slog.Warn("permanent scrape error, not retrying", "link_id", linkID, "error", msg)
		return true, nil, nil
	}
	return true, nil, err
}

func isPermanentScrapeError(err error) bool {
	msg := err.Error()
	for _, substr := range permanentScrapeErrors {
		if strings.Contains(msg, substr) {
			return true
		}
	}
	return false
}

// scrapeCheckpoint is the compact record the scrape step persists. Markdown
// itself is never carried here; only its length, per spec's memoization
// size discipline.
type scrapeCheckpoint struct {
	Suspended      bool     `json:"suspended,omitempty"`
	Title          string   `json:"title,omitempty"`
	OGDescription  string   `json:"ogDescription,omitempty"`
	SiteName       string   `json:"siteName,omitempty"`
	MarkdownLength int      `json:"markdownLength,omitempty"`
	OCRTexts       []string `json:"ocrTexts,omitempty"`
}

func (d Dependencies) scrape(ctx context.Context, linkID int64, params ProcessLinkParams) (scrapeCheckpoint, error) {
	if params.ScrapeData != nil {
		return d.scrapeProbeSupplied(ctx, linkID, *params.ScrapeData)
	}

	kind := scrape.ClassifyURL(params.URL)
	if kind == scrape.URLKindTwitter {
		devices, err := d.Store.ListProbeDevices(ctx, params.UserID)
		if err == nil && len(devices) > 0 {
			return d.scrapeProbeRequired(ctx, linkID, params)
		}
		slog.Warn("no probe device registered, falling back to direct twitter fetch", "user_id", params.UserID)
	}

	return d.scrapeCloud(ctx, linkID, params.URL, kind)
}

// scrapeProbeSupplied writes probe-returned fields to the link and OCRs any
// attached media, returning immediately without running the other sub-paths.
func (d Dependencies) scrapeProbeSupplied(ctx context.Context, linkID int64, data models.ScrapeData) (scrapeCheckpoint, error) {
	title := derefOr(data.Title, "")
	if title == "" {
		title = derefOr(data.OGTitle, "")
	}
	description := derefOr(data.OGDescription, "")
	siteName := derefOr(data.OGSiteName, "")
	typ := derefOr(data.OGType, "")
	image := derefOr(data.OGImage, "")

	fields := models.LinkFields{Markdown: &data.Markdown}
	if title != "" {
		fields.Title = &title
	}
	if description != "" {
		fields.Description = &description
	}
	if siteName != "" {
		fields.SiteName = &siteName
	}
	if typ != "" {
		fields.Type = &typ
	}
	if image != "" {
		fields.Image = &image
	}
	if err := d.Store.UpdateLinkFields(ctx, linkID, fields); err != nil {
		return scrapeCheckpoint{}, err
	}

	ocrTexts := d.ocrMedia(ctx, mediaURLs(data.RawMedia))

	return scrapeCheckpoint{
		Title: title, OGDescription: description, SiteName: siteName,
		MarkdownLength: len(data.Markdown), OCRTexts: ocrTexts,
	}, nil
}

// scrapeProbeRequired creates a pending ProbeEvent, marks the link as
// waiting on a probe, and asks the bridge to notify subscribers. The
// returned checkpoint's Suspended flag tells the handler to exit cleanly.
func (d Dependencies) scrapeProbeRequired(ctx context.Context, linkID int64, params ProcessLinkParams) (scrapeCheckpoint, error) {
	event := models.ProbeEvent{
		ID:      uuid.NewString(),
		UserID:  params.UserID,
		LinkID:  linkID,
		URL:     params.URL,
		URLKind: models.URLKindTwitter,
		Status:  models.ProbeEventPending,
	}
	if err := d.Store.CreateProbeEvent(ctx, &event); err != nil {
		return scrapeCheckpoint{}, fmt.Errorf("creating probe event: %w", err)
	}

	waiting := models.LinkStatusWaitingProbe
	if err := d.Store.UpdateLinkFields(ctx, linkID, models.LinkFields{Status: &waiting}); err != nil {
		return scrapeCheckpoint{}, fmt.Errorf("marking link waiting on probe: %w", err)
	}

	if d.Probes != nil {
		if err := d.Probes.NotifyScrapeRequest(ctx, params.UserID, event); err != nil {
			slog.Error("failed to notify probe subscribers", "event_id", event.ID, "error", err)
		}
	}

	return scrapeCheckpoint{Suspended: true}, nil
}

// scrapeCloud invokes the external article extractor (and, for Twitter URLs
// reached without a probe, the Twitter fetcher) and persists the result.
func (d Dependencies) scrapeCloud(ctx context.Context, linkID int64, url string, kind scrape.URLKind) (scrapeCheckpoint, error) {
	if kind == scrape.URLKindTwitter && d.Twitter != nil {
		tweet, err := d.Twitter.Fetch(ctx, url)
		if err != nil {
			return scrapeCheckpoint{}, fmt.Errorf("twitter fetch: %w", err)
		}
		if err := d.Store.UpdateLinkFields(ctx, linkID, models.LinkFields{Markdown: &tweet.Markdown}); err != nil {
			return scrapeCheckpoint{}, err
		}
		ocrTexts := d.ocrMedia(ctx, tweet.ImageURLs)
		return scrapeCheckpoint{MarkdownLength: len(tweet.Markdown), OCRTexts: ocrTexts}, nil
	}

	article, err := d.Extractor.Extract(ctx, url)
	if err != nil {
		return scrapeCheckpoint{}, fmt.Errorf("article extraction: %w", err)
	}

	title := article.Title
	if title == "" {
		title = article.OGTitle
	}
	fields := models.LinkFields{Markdown: &article.Markdown}
	if title != "" {
		fields.Title = &title
	}
	if article.OGDescription != "" {
		fields.Description = &article.OGDescription
	}
	if article.OGImage != "" {
		fields.Image = &article.OGImage
	}
	if article.OGSiteName != "" {
		fields.SiteName = &article.OGSiteName
	}
	if article.OGType != "" {
		fields.Type = &article.OGType
	}
	if err := d.Store.UpdateLinkFields(ctx, linkID, fields); err != nil {
		return scrapeCheckpoint{}, err
	}

	var ocrTexts []string
	if kind == scrape.URLKindTwitter {
		ocrTexts = d.ocrMedia(ctx, article.ImageURLs)
	}

	return scrapeCheckpoint{
		Title: title, OGDescription: article.OGDescription, SiteName: article.OGSiteName,
		MarkdownLength: len(article.Markdown), OCRTexts: ocrTexts,
	}, nil
}

// ocrMedia runs the OCR helper over every image URL, logging and skipping
// any failure: image/OCR errors are non-fatal to the scrape step.
func (d Dependencies) ocrMedia(ctx context.Context, imageURLs []string) []string {
	if d.OCR == nil {
		return nil
	}
	texts := make([]string, 0, len(imageURLs))
	for _, url := range imageURLs {
		text, err := d.OCR.OCR(ctx, url)
		if err != nil {
			slog.Warn("image OCR failed, continuing without it", "image_url", url, "error", err)
			continue
		}
		if text != "" {
			texts = append(texts, text)
		}
	}
	return texts
}

func mediaURLs(media []models.RawMedia) []string {
	urls := make([]string, 0, len(media))
	for _, m := range media {
		if m.Type == "image" {
			urls = append(urls, m.URL)
		}
	}
	return urls
}

func derefOr(s *string, fallback string) string {
	if s == nil {
		return fallback
	}
	return *s
}

// summarizeCheckpoint is the compact result of the summarize step.
type summarizeCheckpoint struct {
	Summary string   `json:"summary"`
	Tags    []string `json:"tags,omitempty"`
}

func (d Dependencies) summarize(ctx context.Context, userID, linkID int64, ocrTexts []string) (summarizeCheckpoint, error) {
	link, err := d.Store.GetLink(ctx, userID, linkID)
	if err != nil {
		return summarizeCheckpoint{}, err
	}

	markdown := ""
	if link.Markdown != nil {
		markdown = *link.Markdown
	}
	if len(ocrTexts) > 0 {
		markdown += ocrMarkerHeading + strings.Join(ocrTexts, "\n\n")
	}

	result, err := d.Summarizer.Summarize(ctx, markdown)
	if err != nil {
		return summarizeCheckpoint{}, fmt.Errorf("summarizing: %w", err)
	}

	if err := d.Store.UpdateLinkFields(ctx, linkID, models.LinkFields{
		Summary: &result.Summary, Tags: &result.Tags,
	}); err != nil {
		return summarizeCheckpoint{}, err
	}

	return summarizeCheckpoint{Summary: result.Summary, Tags: result.Tags}, nil
}

func (d Dependencies) embed(ctx context.Context, userID, linkID int64) ([]float32, error) {
	link, err := d.Store.GetLink(ctx, userID, linkID)
	if err != nil {
		return nil, err
	}
	summary := ""
	if link.Summary != nil {
		summary = *link.Summary
	}

	vec, err := d.Embedder.Embed(ctx, summary)
	if err != nil {
		return nil, fmt.Errorf("embedding: %w", err)
	}

	if err := d.Store.UpdateLinkFields(ctx, linkID, models.LinkFields{Vector: &vec}); err != nil {
		return nil, err
	}
	return vec, nil
}

func (d Dependencies) related(ctx context.Context, userID, linkID int64, vec []float32) ([]models.RelatedLink, error) {
	candidates, err := d.Store.VectorSearch(ctx, userID, linkID, vec, defaultVectorSearchK)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}

	selected := related.Select(candidates)

	if err := d.Store.SaveRelations(ctx, linkID, selected); err != nil {
		return nil, fmt.Errorf("saving relations: %w", err)
	}
	return selected, nil
}

func (d Dependencies) insight(ctx context.Context, userID, linkID int64, url, summary string, relatedLinks []models.RelatedLink) error {
	contexts := make([]llm.RelatedContext, 0, len(relatedLinks))
	for _, r := range relatedLinks {
		other, err := d.Store.GetLink(ctx, userID, r.LinkID)
		if err != nil {
			if !errors.Is(err, store.ErrNotFound) {
				slog.Warn("failed to fetch related link for insight context", "link_id", r.LinkID, "error", err)
			}
			continue
		}
		otherSummary := ""
		if other.Summary != nil {
			otherSummary = *other.Summary
		}
		title := other.URL
		if other.Title != nil {
			title = *other.Title
		}
		contexts = append(contexts, llm.RelatedContext{Title: title, URL: other.URL, Summary: otherSummary})
	}

	link, err := d.Store.GetLink(ctx, userID, linkID)
	if err != nil {
		return err
	}
	title := url
	if link.Title != nil {
		title = *link.Title
	}

	text, err := d.Insighter.GenerateInsight(ctx, title, url, summary, contexts)
	if err != nil {
		return fmt.Errorf("generating insight: %w", err)
	}

	analyzed := models.LinkStatusAnalyzed
	return d.Store.UpdateLinkFields(ctx, linkID, models.LinkFields{Insight: &text, Status: &analyzed})
}
