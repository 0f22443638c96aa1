// Package pipeline implements the process-link and refresh-related task
// kinds: the enrichment workflow that turns a submitted URL into a scraped,
// summarized, embedded, cross-linked, and annotated Link.
package pipeline

import (
	"context"

	"github.com/linkmind-dev/linkmind/internal/llm"
	"github.com/linkmind-dev/linkmind/internal/models"
	"github.com/linkmind-dev/linkmind/internal/runtime"
	"github.com/linkmind-dev/linkmind/internal/scrape"
)

// KindProcessLink is the task kind for the full ingestion pipeline.
const KindProcessLink = "process-link"

// KindRefreshRelated is the task kind for recomputing a link's related set
// and insight without re-scraping or re-summarizing.
const KindRefreshRelated = "refresh-related"

// Store is the subset of the Store Gateway the pipeline steps depend on.
type Store interface {
	UpsertLink(ctx context.Context, userID int64, url string) (id int64, wasExisting bool, err error)
	GetLink(ctx context.Context, userID, id int64) (*models.Link, error)
	UpdateLinkFields(ctx context.Context, id int64, fields models.LinkFields) error
	CreateProbeEvent(ctx context.Context, ev *models.ProbeEvent) error
	GetProbeEvent(ctx context.Context, id string) (*models.ProbeEvent, error)
	ListProbeDevices(ctx context.Context, userID int64) ([]models.ProbeDevice, error)
	VectorSearch(ctx context.Context, userID, excludeID int64, query []float32, k int) ([]models.RelatedLink, error)
	SaveRelations(ctx context.Context, linkID int64, newRelations []models.RelatedLink) error
	GetRelations(ctx context.Context, linkID int64) ([]models.RelatedLink, error)
}

// ProbeNotifier pushes a scrape_request event to a user's subscribed probes.
// Implemented by internal/probebridge; kept as a narrow interface here so
// the pipeline doesn't import the bridge's transport concerns.
type ProbeNotifier interface {
	NotifyScrapeRequest(ctx context.Context, userID int64, event models.ProbeEvent) error
}

// permanentScrapeErrors is the fixed substring list that marks a scrape
// failure as non-retryable (the URL pointed at a downloadable resource, not
// a page). Preserved verbatim for compatibility with previously stored
// error messages.
var permanentScrapeErrors = []string{
	"Download is starting",
	"net::ERR_ABORTED",
	"Navigation failed because page was closed",
}

// Dependencies bundles the pipeline's external collaborators.
type Dependencies struct {
	Store      Store
	Probes     ProbeNotifier
	Extractor  scrape.ArticleExtractor
	Twitter    scrape.TwitterFetcher
	OCR        scrape.ImageOCRHelper
	Summarizer llm.Summarizer
	Embedder   llm.Embedder
	Insighter  llm.InsightGenerator
}

// Register binds the pipeline's task kinds to registry.
func Register(registry *runtime.Registry, deps Dependencies) {
	registry.Register(KindProcessLink, newProcessLinkHandler(deps))
	registry.Register(KindRefreshRelated, newRefreshRelatedHandler(deps))
}

// processLinkResult is the final return value of a completed process-link
// task.
type processLinkResult struct {
	Status models.LinkStatus `json:"status"`
}

// ocrMarkerHeading precedes any OCR text folded into markdown before it is
// handed to the summarizer.
const ocrMarkerHeading = "\n\n## Image text (OCR)\n\n"

// defaultVectorSearchK is how many nearest neighbors VectorSearch considers
// before the related step applies its threshold and cap.
const defaultVectorSearchK = 10

// ProcessLinkRetryOptions returns the spawn options every process-link task
// must use: three attempts, exponential backoff starting at 10s doubling to
// a 300s cap.
func ProcessLinkRetryOptions() models.SpawnOptions {
	return models.SpawnOptions{
		MaxAttempts: 3,
		RetryStrategy: models.RetryStrategy{
			Kind: models.RetryExponential, BaseSeconds: 10, Factor: 2, MaxSeconds: 300,
		},
	}
}

// RefreshRelatedRetryOptions returns the spawn options every refresh-related
// task must use: two attempts, fixed 30s backoff.
func RefreshRelatedRetryOptions() models.SpawnOptions {
	return models.SpawnOptions{
		MaxAttempts:   2,
		RetryStrategy: models.RetryStrategy{Kind: models.RetryFixed, BaseSeconds: 30},
	}
}
