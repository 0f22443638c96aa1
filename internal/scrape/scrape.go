// Package scrape defines the external collaborators the pipeline's scrape
// step dispatches to: a JS-capable article extractor, a Twitter-specific
// fetcher, and an image OCR helper. Concrete adapters here are minimal
// reference implementations; production deployments are expected to swap in
// a real headless-browser extractor and OCR service behind these same
// interfaces.
package scrape

import "context"

// URLKind classifies a URL for dispatch purposes, matching models.URLKind.
type URLKind string

// URL kinds.
const (
	URLKindTwitter URLKind = "twitter"
	URLKindWeb     URLKind = "web"
)

// ClassifyURL returns URLKindTwitter for twitter.com/x.com links, else
// URLKindWeb.
func ClassifyURL(url string) URLKind {
	if isTwitterURL(url) {
		return URLKindTwitter
	}
	return URLKindWeb
}

// ArticleResult is what the cloud-scrape path persists to a Link.
type ArticleResult struct {
	Title         string
	Markdown      string
	OGTitle       string
	OGDescription string
	OGImage       string
	OGSiteName    string
	OGType        string
	ImageURLs     []string
}

// ArticleExtractor renders url with a JS-capable browser and extracts its
// readable content plus Open Graph metadata.
type ArticleExtractor interface {
	Extract(ctx context.Context, url string) (ArticleResult, error)
}

// TweetResult is what a Twitter-specific fetch returns.
type TweetResult struct {
	Markdown  string
	ImageURLs []string
}

// TwitterFetcher fetches tweet content and media via a Twitter-specific
// path (e.g. a probe-side subprocess), since tweets are not reliably
// scrapable from a cloud IP range.
type TwitterFetcher interface {
	Fetch(ctx context.Context, url string) (TweetResult, error)
}

// ImageOCRHelper extracts any text rendered in an image, used to fold
// screenshot/meme text into the markdown the summarizer sees.
type ImageOCRHelper interface {
	OCR(ctx context.Context, imageURL string) (string, error)
}
