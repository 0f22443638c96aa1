package probeagent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/exec"
	"time"

	"github.com/linkmind-dev/linkmind/internal/models"
	"github.com/linkmind-dev/linkmind/internal/scrape"
)

const (
	twitterFetchTimeout  = 60 * time.Second
	browserNavTimeout    = 30 * time.Second
	browserSettleTimeout = 2 * time.Second
)

// Fetcher performs one local scrape in response to a scrape_request event:
// a Twitter CLI subprocess for tweets, an article extractor for everything
// else.
type Fetcher struct {
	// TwitterCommand is the external CLI invoked for Twitter fetches. It
	// receives the tweet URL as its final argument, after any arguments in
	// TwitterCommand[1:], and must print a JSON scrape.TweetResult to stdout.
	TwitterCommand []string
	Extractor      scrape.ArticleExtractor
}

// NewFetcher builds a Fetcher whose web extractor is scrape.HTTPExtractor, a
// plain HTTP fetch with no browser and no JavaScript rendering, and, if
// twitterCommand is non-empty, an external Twitter CLI.
func NewFetcher(twitterCommand []string) *Fetcher {
	return &Fetcher{
		TwitterCommand: twitterCommand,
		Extractor:      scrape.NewHTTPExtractor(&http.Client{Timeout: browserNavTimeout + browserSettleTimeout}),
	}
}

// Fetch dispatches to the Twitter subprocess or the article extractor
// depending on urlType, returning a models.ScrapeData ready to post back.
func (f *Fetcher) Fetch(ctx context.Context, urlType models.URLKind, url string) (models.ScrapeData, error) {
	if urlType == models.URLKindTwitter {
		return f.fetchTwitter(ctx, url)
	}
	return f.fetchWeb(ctx, url)
}

func (f *Fetcher) fetchTwitter(ctx context.Context, url string) (models.ScrapeData, error) {
	if len(f.TwitterCommand) == 0 {
		return models.ScrapeData{}, fmt.Errorf("probeagent: no twitter fetch command configured")
	}

	ctx, cancel := context.WithTimeout(ctx, twitterFetchTimeout)
	defer cancel()

	args := append(append([]string{}, f.TwitterCommand[1:]...), url)
	cmd := exec.CommandContext(ctx, f.TwitterCommand[0], args...)
	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	if err := cmd.Run(); err != nil {
		return models.ScrapeData{}, fmt.Errorf("probeagent: twitter fetch subprocess: %w", err)
	}

	var tweet scrape.TweetResult
	if err := json.Unmarshal(stdout.Bytes(), &tweet); err != nil {
		return models.ScrapeData{}, fmt.Errorf("probeagent: parsing twitter fetch output: %w", err)
	}

	media := make([]models.RawMedia, 0, len(tweet.ImageURLs))
	for _, u := range tweet.ImageURLs {
		media = append(media, models.RawMedia{Type: "image", URL: u})
	}
	return models.ScrapeData{Markdown: tweet.Markdown, RawMedia: media}, nil
}

func (f *Fetcher) fetchWeb(ctx context.Context, url string) (models.ScrapeData, error) {
	navCtx, cancel := context.WithTimeout(ctx, browserNavTimeout+browserSettleTimeout)
	defer cancel()

	article, err := f.Extractor.Extract(navCtx, url)
	if err != nil {
		return models.ScrapeData{}, fmt.Errorf("probeagent: web fetch: %w", err)
	}

	media := make([]models.RawMedia, 0, len(article.ImageURLs))
	for _, u := range article.ImageURLs {
		media = append(media, models.RawMedia{Type: "image", URL: u})
	}

	return models.ScrapeData{
		Title:         strPtr(article.Title),
		Markdown:      article.Markdown,
		OGTitle:       strPtr(article.OGTitle),
		OGDescription: strPtr(article.OGDescription),
		OGImage:       strPtr(article.OGImage),
		OGSiteName:    strPtr(article.OGSiteName),
		OGType:        strPtr(article.OGType),
		RawMedia:      media,
	}, nil
}

func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
