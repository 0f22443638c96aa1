package probeagent

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linkmind-dev/linkmind/internal/models"
	"github.com/linkmind-dev/linkmind/internal/scrape"
)

type fakeExtractor struct {
	result scrape.ArticleResult
	err    error
}

func (f fakeExtractor) Extract(ctx context.Context, url string) (scrape.ArticleResult, error) {
	return f.result, f.err
}

func TestFetch_DispatchesWebURLsToExtractor(t *testing.T) {
	f := &Fetcher{Extractor: fakeExtractor{result: scrape.ArticleResult{
		Title:     "A title",
		Markdown:  "body",
		ImageURLs: []string{"https://example.com/a.png"},
	}}}

	data, err := f.Fetch(context.Background(), models.URLKindWeb, "https://example.com/post")

	require.NoError(t, err)
	require.NotNil(t, data.Title)
	assert.Equal(t, "A title", *data.Title)
	assert.Equal(t, "body", data.Markdown)
	require.Len(t, data.RawMedia, 1)
	assert.Equal(t, "image", data.RawMedia[0].Type)
}

func TestFetch_WebResultLeavesEmptyFieldsNil(t *testing.T) {
	f := &Fetcher{Extractor: fakeExtractor{result: scrape.ArticleResult{Markdown: "body"}}}

	data, err := f.Fetch(context.Background(), models.URLKindWeb, "https://example.com/post")

	require.NoError(t, err)
	assert.Nil(t, data.Title)
	assert.Nil(t, data.OGTitle)
}

func TestFetchTwitter_RunsConfiguredCommandAndParsesOutput(t *testing.T) {
	f := &Fetcher{TwitterCommand: []string{"sh", "-c", `printf '{"Markdown":"a tweet","ImageURLs":["https://example.com/a.png"]}'`}}

	data, err := f.Fetch(context.Background(), models.URLKindTwitter, "https://twitter.com/x/status/1")

	require.NoError(t, err)
	assert.Equal(t, "a tweet", data.Markdown)
	require.Len(t, data.RawMedia, 1)
	assert.Equal(t, "https://example.com/a.png", data.RawMedia[0].URL)
}

func TestFetchTwitter_ErrorsWithoutConfiguredCommand(t *testing.T) {
	f := &Fetcher{}

	_, err := f.Fetch(context.Background(), models.URLKindTwitter, "https://twitter.com/x/status/1")

	assert.Error(t, err)
}
