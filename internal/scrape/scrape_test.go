package scrape

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyURL(t *testing.T) {
	assert.Equal(t, URLKindTwitter, ClassifyURL("https://twitter.com/someone/status/1"))
	assert.Equal(t, URLKindTwitter, ClassifyURL("https://x.com/someone/status/1"))
	assert.Equal(t, URLKindWeb, ClassifyURL("https://example.com/article"))
	assert.Equal(t, URLKindWeb, ClassifyURL("not a url"))
}

func TestHTTPExtractor_Extract(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<html><head>
			<title>Example Article</title>
			<meta property="og:description" content="A description">
			<meta property="og:image" content="https://example.com/img.png">
		</head><body><p>Hello world.</p><img src="https://example.com/inline.png"></body></html>`))
	}))
	defer srv.Close()

	e := NewHTTPExtractor(srv.Client())
	result, err := e.Extract(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "Example Article", result.Title)
	assert.Equal(t, "A description", result.OGDescription)
	assert.Equal(t, "https://example.com/img.png", result.OGImage)
	assert.Contains(t, result.Markdown, "Hello world.")
	assert.Contains(t, result.ImageURLs, "https://example.com/inline.png")
}

func TestNoopOCR(t *testing.T) {
	text, err := NoopOCR{}.OCR(context.Background(), "https://example.com/img.png")
	require.NoError(t, err)
	assert.Empty(t, text)
}
