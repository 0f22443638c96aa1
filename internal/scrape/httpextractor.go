package scrape

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"golang.org/x/net/html"
)

// HTTPExtractor is a minimal ArticleExtractor that fetches a page over
// plain HTTP and walks its DOM with golang.org/x/net/html. It has no
// JavaScript rendering; it is a good-enough stand-in to drive the pipeline
// end to end until a real headless-browser extractor is deployed.
type HTTPExtractor struct {
	client *http.Client
}

// NewHTTPExtractor builds an extractor using client, or http.DefaultClient
// if nil.
func NewHTTPExtractor(client *http.Client) *HTTPExtractor {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPExtractor{client: client}
}

// Extract implements ArticleExtractor.
func (e *HTTPExtractor) Extract(ctx context.Context, url string) (ArticleResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return ArticleResult{}, err
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return ArticleResult{}, fmt.Errorf("scrape: fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return ArticleResult{}, fmt.Errorf("scrape: fetch %s: status %d", url, resp.StatusCode)
	}

	doc, err := html.Parse(resp.Body)
	if err != nil {
		return ArticleResult{}, fmt.Errorf("scrape: parse %s: %w", url, err)
	}

	result := ArticleResult{}
	var body strings.Builder
	var images []string

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "title":
				if n.FirstChild != nil && result.Title == "" {
					result.Title = strings.TrimSpace(n.FirstChild.Data)
				}
			case "meta":
				applyMetaTag(n, &result)
			case "img":
				if src := attr(n, "src"); src != "" {
					images = append(images, src)
				}
			case "script", "style", "nav", "footer", "header":
				return // skip subtree
			}
		}
		if n.Type == html.TextNode {
			text := strings.TrimSpace(n.Data)
			if text != "" {
				body.WriteString(text)
				body.WriteString("\n\n")
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	result.Markdown = strings.TrimSpace(body.String())
	result.ImageURLs = images
	return result, nil
}

func applyMetaTag(n *html.Node, result *ArticleResult) {
	property := attr(n, "property")
	name := attr(n, "name")
	content := attr(n, "content")
	if content == "" {
		return
	}
	switch {
	case property == "og:title":
		result.OGTitle = content
	case property == "og:description", name == "description":
		result.OGDescription = content
	case property == "og:image":
		result.OGImage = content
	case property == "og:site_name":
		result.OGSiteName = content
	case property == "og:type":
		result.OGType = content
	}
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}
