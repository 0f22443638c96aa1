// Package llm defines the summarization, insight-generation, and embedding
// collaborators the pipeline depends on, plus Anthropic/Ollama-backed
// adapters for them.
package llm

import "context"

// Summary is the parsed result of a summarize call.
type Summary struct {
	Summary string
	Tags    []string
}

// Summarizer produces a short summary and a tag list from article markdown.
type Summarizer interface {
	Summarize(ctx context.Context, markdown string) (Summary, error)
}

// RelatedContext is one related link's context passed to the insight
// generator.
type RelatedContext struct {
	Title   string
	URL     string
	Summary string
}

// InsightGenerator produces free-form commentary relating a link to its
// neighbors.
type InsightGenerator interface {
	GenerateInsight(ctx context.Context, title, url, summary string, related []RelatedContext) (string, error)
}

// Embedder turns text into a fixed-dimension vector for similarity search.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}
