package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// messagesClient captures the subset of the Anthropic SDK used by the
// adapter, so tests can substitute a fake without a live API key.
type messagesClient interface {
	New(ctx context.Context, body sdk.MessageNewParams, opts ...option.RequestOption) (*sdk.Message, error)
}

// AnthropicClient implements Summarizer and InsightGenerator on top of the
// Anthropic Messages API.
type AnthropicClient struct {
	msg       messagesClient
	model     string
	maxTokens int64
}

// NewAnthropicClient builds an adapter from an API key and model identifier
// (e.g. string(sdk.ModelClaudeSonnet4_5)).
func NewAnthropicClient(apiKey, model string, maxTokens int64) (*AnthropicClient, error) {
	if apiKey == "" {
		return nil, errors.New("llm: anthropic api key is required")
	}
	if model == "" {
		return nil, errors.New("llm: anthropic model is required")
	}
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	ac := sdk.NewClient(option.WithAPIKey(apiKey))
	return &AnthropicClient{msg: &ac.Messages, model: model, maxTokens: maxTokens}, nil
}

const summarizeSystemPrompt = `You summarize articles for a personal link library. ` +
	`Respond with a single JSON object of the shape {"summary": string, "tags": string[]}. ` +
	`The summary should be 2-4 sentences. Tags should be 3-6 lowercase single-or-two-word topics. ` +
	`Respond with JSON only, no surrounding prose.`

// Summarize asks the model for a structured summary, falling back to the raw
// response text if it isn't valid JSON.
func (c *AnthropicClient) Summarize(ctx context.Context, markdown string) (Summary, error) {
	msg, err := c.complete(ctx, summarizeSystemPrompt, markdown)
	if err != nil {
		return Summary{}, err
	}

	var parsed struct {
		Summary string   `json:"summary"`
		Tags    []string `json:"tags"`
	}
	if err := json.Unmarshal([]byte(extractJSONObject(msg)), &parsed); err != nil {
		return Summary{Summary: msg, Tags: nil}, nil
	}
	return Summary{Summary: parsed.Summary, Tags: parsed.Tags}, nil
}

const insightSystemPrompt = `You write one short paragraph connecting an article to related items already ` +
	`saved in the reader's library. Reference the related items by title where it adds insight. Be concrete, ` +
	`avoid generic statements, and keep it under 120 words.`

// GenerateInsight asks the model for free-form commentary relating linkId's
// content to its already-computed related links.
func (c *AnthropicClient) GenerateInsight(ctx context.Context, title, url, summary string, related []RelatedContext) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "Title: %s\nURL: %s\nSummary: %s\n\n", title, url, summary)
	if len(related) == 0 {
		b.WriteString("No related items are saved yet.")
	} else {
		b.WriteString("Related items already saved:\n")
		for _, r := range related {
			fmt.Fprintf(&b, "- %s (%s): %s\n", r.Title, r.URL, r.Summary)
		}
	}

	return c.complete(ctx, insightSystemPrompt, b.String())
}

func (c *AnthropicClient) complete(ctx context.Context, system, user string) (string, error) {
	params := sdk.MessageNewParams{
		Model:     sdk.Model(c.model),
		MaxTokens: c.maxTokens,
		System:    []sdk.TextBlockParam{{Text: system}},
		Messages:  []sdk.MessageParam{sdk.NewUserMessage(sdk.NewTextBlock(user))},
	}

	msg, err := c.msg.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("llm: anthropic messages.new: %w", err)
	}

	var out strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			out.WriteString(block.Text)
		}
	}
	if out.Len() == 0 {
		return "", errors.New("llm: anthropic response had no text content")
	}
	return out.String(), nil
}

// extractJSONObject returns the substring from the first '{' to the last
// '}' in s, tolerating a model that wraps its JSON in prose or code fences.
func extractJSONObject(s string) string {
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start < 0 || end < start {
		return s
	}
	return s[start : end+1]
}
