package llm

import (
	"context"
	"testing"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMessagesClient struct {
	text string
}

func (f *fakeMessagesClient) New(ctx context.Context, body sdk.MessageNewParams, opts ...option.RequestOption) (*sdk.Message, error) {
	return &sdk.Message{
		Content: []sdk.ContentBlockUnion{{Type: "text", Text: f.text}},
	}, nil
}

func TestAnthropicClient_Summarize_ParsesJSON(t *testing.T) {
	c := &AnthropicClient{
		msg:       &fakeMessagesClient{text: `{"summary": "a short summary", "tags": ["go", "testing"]}`},
		model:     "claude-sonnet",
		maxTokens: 256,
	}
	s, err := c.Summarize(context.Background(), "# article markdown")
	require.NoError(t, err)
	assert.Equal(t, "a short summary", s.Summary)
	assert.Equal(t, []string{"go", "testing"}, s.Tags)
}

func TestAnthropicClient_Summarize_FallsBackOnInvalidJSON(t *testing.T) {
	c := &AnthropicClient{
		msg:       &fakeMessagesClient{text: "this is not json"},
		model:     "claude-sonnet",
		maxTokens: 256,
	}
	s, err := c.Summarize(context.Background(), "# article markdown")
	require.NoError(t, err)
	assert.Equal(t, "this is not json", s.Summary)
	assert.Nil(t, s.Tags)
}

func TestAnthropicClient_GenerateInsight(t *testing.T) {
	c := &AnthropicClient{
		msg:       &fakeMessagesClient{text: "This connects nicely to your other saved article."},
		model:     "claude-sonnet",
		maxTokens: 256,
	}
	insight, err := c.GenerateInsight(context.Background(), "Title", "https://example.com", "summary text", []RelatedContext{
		{Title: "Other", URL: "https://example.com/other", Summary: "other summary"},
	})
	require.NoError(t, err)
	assert.Equal(t, "This connects nicely to your other saved article.", insight)
}
