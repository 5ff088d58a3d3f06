// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package llm

import (
	"context"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"
	aoption "github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rotisserie/eris"
)

const (
	defaultClaudeModel     = "claude-sonnet-4-5-20250929"
	defaultClaudeMaxTokens = 4096
)

// ClaudeClient implements Generator on the Anthropic Messages API. It has no
// file ingest service; papers reach it as converted text.
type ClaudeClient struct {
	client sdk.Client
	model  string
}

// NewClaudeClient creates a Claude client. baseURL may be empty.
func NewClaudeClient(apiKey, model, baseURL string) *ClaudeClient {
	opts := []aoption.RequestOption{aoption.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, aoption.WithBaseURL(baseURL))
	}
	if model == "" {
		model = defaultClaudeModel
	}
	return &ClaudeClient{client: sdk.NewClient(opts...), model: model}
}

// Generate sends the text parts as content blocks of one user message.
func (c *ClaudeClient) Generate(ctx context.Context, model string, parts ...Part) (string, error) {
	if model == "" {
		model = c.model
	}
	blocks := make([]sdk.ContentBlockParamUnion, 0, len(parts))
	for _, p := range parts {
		if p.File != nil {
			return "", ErrFilePartsUnsupported
		}
		if p.Text != "" {
			blocks = append(blocks, sdk.NewTextBlock(p.Text))
		}
	}
	if len(blocks) == 0 {
		return "", eris.New("claude: empty prompt")
	}

	msg, err := c.client.Messages.New(ctx, sdk.MessageNewParams{
		Model:     sdk.Model(model),
		MaxTokens: defaultClaudeMaxTokens,
		Messages:  []sdk.MessageParam{sdk.NewUserMessage(blocks...)},
	})
	if err != nil {
		return "", eris.Wrap(err, "claude: create message")
	}

	var b strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	if b.Len() == 0 {
		return "", eris.New("claude: no text content in response")
	}
	return b.String(), nil
}
