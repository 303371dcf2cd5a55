package analysis

import (
	"context"
	"fmt"
	"strings"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/sujalbistaa/retroboard/internal/models"
)

const defaultAnthropicModel = "claude-sonnet-4-20250514"

// Anthropic summarizes the board with Claude.
type Anthropic struct {
	client anthropic.Client
	model  string
	topic  string
}

// NewAnthropic creates a Claude-backed summarizer. Empty model and baseURL
// fall back to defaults. Retries are left to the next aggregation run.
func NewAnthropic(apiKey, model, baseURL, topic string) *Anthropic {
	if model == "" {
		model = defaultAnthropicModel
	}
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &Anthropic{
		client: anthropic.NewClient(opts...),
		model:  model,
		topic:  topic,
	}
}

func (a *Anthropic) Summarize(ctx context.Context, items []models.Item) (Analysis, error) {
	msg, err := a.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(a.model),
		MaxTokens: 2048,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(BuildPrompt(items, a.topic))),
		},
	})
	if err != nil {
		return Analysis{}, fmt.Errorf("anthropic: %w", err)
	}

	var text strings.Builder
	for _, block := range msg.Content {
		text.WriteString(block.Text)
	}
	if text.Len() == 0 {
		return Analysis{}, fmt.Errorf("anthropic: no content returned")
	}

	result, err := ParseAnalysis(text.String())
	if err != nil {
		return Analysis{}, fmt.Errorf("anthropic: %w (raw: %s)", err, truncate(text.String(), 300))
	}
	return result, nil
}
