package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/LetsVenture2021/FollowGPT/internal/observability"
	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicProvider completes prompts with Anthropic Claude
type AnthropicProvider struct {
	client      anthropic.Client
	model       string
	maxTokens   int
	temperature float64
}

// NewAnthropicProvider creates a new Anthropic provider
func NewAnthropicProvider(cfg Config) *AnthropicProvider {
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &AnthropicProvider{
		client:      anthropic.NewClient(opts...),
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
	}
}

// Provider returns the provider name
func (p *AnthropicProvider) Provider() string {
	return ProviderAnthropic
}

// Complete sends prompt as a single user message and returns the text of the reply
func (p *AnthropicProvider) Complete(ctx context.Context, prompt string) (string, error) {
	start := time.Now()

	params := anthropic.MessageNewParams{
		Model: anthropic.Model(p.model),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
		MaxTokens: int64(p.maxTokens),
	}
	if p.temperature > 0 {
		params.Temperature = anthropic.Float(p.temperature)
	}

	message, err := p.client.Messages.New(ctx, params)
	if err != nil {
		observability.RecordLLMRequest(ProviderAnthropic, time.Since(start), false)
		return "", fmt.Errorf("anthropic completion failed: %w", err)
	}

	var b strings.Builder
	for _, block := range message.Content {
		switch variant := block.AsAny().(type) {
		case anthropic.TextBlock:
			b.WriteString(variant.Text)
		}
	}

	observability.RecordLLMRequest(ProviderAnthropic, time.Since(start), true)
	return b.String(), nil
}
