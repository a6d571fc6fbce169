package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/LetsVenture2021/FollowGPT/internal/observability"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAIProvider completes prompts with the OpenAI chat completions API
type OpenAIProvider struct {
	client      openai.Client
	model       string
	maxTokens   int
	temperature float64
}

// NewOpenAIProvider creates a new OpenAI provider
func NewOpenAIProvider(cfg Config) *OpenAIProvider {
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &OpenAIProvider{
		client:      openai.NewClient(opts...),
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
	}
}

// Provider returns the provider name
func (p *OpenAIProvider) Provider() string {
	return ProviderOpenAI
}

// Complete sends prompt as a single user message and returns the first choice
func (p *OpenAIProvider) Complete(ctx context.Context, prompt string) (string, error) {
	start := time.Now()

	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(p.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
	}
	if p.maxTokens > 0 {
		params.MaxTokens = openai.Int(int64(p.maxTokens))
	}
	if p.temperature > 0 {
		params.Temperature = openai.Float(p.temperature)
	}

	response, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		observability.RecordLLMRequest(ProviderOpenAI, time.Since(start), false)
		return "", fmt.Errorf("openai completion failed: %w", err)
	}

	if len(response.Choices) == 0 {
		observability.RecordLLMRequest(ProviderOpenAI, time.Since(start), false)
		return "", fmt.Errorf("no response choices returned")
	}

	observability.RecordLLMRequest(ProviderOpenAI, time.Since(start), true)
	return response.Choices[0].Message.Content, nil
}
