package agent

import (
	"fmt"

	"github.com/LetsVenture2021/FollowGPT/pkg/planner"
)

// Supported completion backends
const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
	ProviderStatic    = "static"
)

const (
	defaultAnthropicModel = "claude-sonnet-4-20250514"
	defaultOpenAIModel    = "gpt-4o-mini"
	defaultMaxTokens      = 2048
)

// Client is a completion backend that can name itself
type Client interface {
	planner.LLMClient

	// Provider returns the provider name
	Provider() string
}

// Config selects and configures a completion backend
type Config struct {
	Provider       string
	APIKey         string
	Model          string
	BaseURL        string
	MaxTokens      int
	Temperature    float64
	StaticResponse string
}

// NewClient creates a completion client based on cfg.Provider
func NewClient(cfg Config) (Client, error) {
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = defaultMaxTokens
	}

	switch cfg.Provider {
	case ProviderAnthropic:
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("anthropic provider requires an API key")
		}
		if cfg.Model == "" {
			cfg.Model = defaultAnthropicModel
		}
		return NewAnthropicProvider(cfg), nil
	case ProviderOpenAI:
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("openai provider requires an API key")
		}
		if cfg.Model == "" {
			cfg.Model = defaultOpenAIModel
		}
		return NewOpenAIProvider(cfg), nil
	case ProviderStatic:
		if cfg.StaticResponse == "" {
			return nil, fmt.Errorf("static provider requires a static response")
		}
		return NewStaticClient(cfg.StaticResponse), nil
	default:
		return nil, fmt.Errorf("unsupported provider: %s", cfg.Provider)
	}
}
