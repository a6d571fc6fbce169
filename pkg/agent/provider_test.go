package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClient(t *testing.T) {
	tests := []struct {
		name     string
		cfg      Config
		provider string
		wantErr  bool
	}{
		{name: "anthropic", cfg: Config{Provider: ProviderAnthropic, APIKey: "k"}, provider: ProviderAnthropic},
		{name: "openai", cfg: Config{Provider: ProviderOpenAI, APIKey: "k", BaseURL: "http://localhost:1"}, provider: ProviderOpenAI},
		{name: "static", cfg: Config{Provider: ProviderStatic, StaticResponse: "{}"}, provider: ProviderStatic},
		{name: "anthropic without key", cfg: Config{Provider: ProviderAnthropic}, wantErr: true},
		{name: "openai without key", cfg: Config{Provider: ProviderOpenAI}, wantErr: true},
		{name: "static without response", cfg: Config{Provider: ProviderStatic}, wantErr: true},
		{name: "unknown", cfg: Config{Provider: "gemini"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := NewClient(tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.provider, client.Provider())
		})
	}
}

func TestNewClient_Defaults(t *testing.T) {
	client, err := NewClient(Config{Provider: ProviderAnthropic, APIKey: "k"})
	require.NoError(t, err)
	p := client.(*AnthropicProvider)
	assert.Equal(t, defaultAnthropicModel, p.model)
	assert.Equal(t, defaultMaxTokens, p.maxTokens)

	client, err = NewClient(Config{Provider: ProviderOpenAI, APIKey: "k", Model: "gpt-x", MaxTokens: 10})
	require.NoError(t, err)
	o := client.(*OpenAIProvider)
	assert.Equal(t, "gpt-x", o.model)
	assert.Equal(t, 10, o.maxTokens)
}

func TestStaticClient(t *testing.T) {
	ctx := context.Background()

	t.Run("replays in order then repeats last", func(t *testing.T) {
		c := NewStaticClient("a", "b")
		for _, want := range []string{"a", "b", "b"} {
			got, err := c.Complete(ctx, "p")
			require.NoError(t, err)
			assert.Equal(t, want, got)
		}
		assert.Equal(t, 3, c.Calls())
	})

	t.Run("error", func(t *testing.T) {
		c := NewStaticClient("a")
		c.Err = errors.New("offline")
		_, err := c.Complete(ctx, "p")
		assert.EqualError(t, err, "offline")
		assert.Equal(t, []string{"p"}, c.Prompts)
	})

	t.Run("no responses", func(t *testing.T) {
		_, err := NewStaticClient().Complete(ctx, "p")
		assert.Error(t, err)
	})
}
