package agent

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/LetsVenture2021/FollowGPT/internal/observability"
)

// StaticClient replays canned completions. Responses are returned in order;
// once exhausted the last one repeats.
type StaticClient struct {
	mu        sync.Mutex
	responses []string
	calls     int

	// Err, when set, is returned instead of a response
	Err error

	// Prompts records every prompt received
	Prompts []string
}

// NewStaticClient creates a client that answers with responses
func NewStaticClient(responses ...string) *StaticClient {
	return &StaticClient{responses: responses}
}

// Provider returns the provider name
func (c *StaticClient) Provider() string {
	return ProviderStatic
}

// Complete returns the next canned response
func (c *StaticClient) Complete(_ context.Context, prompt string) (string, error) {
	start := time.Now()
	c.mu.Lock()
	defer c.mu.Unlock()

	c.Prompts = append(c.Prompts, prompt)
	if c.Err != nil {
		observability.RecordLLMRequest(ProviderStatic, time.Since(start), false)
		return "", c.Err
	}
	if len(c.responses) == 0 {
		observability.RecordLLMRequest(ProviderStatic, time.Since(start), false)
		return "", fmt.Errorf("static client has no responses")
	}

	i := c.calls
	if i >= len(c.responses) {
		i = len(c.responses) - 1
	}
	c.calls++

	observability.RecordLLMRequest(ProviderStatic, time.Since(start), true)
	return c.responses[i], nil
}

// Calls returns how many completions were requested
func (c *StaticClient) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.Prompts)
}
