package planner

import (
	"context"
	"fmt"
	"strings"

	"github.com/LetsVenture2021/FollowGPT/internal/observability"
	"github.com/LetsVenture2021/FollowGPT/pkg/toolexecutor"
	"github.com/rs/zerolog/log"
)

// LLMClient is a single-shot text completion backend
type LLMClient interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Planner turns a user prompt into a Plan using the live tool catalogue
type Planner struct {
	registry *toolexecutor.Registry
	client   LLMClient
}

// NewPlanner creates a new planner instance
func NewPlanner(registry *toolexecutor.Registry, client LLMClient) *Planner {
	return &Planner{
		registry: registry,
		client:   client,
	}
}

// PlanFromPrompt issues exactly one completion request and recovers a plan
// from its output. Steps are not validated here.
func (p *Planner) PlanFromPrompt(ctx context.Context, prompt string) (*Plan, error) {
	if p.client == nil {
		return nil, fmt.Errorf("no LLM client configured")
	}

	tools := p.registry.List()
	raw, err := p.client.Complete(ctx, BuildPrompt(tools, prompt))
	if err != nil {
		observability.RecordPlan("llm_error")
		return nil, fmt.Errorf("plan completion failed: %w", err)
	}

	plan, err := ParsePlan(raw)
	if err != nil {
		observability.RecordPlan("parse_error")
		log.Warn().
			Err(err).
			Int("output_len", len(raw)).
			Msg("Could not recover plan from model output")
		return nil, err
	}

	observability.RecordPlan("planned")
	log.Info().
		Str("summary", plan.Summary).
		Int("steps", len(plan.Steps)).
		Int("tools", len(tools)).
		Msg("Plan generated")

	return plan, nil
}

// BuildPrompt renders the planning instructions, one line per tool, followed by the user prompt
func BuildPrompt(tools []toolexecutor.ToolInfo, prompt string) string {
	var b strings.Builder

	b.WriteString("You are a planner. Given a user prompt and available tools, output JSON:\n")
	b.WriteString(`{ "summary": "...", "steps": [ { "tool": "name", "input": { ... }, "rationale": "..." } ] }`)
	b.WriteString("\nUse only available tools. Minimal sufficient steps. No commentary.\n")
	b.WriteString("Tools:\n")
	for _, t := range tools {
		caps := make([]string, len(t.Capabilities))
		for i, c := range t.Capabilities {
			caps[i] = string(c)
		}
		fmt.Fprintf(&b, "- %s: %s (mutate=%t, caps=[%s])\n", t.Name, t.Description, t.Mutate, strings.Join(caps, ","))
	}
	b.WriteString("\nUser: ")
	b.WriteString(prompt)
	b.WriteString("\nPlan:")

	return b.String()
}
