// Package agent connects a completion backend to the planner and the plan
// executor and drives one user request end to end.
//
// Invariants:
// - Planning issues exactly one completion request per prompt.
// - A planning failure returns before any tool runs.
// - Run logging failures are logged, never returned.
//
// Usage:
//
//	client, _ := agent.NewClient(agent.Config{Provider: agent.ProviderAnthropic, APIKey: key})
//	rt, _ := agent.NewRuntime(agent.RuntimeConfig{Registry: reg, Client: client})
//	result, _ := rt.HandlePrompt(ctx, "report disk usage", agent.Overrides{})
//	_ = result
package agent
