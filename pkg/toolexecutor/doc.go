// Package toolexecutor holds the tool catalogue and the per-invocation
// enforcement pipeline for model-generated tool calls.
//
// Invariants:
// - Tool names are unique; registering an existing name replaces the entry.
// - Capabilities are drawn from a closed set and checked at registration.
// - Inputs are schema-validated before authorization, and authorization
//   (capabilities, then mutation confirmation) completes before a handler runs.
// - Outputs are schema-validated after the handler returns; side effects are
//   never rolled back.
// - Deny path roots always win over allow roots; a nil Policy restricts nothing.
//
// Usage:
//
//	reg := toolexecutor.NewRegistry()
//	_ = reg.Register(toolexecutor.ToolDescriptor{
//		Name:         "echo",
//		Description:  "Echo input",
//		Capabilities: []toolexecutor.Capability{toolexecutor.CapSearchRead},
//		InputSchema:  schema.Schema{"type": "object"},
//		Handler: func(ctx context.Context, in map[string]interface{}, ec *toolexecutor.ExecutionContext) (interface{}, error) {
//			return in, nil
//		},
//	})
//	out, err := toolexecutor.NewExecutor(reg).Invoke(ctx, "echo", map[string]interface{}{"a": 1}, execCtx)
package toolexecutor
