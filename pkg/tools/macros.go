package tools

import (
	"context"
	"fmt"

	"github.com/LetsVenture2021/FollowGPT/pkg/macro"
	"github.com/LetsVenture2021/FollowGPT/pkg/toolexecutor"
)

func createMacroTool(macros macro.Store) toolexecutor.ToolDescriptor {
	return toolexecutor.ToolDescriptor{
		Name:         "create_macro",
		Description:  "Create a named macro with ordered steps (tool or shell).",
		Mutate:       true,
		Capabilities: []toolexecutor.Capability{toolexecutor.CapMacrosManage},
		InputSchema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"name":  nonEmptyString(),
				"steps": map[string]interface{}(macro.StepsSchema()),
			},
			"required":             []string{"name", "steps"},
			"additionalProperties": false,
		},
		OutputSchema: statusOutput(),
		Handler: func(ctx context.Context, input map[string]interface{}, execCtx *toolexecutor.ExecutionContext) (interface{}, error) {
			name := stringParam(input, "name", "")
			steps, err := macro.StepsFromValue(input["steps"])
			if err != nil {
				return nil, err
			}
			if err := macros.SaveMacro(ctx, name, steps); err != nil {
				return nil, err
			}
			execCtx.Log(fmt.Sprintf("Macro '%s' saved (%d steps).", name, len(steps)), nil)
			return map[string]interface{}{"status": "ok"}, nil
		},
	}
}

func listMacrosTool(macros macro.Store) toolexecutor.ToolDescriptor {
	return toolexecutor.ToolDescriptor{
		Name:         "list_macros",
		Description:  "List stored macros.",
		Capabilities: []toolexecutor.Capability{toolexecutor.CapMacrosManage},
		InputSchema: map[string]interface{}{
			"type":                 "object",
			"additionalProperties": false,
		},
		OutputSchema: map[string]interface{}{
			"type":       "object",
			"properties": map[string]interface{}{"macros": map[string]interface{}{"type": "array"}},
			"required":   []string{"macros"},
		},
		Handler: func(ctx context.Context, _ map[string]interface{}, _ *toolexecutor.ExecutionContext) (interface{}, error) {
			all, err := macros.LoadMacros(ctx)
			if err != nil {
				return nil, err
			}
			if all == nil {
				all = []macro.Macro{}
			}
			return map[string]interface{}{"macros": all}, nil
		},
	}
}

func runMacroTool(runner *macro.Runner) toolexecutor.ToolDescriptor {
	return toolexecutor.ToolDescriptor{
		Name:        "run_macro",
		Description: "Run a stored macro (tool steps and shell commands).",
		Mutate:      true,
		Capabilities: []toolexecutor.Capability{
			toolexecutor.CapMacrosManage,
			toolexecutor.CapProcessExec,
			toolexecutor.CapFilesRead,
			toolexecutor.CapFilesWrite,
			toolexecutor.CapFilesDelete,
		},
		InputSchema: map[string]interface{}{
			"type":                 "object",
			"properties":           map[string]interface{}{"name": nonEmptyString()},
			"required":             []string{"name"},
			"additionalProperties": false,
		},
		OutputSchema: map[string]interface{}{
			"type":       "object",
			"properties": map[string]interface{}{"results": map[string]interface{}{"type": "array"}},
			"required":   []string{"results"},
		},
		Handler: func(ctx context.Context, input map[string]interface{}, execCtx *toolexecutor.ExecutionContext) (interface{}, error) {
			results, err := runner.Run(ctx, stringParam(input, "name", ""), execCtx)
			if err != nil {
				return nil, err
			}
			if results == nil {
				results = []macro.StepResult{}
			}
			return map[string]interface{}{"results": results}, nil
		},
	}
}
