package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/LetsVenture2021/FollowGPT/pkg/toolexecutor"
)

// StatusPendingBackend is returned by tools whose OS integration is not implemented
const StatusPendingBackend = "pending_backend"

func createHotkeyTool() toolexecutor.ToolDescriptor {
	return toolexecutor.ToolDescriptor{
		Name:         "create_hotkey",
		Description:  "Register a global hotkey that triggers a command or macro. (Backend required.)",
		Mutate:       true,
		Capabilities: []toolexecutor.Capability{toolexecutor.CapHotkeysManage, toolexecutor.CapProcessExec},
		InputSchema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"combo":  nonEmptyString(),
				"action": nonEmptyString(),
				"backend": map[string]interface{}{
					"type":    "string",
					"enum":    []string{"autohotkey", "iohook", "electron", "hammerspoon", "xbindkeys"},
					"default": "iohook",
				},
			},
			"required":             []string{"combo", "action"},
			"additionalProperties": false,
		},
		OutputSchema: statusOutput(),
		Handler: func(_ context.Context, input map[string]interface{}, execCtx *toolexecutor.ExecutionContext) (interface{}, error) {
			execCtx.Log(fmt.Sprintf("Hotkey request: %s -> %s via %s. Backend not available.",
				stringParam(input, "combo", ""), stringParam(input, "action", ""), stringParam(input, "backend", "iohook")), nil)
			return map[string]interface{}{"status": StatusPendingBackend}, nil
		},
	}
}

func createServiceTool() toolexecutor.ToolDescriptor {
	return toolexecutor.ToolDescriptor{
		Name:         "create_service",
		Description:  "Create a background service for a command.",
		Mutate:       true,
		Capabilities: []toolexecutor.Capability{toolexecutor.CapServicesManage, toolexecutor.CapProcessExec},
		InputSchema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"name":         nonEmptyString(),
				"command":      nonEmptyString(),
				"args":         stringArray(),
				"runAtStartup": map[string]interface{}{"type": "boolean", "default": true},
				"cwd":          stringType(),
				"env": map[string]interface{}{
					"type":                 "object",
					"additionalProperties": stringType(),
				},
			},
			"required":             []string{"name", "command"},
			"additionalProperties": false,
		},
		OutputSchema: statusOutput(),
		Handler: func(_ context.Context, input map[string]interface{}, execCtx *toolexecutor.ExecutionContext) (interface{}, error) {
			if cwd := stringParam(input, "cwd", ""); cwd != "" {
				if err := toolexecutor.AuthorizePaths([]string{resolve(execCtx.WorkingDir(), cwd)}, execCtx); err != nil {
					return nil, err
				}
			}
			command := strings.TrimSpace(stringParam(input, "command", "") + " " + strings.Join(stringsParam(input, "args"), " "))
			execCtx.Log(fmt.Sprintf("Service request: %s -> %s. Backend not available.", stringParam(input, "name", ""), command), nil)
			return map[string]interface{}{"status": StatusPendingBackend}, nil
		},
	}
}

func tagFileTool(tags TagStore) toolexecutor.ToolDescriptor {
	return toolexecutor.ToolDescriptor{
		Name:         "tag_file",
		Description:  "Apply a tag to a file (requires xattr/ADS backend).",
		Mutate:       true,
		Capabilities: []toolexecutor.Capability{toolexecutor.CapTagsManage, toolexecutor.CapFilesWrite},
		InputSchema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"file": nonEmptyString(),
				"tag":  nonEmptyString(),
			},
			"required":             []string{"file", "tag"},
			"additionalProperties": false,
		},
		OutputSchema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"status":   stringType(),
				"recorded": map[string]interface{}{"type": "boolean"},
			},
			"required": []string{"status"},
		},
		Handler: func(ctx context.Context, input map[string]interface{}, execCtx *toolexecutor.ExecutionContext) (interface{}, error) {
			file := resolve(execCtx.WorkingDir(), stringParam(input, "file", ""))
			if err := toolexecutor.AuthorizePaths([]string{file}, execCtx); err != nil {
				return nil, err
			}
			tag := stringParam(input, "tag", "")

			recorded := false
			if tags != nil {
				if err := tags.TagFile(ctx, file, tag); err != nil {
					return nil, err
				}
				recorded = true
			}
			execCtx.Log(fmt.Sprintf("Tag request: file=%s tag=%s. OS backend not available.", file, tag), nil)
			return map[string]interface{}{"status": StatusPendingBackend, "recorded": recorded}, nil
		},
	}
}
