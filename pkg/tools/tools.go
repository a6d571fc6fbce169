// Package tools provides the built-in tool set: filesystem, archive, search,
// macro and OS-integration tools.
//
// Every tool that touches the filesystem authorizes each path it reads or
// writes through the execution context's policy before touching it.
//
// Usage:
//
//	reg := toolexecutor.NewRegistry()
//	runner := macro.NewRunner(toolexecutor.NewExecutor(reg), db, shell)
//	err := tools.RegisterAll(reg, tools.Options{Macros: db, Runner: runner, Index: db, Tags: db})
package tools

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/LetsVenture2021/FollowGPT/pkg/macro"
	"github.com/LetsVenture2021/FollowGPT/pkg/store"
	"github.com/LetsVenture2021/FollowGPT/pkg/toolexecutor"
	"github.com/rs/zerolog/log"
)

// DocumentIndex is the full-text index used by the search tools
type DocumentIndex interface {
	IndexFile(ctx context.Context, path string) (bool, error)
	SearchDocuments(ctx context.Context, query string, limit int) ([]store.SearchHit, error)
}

// TagStore records file tags
type TagStore interface {
	TagFile(ctx context.Context, file, tag string) error
}

// Options wires the collaborators of tools that need one. Tools whose
// collaborator is nil are not registered.
type Options struct {
	Macros macro.Store
	Runner *macro.Runner
	Index  DocumentIndex
	Tags   TagStore
}

// RegisterAll registers every built-in tool
func RegisterAll(reg *toolexecutor.Registry, opts Options) error {
	if reg == nil {
		return errors.New("tool registry is required")
	}

	tools := []toolexecutor.ToolDescriptor{
		findPDFsTool(),
		diskReportTool(),
		dedupeFilesTool(),
		moveFilesTool(),
		copyFilesTool(),
		renamePatternTool(),
		grepSearchTool(),
		zipFilesTool(),
		unzipArchiveTool(),
		createHotkeyTool(),
		createServiceTool(),
		tagFileTool(opts.Tags),
	}

	if opts.Index != nil {
		tools = append(tools, searchIndexTool(opts.Index), indexFilesTool(opts.Index))
	} else {
		log.Debug().Msg("No document index configured, search tools disabled")
	}

	if opts.Macros != nil {
		tools = append(tools, createMacroTool(opts.Macros), listMacrosTool(opts.Macros))
	}
	if opts.Runner != nil {
		tools = append(tools, runMacroTool(opts.Runner))
	}

	for _, tool := range tools {
		if err := reg.Register(tool); err != nil {
			return fmt.Errorf("failed to register tool %s: %w", tool.Name, err)
		}
	}

	log.Debug().Int("count", len(tools)).Msg("Built-in tools registered")
	return nil
}

// baseDir returns the directory relative paths in input resolve against:
// input[key] when set, else the execution context's working directory.
func baseDir(input map[string]interface{}, key string, execCtx *toolexecutor.ExecutionContext) string {
	cwd := execCtx.WorkingDir()
	if v := stringParam(input, key, ""); v != "" {
		return resolve(cwd, v)
	}
	return cwd
}

func resolve(base, p string) string {
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(base, p)
}

func stringParam(input map[string]interface{}, key, fallback string) string {
	if v, ok := input[key].(string); ok && v != "" {
		return v
	}
	return fallback
}

func boolParam(input map[string]interface{}, key string, fallback bool) bool {
	if v, ok := input[key].(bool); ok {
		return v
	}
	return fallback
}

func intParam(input map[string]interface{}, key string, fallback int) int {
	switch v := input[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	case int64:
		return int(v)
	}
	return fallback
}

func stringsParam(input map[string]interface{}, key string) []string {
	switch v := input[key].(type) {
	case []string:
		return v
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func stringType() map[string]interface{} {
	return map[string]interface{}{"type": "string"}
}

func nonEmptyString() map[string]interface{} {
	return map[string]interface{}{"type": "string", "minLength": 1}
}

func stringArray() map[string]interface{} {
	return map[string]interface{}{"type": "array", "items": stringType()}
}

func statusOutput() map[string]interface{} {
	return map[string]interface{}{
		"type":       "object",
		"properties": map[string]interface{}{"status": stringType()},
		"required":   []string{"status"},
	}
}
