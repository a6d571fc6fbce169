package toolexecutor

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
)

// Policy is the authorization configuration for one execution context.
// Empty lists impose no restriction.
type Policy struct {
	AllowPaths          []string     `json:"allowPaths,omitempty"`
	DenyPaths           []string     `json:"denyPaths,omitempty"`
	AllowedCapabilities []Capability `json:"allowedCapabilities,omitempty"`
	RequireConfirmation bool         `json:"requireConfirmation"`
}

// PolicyEngine authorizes path access and tool invocation. It keeps no
// state between calls; every check reads the policy of the given context.
type PolicyEngine struct {
	approvals *ApprovalManager
}

// NewPolicyEngine creates a new policy engine. A nil approval manager uses
// the default confirmation timeout.
func NewPolicyEngine(approvals *ApprovalManager) *PolicyEngine {
	if approvals == nil {
		approvals = NewApprovalManager(0)
	}
	return &PolicyEngine{approvals: approvals}
}

var defaultPolicyEngine = NewPolicyEngine(nil)

// AuthorizePaths checks targets against the policy of execCtx using the default engine
func AuthorizePaths(targets []string, execCtx *ExecutionContext) error {
	return defaultPolicyEngine.AuthorizePaths(targets, execCtx)
}

// AuthorizeTool checks a tool against the policy of execCtx using the default engine
func AuthorizeTool(ctx context.Context, tool ToolDescriptor, execCtx *ExecutionContext) error {
	return defaultPolicyEngine.AuthorizeTool(ctx, tool, execCtx)
}

// AuthorizePaths fails with ErrPathDenied or ErrPathNotAllowed on the first
// target the policy rejects. Deny roots are evaluated before allow roots.
func (pe *PolicyEngine) AuthorizePaths(targets []string, execCtx *ExecutionContext) error {
	if execCtx == nil || execCtx.Policy == nil {
		return nil
	}
	policy := execCtx.Policy
	base := execCtx.WorkingDir()

	for _, target := range targets {
		abs := resolvePath(base, target)

		for _, root := range policy.DenyPaths {
			if isUnder(abs, resolvePath(base, root)) {
				log.Warn().Str("path", abs).Str("root", root).Msg("Path blocked by deny list")
				return fmt.Errorf("%w: %s", ErrPathDenied, abs)
			}
		}

		if len(policy.AllowPaths) == 0 {
			continue
		}
		allowed := false
		for _, root := range policy.AllowPaths {
			if isUnder(abs, resolvePath(base, root)) {
				allowed = true
				break
			}
		}
		if !allowed {
			log.Warn().Str("path", abs).Strs("allow", policy.AllowPaths).Msg("Path outside allow list")
			return fmt.Errorf("%w: %s", ErrPathNotAllowed, abs)
		}
	}
	return nil
}

// AuthorizeTool checks the tool's capabilities against the policy and, for
// mutating tools under RequireConfirmation, waits for the confirmer.
func (pe *PolicyEngine) AuthorizeTool(ctx context.Context, tool ToolDescriptor, execCtx *ExecutionContext) error {
	if execCtx == nil || execCtx.Policy == nil {
		return nil
	}
	policy := execCtx.Policy

	if len(policy.AllowedCapabilities) > 0 {
		if missing := MissingCapabilities(tool.Capabilities, policy.AllowedCapabilities); len(missing) > 0 {
			log.Warn().
				Str("tool", tool.Name).
				Interface("missing", missing).
				Msg("Tool blocked by capability policy")
			return &CapabilityError{Tool: tool.Name, Missing: missing}
		}
	}

	if tool.Mutate && policy.RequireConfirmation {
		if execCtx.Confirmer == nil {
			return fmt.Errorf("%w: %s (no confirmer configured)", ErrConfirmationRejected, tool.Name)
		}

		caps := make([]string, len(tool.Capabilities))
		for i, c := range tool.Capabilities {
			caps[i] = string(c)
		}
		req := ApprovalRequest{
			Prompt: fmt.Sprintf("Execute mutating tool: %s?", tool.Name),
			Tool:   tool.Name,
			RunID:  execCtx.RunID,
			Metadata: map[string]string{
				"tool":         tool.Name,
				"runId":        execCtx.RunID,
				"capabilities": strings.Join(caps, ","),
			},
		}

		approved, err := pe.approvals.RequestApproval(ctx, execCtx.Confirmer, req)
		if err != nil {
			return fmt.Errorf("%w: %s: %w", ErrConfirmationRejected, tool.Name, err)
		}
		if !approved {
			return fmt.Errorf("%w: %s", ErrConfirmationRejected, tool.Name)
		}
	}

	return nil
}

// resolvePath makes p absolute against base, then against the process
// working directory when base itself is relative.
func resolvePath(base, p string) string {
	if !filepath.IsAbs(p) {
		p = filepath.Join(base, p)
	}
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return filepath.Clean(p)
}

// isUnder reports whether path equals root or lies below it on a component boundary
func isUnder(path, root string) bool {
	if path == root {
		return true
	}
	prefix := root
	if !strings.HasSuffix(prefix, string(filepath.Separator)) {
		prefix += string(filepath.Separator)
	}
	return strings.HasPrefix(path, prefix)
}
