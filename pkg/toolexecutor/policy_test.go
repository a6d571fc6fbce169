package toolexecutor

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthorizePaths(t *testing.T) {
	root := filepath.FromSlash("/data")

	tests := []struct {
		name    string
		policy  *Policy
		targets []string
		wantErr error
	}{
		{name: "no policy", policy: nil, targets: []string{"/etc/passwd"}},
		{name: "empty policy is open", policy: &Policy{}, targets: []string{"/anything", "relative/file"}},
		{name: "inside allow root", policy: &Policy{AllowPaths: []string{root}}, targets: []string{"/data/a/b.txt"}},
		{name: "allow root itself", policy: &Policy{AllowPaths: []string{root}}, targets: []string{"/data"}},
		{name: "sibling prefix is not nested", policy: &Policy{AllowPaths: []string{root}}, targets: []string{"/data2/x"}, wantErr: ErrPathNotAllowed},
		{name: "outside allow root", policy: &Policy{AllowPaths: []string{root}}, targets: []string{"/tmp/x"}, wantErr: ErrPathNotAllowed},
		{name: "dot-dot escape", policy: &Policy{AllowPaths: []string{root}}, targets: []string{"/data/../etc"}, wantErr: ErrPathNotAllowed},
		{name: "deny wins over allow", policy: &Policy{AllowPaths: []string{root}, DenyPaths: []string{root}}, targets: []string{"/data/file"}, wantErr: ErrPathDenied},
		{name: "deny nested root", policy: &Policy{AllowPaths: []string{root}, DenyPaths: []string{"/data/secret"}}, targets: []string{"/data/ok", "/data/secret/key"}, wantErr: ErrPathDenied},
		{name: "relative resolves against cwd", policy: &Policy{AllowPaths: []string{"/work"}}, targets: []string{"notes/a.md"}},
		{name: "relative escaping cwd", policy: &Policy{AllowPaths: []string{"/work"}}, targets: []string{"../outside"}, wantErr: ErrPathNotAllowed},
		{name: "filesystem root allows all", policy: &Policy{AllowPaths: []string{"/"}}, targets: []string{"/x/y"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			execCtx := &ExecutionContext{Cwd: "/work", Policy: tt.policy}

			err := AuthorizePaths(tt.targets, execCtx)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.wantErr), err.Error())
		})
	}
}

func TestAuthorizePaths_RelativeWorkingDir(t *testing.T) {
	dir, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)
	t.Chdir(dir)

	t.Run("deny root still wins", func(t *testing.T) {
		execCtx := &ExecutionContext{Cwd: ".", Policy: &Policy{DenyPaths: []string{filepath.Join(dir, "secret")}}}
		err := AuthorizePaths([]string{"secret/key.pem"}, execCtx)
		assert.True(t, errors.Is(err, ErrPathDenied), "got %v", err)
	})

	t.Run("allow root matches relative target", func(t *testing.T) {
		execCtx := &ExecutionContext{Cwd: ".", Policy: &Policy{AllowPaths: []string{dir}}}
		assert.NoError(t, AuthorizePaths([]string{"notes.txt"}, execCtx))
	})

	t.Run("relative roots resolve too", func(t *testing.T) {
		execCtx := &ExecutionContext{Cwd: dir, Policy: &Policy{DenyPaths: []string{"./secret"}}}
		err := AuthorizePaths([]string{filepath.Join(dir, "secret", "key.pem")}, execCtx)
		assert.True(t, errors.Is(err, ErrPathDenied), "got %v", err)
	})

	t.Run("errors name the absolute path", func(t *testing.T) {
		execCtx := &ExecutionContext{Cwd: ".", Policy: &Policy{AllowPaths: []string{filepath.Join(dir, "only")}}}
		err := AuthorizePaths([]string{"notes.txt"}, execCtx)
		require.Error(t, err)
		assert.Contains(t, err.Error(), filepath.Join(dir, "notes.txt"))
	})
}

func TestAuthorizeTool_Capabilities(t *testing.T) {
	tool := ToolDescriptor{
		Name:         "dedupe_files",
		Mutate:       true,
		Capabilities: []Capability{CapFilesRead, CapFilesDelete},
	}

	t.Run("allowed", func(t *testing.T) {
		execCtx := &ExecutionContext{Policy: &Policy{AllowedCapabilities: []Capability{CapFilesRead, CapFilesDelete}}}
		assert.NoError(t, AuthorizeTool(context.Background(), tool, execCtx))
	})

	t.Run("empty list is unrestricted", func(t *testing.T) {
		execCtx := &ExecutionContext{Policy: &Policy{}}
		assert.NoError(t, AuthorizeTool(context.Background(), tool, execCtx))
	})

	t.Run("missing names every capability", func(t *testing.T) {
		execCtx := &ExecutionContext{Policy: &Policy{AllowedCapabilities: []Capability{CapSearchRead}}}
		err := AuthorizeTool(context.Background(), tool, execCtx)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrCapabilitiesDenied))

		var capErr *CapabilityError
		require.True(t, errors.As(err, &capErr))
		assert.Equal(t, []Capability{CapFilesRead, CapFilesDelete}, capErr.Missing)
		assert.Contains(t, err.Error(), "files.read,files.delete")
	})
}

func TestAuthorizeTool_Confirmation(t *testing.T) {
	mutating := ToolDescriptor{Name: "move_files", Mutate: true, Capabilities: []Capability{CapFilesWrite}}
	readOnly := ToolDescriptor{Name: "disk_report", Capabilities: []Capability{CapFilesRead}}

	t.Run("approved", func(t *testing.T) {
		confirmer := &MockApprovalHandler{AutoApprove: true}
		execCtx := &ExecutionContext{RunID: "r1", Confirmer: confirmer, Policy: &Policy{RequireConfirmation: true}}

		require.NoError(t, AuthorizeTool(context.Background(), mutating, execCtx))
		require.Len(t, confirmer.Requests, 1)
		req := confirmer.Requests[0]
		assert.Equal(t, "Execute mutating tool: move_files?", req.Prompt)
		assert.Equal(t, "move_files", req.Metadata["tool"])
		assert.Equal(t, "r1", req.Metadata["runId"])
		assert.Equal(t, "files.write", req.Metadata["capabilities"])
	})

	t.Run("rejected", func(t *testing.T) {
		execCtx := &ExecutionContext{Confirmer: &MockApprovalHandler{}, Policy: &Policy{RequireConfirmation: true}}
		err := AuthorizeTool(context.Background(), mutating, execCtx)
		assert.True(t, errors.Is(err, ErrConfirmationRejected))
	})

	t.Run("no confirmer rejects", func(t *testing.T) {
		execCtx := &ExecutionContext{Policy: &Policy{RequireConfirmation: true}}
		err := AuthorizeTool(context.Background(), mutating, execCtx)
		assert.True(t, errors.Is(err, ErrConfirmationRejected))
	})

	t.Run("confirmer error rejects", func(t *testing.T) {
		execCtx := &ExecutionContext{Confirmer: &MockApprovalHandler{Error: errors.New("tty closed")}, Policy: &Policy{RequireConfirmation: true}}
		err := AuthorizeTool(context.Background(), mutating, execCtx)
		assert.True(t, errors.Is(err, ErrConfirmationRejected))
		assert.Contains(t, err.Error(), "tty closed")
	})

	t.Run("confirmer timeout rejects", func(t *testing.T) {
		approvals := NewApprovalManager(20 * time.Millisecond)
		engine := NewPolicyEngine(approvals)

		execCtx := &ExecutionContext{Confirmer: &MockApprovalHandler{Delay: time.Second, AutoApprove: true}, Policy: &Policy{RequireConfirmation: true}}
		err := engine.AuthorizeTool(context.Background(), mutating, execCtx)
		assert.True(t, errors.Is(err, ErrConfirmationRejected))
	})

	t.Run("read-only tool skips confirmation", func(t *testing.T) {
		confirmer := &MockApprovalHandler{}
		execCtx := &ExecutionContext{Confirmer: confirmer, Policy: &Policy{RequireConfirmation: true}}
		assert.NoError(t, AuthorizeTool(context.Background(), readOnly, execCtx))
		assert.Empty(t, confirmer.Requests)
	})

	t.Run("confirmation not required", func(t *testing.T) {
		confirmer := &MockApprovalHandler{}
		execCtx := &ExecutionContext{Confirmer: confirmer, Policy: &Policy{}}
		assert.NoError(t, AuthorizeTool(context.Background(), mutating, execCtx))
		assert.Empty(t, confirmer.Requests)
	})

	t.Run("capabilities checked before confirmation", func(t *testing.T) {
		confirmer := &MockApprovalHandler{AutoApprove: true}
		execCtx := &ExecutionContext{Confirmer: confirmer, Policy: &Policy{
			RequireConfirmation: true,
			AllowedCapabilities: []Capability{CapFilesRead},
		}}
		err := AuthorizeTool(context.Background(), mutating, execCtx)
		assert.True(t, errors.Is(err, ErrCapabilitiesDenied))
		assert.Empty(t, confirmer.Requests)
	})
}

func TestIsUnder(t *testing.T) {
	sep := string(filepath.Separator)
	assert.True(t, isUnder(sep+"data", sep+"data"))
	assert.True(t, isUnder(filepath.Join(sep+"data", "x"), sep+"data"))
	assert.False(t, isUnder(sep+"data2", sep+"data"))
	assert.True(t, isUnder(sep+"anything", sep))
}
