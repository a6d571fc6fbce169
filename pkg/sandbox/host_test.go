package sandbox

import (
	"context"
	"errors"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func skipOnWindows(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("uses POSIX shell syntax")
	}
}

func TestNewHostRunner(t *testing.T) {
	cfg := DefaultConfig()
	runner, err := NewHostRunner(cfg)

	require.NoError(t, err)
	assert.Equal(t, cfg, runner.GetConfig())
}

func TestNewHostRunner_InvalidConfig(t *testing.T) {
	_, err := NewHostRunner(Config{Timeout: -1})
	assert.ErrorIs(t, err, ErrInvalidTimeout)

	_, err = NewHostRunner(Config{MaxOutputBytes: -1})
	assert.ErrorIs(t, err, ErrInvalidOutputLimit)
}

func TestHostRunner_Run(t *testing.T) {
	skipOnWindows(t)
	runner, err := NewHostRunner(DefaultConfig())
	require.NoError(t, err)

	result, err := runner.Run(context.Background(), ShellRequest{Command: "echo hello && echo oops 1>&2"})

	require.NoError(t, err)
	assert.Equal(t, "hello\n", result.Stdout)
	assert.Equal(t, "oops\n", result.Stderr)
	assert.Equal(t, 0, result.ExitCode)
	assert.False(t, result.Truncated)
}

func TestHostRunner_Run_WorkingDirAndEnv(t *testing.T) {
	skipOnWindows(t)
	dir := t.TempDir()
	runner, err := NewHostRunner(DefaultConfig())
	require.NoError(t, err)

	result, err := runner.Run(context.Background(), ShellRequest{
		Command:    "pwd; echo $GREETING",
		WorkingDir: dir,
		Env:        map[string]string{"GREETING": "hi"},
	})

	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(result.Stdout), "\n")
	require.Len(t, lines, 2)
	resolved, _ := filepath.EvalSymlinks(dir)
	assert.Contains(t, []string{dir, resolved}, lines[0])
	assert.Equal(t, "hi", lines[1])
}

func TestHostRunner_Run_NonZeroExit(t *testing.T) {
	skipOnWindows(t)
	runner, err := NewHostRunner(DefaultConfig())
	require.NoError(t, err)

	result, err := runner.Run(context.Background(), ShellRequest{Command: "echo bad input >&2; exit 3"})

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrCommandFailed))
	assert.Contains(t, err.Error(), "exit code 3")
	assert.Contains(t, err.Error(), "bad input")
	assert.Equal(t, 3, result.ExitCode)
}

func TestHostRunner_Run_Timeout(t *testing.T) {
	skipOnWindows(t)
	runner, err := NewHostRunner(DefaultConfig())
	require.NoError(t, err)

	result, err := runner.Run(context.Background(), ShellRequest{Command: "sleep 5", Timeout: 100 * time.Millisecond})

	assert.ErrorIs(t, err, ErrExecutionTimeout)
	assert.Equal(t, -1, result.ExitCode)
}

func TestHostRunner_Run_EmptyCommand(t *testing.T) {
	runner, err := NewHostRunner(DefaultConfig())
	require.NoError(t, err)

	_, err = runner.Run(context.Background(), ShellRequest{Command: "   "})
	assert.ErrorIs(t, err, ErrEmptyCommand)
}

func TestHostRunner_Run_TruncatesOutput(t *testing.T) {
	skipOnWindows(t)
	cfg := DefaultConfig()
	cfg.MaxOutputBytes = 4
	runner, err := NewHostRunner(cfg)
	require.NoError(t, err)

	result, err := runner.Run(context.Background(), ShellRequest{Command: "echo abcdefgh"})

	require.NoError(t, err)
	assert.Equal(t, "abcd", result.Stdout)
	assert.True(t, result.Truncated)
}
