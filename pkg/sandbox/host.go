package sandbox

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

const waitDelay = 2 * time.Second

// HostRunner runs commands through the platform shell (sh -c, or cmd /C on Windows)
type HostRunner struct {
	config Config
}

// NewHostRunner creates a new host runner
func NewHostRunner(config Config) (*HostRunner, error) {
	if err := ValidateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &HostRunner{config: config}, nil
}

// GetConfig returns the runner configuration
func (h *HostRunner) GetConfig() Config {
	return h.config
}

// Run executes req.Command. A non-zero exit returns the captured result
// together with an error wrapping ErrCommandFailed.
func (h *HostRunner) Run(ctx context.Context, req ShellRequest) (ShellResult, error) {
	if strings.TrimSpace(req.Command) == "" {
		return ShellResult{}, ErrEmptyCommand
	}
	if ctx == nil {
		ctx = context.Background()
	}

	timeout := req.Timeout
	if timeout == 0 {
		timeout = h.config.Timeout
	}
	runCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	name, args := shellCommand(req.Command)
	cmd := exec.CommandContext(runCtx, name, args...)
	if req.WorkingDir != "" {
		cmd.Dir = req.WorkingDir
	}
	cmd.Env = h.buildEnvironment(req.Env)
	// Orphaned grandchildren can hold the output pipes open after a kill.
	cmd.WaitDelay = waitDelay

	stdout := &limitedBuffer{limit: h.config.MaxOutputBytes}
	stderr := &limitedBuffer{limit: h.config.MaxOutputBytes}
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	start := time.Now()
	err := cmd.Run()
	duration := time.Since(start)

	result := ShellResult{
		Stdout:    stdout.String(),
		Stderr:    stderr.String(),
		Duration:  duration,
		Truncated: stdout.truncated || stderr.truncated,
	}

	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		result.ExitCode = -1
		return result, fmt.Errorf("%w after %v", ErrExecutionTimeout, timeout)
	}

	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			result.ExitCode = -1
			return result, fmt.Errorf("%w: %w", ErrCommandFailed, err)
		}
		result.ExitCode = exitErr.ExitCode()
	}

	log.Debug().
		Str("command", req.Command).
		Str("cwd", req.WorkingDir).
		Int("exit_code", result.ExitCode).
		Dur("duration", duration).
		Msg("Shell command executed")

	if result.ExitCode != 0 {
		msg := strings.TrimSpace(result.Stderr)
		if msg == "" {
			msg = "no stderr output"
		}
		return result, fmt.Errorf("%w: exit code %d: %s", ErrCommandFailed, result.ExitCode, msg)
	}

	return result, nil
}

func shellCommand(command string) (string, []string) {
	if runtime.GOOS == "windows" {
		return "cmd", []string{"/C", command}
	}
	return "sh", []string{"-c", command}
}

// buildEnvironment builds the environment variables for the command
func (h *HostRunner) buildEnvironment(env map[string]string) []string {
	var result []string
	if h.config.InheritEnv {
		result = os.Environ()
	} else {
		result = []string{"PATH=/usr/local/bin:/usr/bin:/bin"}
	}

	keys := make([]string, 0, len(env))
	for key := range env {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		result = append(result, fmt.Sprintf("%s=%s", key, env[key]))
	}

	return result
}

// limitedBuffer keeps at most limit bytes and drops the rest
type limitedBuffer struct {
	buf       bytes.Buffer
	limit     int
	truncated bool
}

func (b *limitedBuffer) Write(p []byte) (int, error) {
	if b.limit <= 0 {
		return b.buf.Write(p)
	}
	remaining := b.limit - b.buf.Len()
	if remaining <= 0 {
		b.truncated = b.truncated || len(p) > 0
		return len(p), nil
	}
	if len(p) > remaining {
		b.buf.Write(p[:remaining])
		b.truncated = true
		return len(p), nil
	}
	return b.buf.Write(p)
}

func (b *limitedBuffer) String() string {
	return b.buf.String()
}
