// Package sandbox spawns shell commands on the host and captures their output.
// It performs no isolation; callers authorize the working directory first.
package sandbox

import (
	"context"
	"time"
)

// Config defines runner configuration
type Config struct {
	// Timeout bounds each command. Zero means no limit.
	Timeout time.Duration `json:"timeout"`

	// MaxOutputBytes caps captured stdout and stderr each. Zero means no cap.
	MaxOutputBytes int `json:"max_output_bytes"`

	// InheritEnv passes the process environment to commands
	InheritEnv bool `json:"inherit_env"`
}

// ShellRequest is one shell command to run
type ShellRequest struct {
	Command    string            `json:"command"`
	WorkingDir string            `json:"working_dir"`
	Env        map[string]string `json:"env"`
	Timeout    time.Duration     `json:"timeout"`
}

// ShellResult is the captured outcome of a command
type ShellResult struct {
	Stdout    string        `json:"stdout"`
	Stderr    string        `json:"stderr"`
	ExitCode  int           `json:"exitCode"`
	Duration  time.Duration `json:"duration"`
	Truncated bool          `json:"truncated,omitempty"`
}

// Runner runs shell commands
type Runner interface {
	Run(ctx context.Context, req ShellRequest) (ShellResult, error)
}

// DefaultConfig returns the default runner configuration
func DefaultConfig() Config {
	return Config{
		Timeout:        5 * time.Minute,
		MaxOutputBytes: 1 << 20,
		InheritEnv:     true,
	}
}

// ValidateConfig validates a runner configuration
func ValidateConfig(config Config) error {
	if config.Timeout < 0 {
		return ErrInvalidTimeout
	}
	if config.MaxOutputBytes < 0 {
		return ErrInvalidOutputLimit
	}
	return nil
}
