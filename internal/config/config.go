package config

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/LetsVenture2021/FollowGPT/pkg/toolexecutor"
)

// Config represents the main FollowGPT configuration
type Config struct {
	// Data directory
	DataDir string `json:"data_dir" mapstructure:"data_dir"`

	// SQLite database path
	DBPath string `json:"db_path" mapstructure:"db_path"`

	// Logging
	Logging LoggingConfig `json:"logging" mapstructure:"logging"`

	// LLM backend used for planning
	LLM LLMConfig `json:"llm" mapstructure:"llm"`

	// Policy applied to every run
	Policy PolicyConfig `json:"policy" mapstructure:"policy"`

	// Approval settings for mutating tools
	Approval ApprovalConfig `json:"approval" mapstructure:"approval"`

	// Scheduled macros
	Schedules []ScheduleConfig `json:"schedules" mapstructure:"schedules"`

	// Shell commands run on schedule events
	Hooks []HookConfig `json:"hooks" mapstructure:"hooks"`

	// Metrics endpoint
	Metrics MetricsConfig `json:"metrics" mapstructure:"metrics"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level      string `json:"level" mapstructure:"level"`
	File       string `json:"file" mapstructure:"file"`
	Console    bool   `json:"console" mapstructure:"console"`
	Pretty     bool   `json:"pretty" mapstructure:"pretty"`
	MaxSize    int    `json:"max_size" mapstructure:"max_size"` // MB
	MaxAge     int    `json:"max_age" mapstructure:"max_age"`   // days
	MaxBackups int    `json:"max_backups" mapstructure:"max_backups"`
	Compress   bool   `json:"compress" mapstructure:"compress"`
	Redaction  bool   `json:"redaction" mapstructure:"redaction"`
}

// LLMConfig holds the completion backend configuration
type LLMConfig struct {
	Provider       string  `json:"provider" mapstructure:"provider"` // anthropic, openai, static
	APIKey         string  `json:"api_key" mapstructure:"api_key"`
	Model          string  `json:"model" mapstructure:"model"`
	MaxTokens      int     `json:"max_tokens" mapstructure:"max_tokens"`
	Temperature    float64 `json:"temperature" mapstructure:"temperature"`
	BaseURL        string  `json:"base_url" mapstructure:"base_url"`
	StaticResponse string  `json:"static_response" mapstructure:"static_response"`
}

// PolicyConfig holds path and capability rules
type PolicyConfig struct {
	AllowPaths          []string `json:"allow_paths" mapstructure:"allow_paths"`
	DenyPaths           []string `json:"deny_paths" mapstructure:"deny_paths"`
	AllowedCapabilities []string `json:"allowed_capabilities" mapstructure:"allowed_capabilities"`
	RequireConfirmation bool     `json:"require_confirmation" mapstructure:"require_confirmation"`
}

// ApprovalConfig holds confirmation settings
type ApprovalConfig struct {
	TimeoutSeconds int  `json:"timeout_seconds" mapstructure:"timeout_seconds"`
	AutoApprove    bool `json:"auto_approve" mapstructure:"auto_approve"`
}

// ScheduleConfig binds a stored macro to a cron expression
type ScheduleConfig struct {
	Name  string `json:"name" mapstructure:"name"`
	Macro string `json:"macro" mapstructure:"macro"`
	Cron  string `json:"cron" mapstructure:"cron"`
}

// HookConfig binds a shell command to a schedule event
// (schedule:started, schedule:finished, schedule:failed, schedule:skipped)
type HookConfig struct {
	Name           string `json:"name" mapstructure:"name"`
	Event          string `json:"event" mapstructure:"event"`
	Command        string `json:"command" mapstructure:"command"`
	Job            string `json:"job,omitempty" mapstructure:"job"`
	TimeoutSeconds int    `json:"timeout_seconds,omitempty" mapstructure:"timeout_seconds"`
}

// MetricsConfig holds the metrics listener address
type MetricsConfig struct {
	Addr string `json:"addr" mapstructure:"addr"`
}

// DefaultConfig returns a config with default values
func DefaultConfig() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:      "info",
			Console:    true,
			Pretty:     true,
			MaxSize:    100,
			MaxAge:     7,
			MaxBackups: 3,
			Compress:   true,
			Redaction:  true,
		},
		LLM: LLMConfig{
			Provider:    "anthropic",
			Model:       "claude-sonnet-4-20250514",
			MaxTokens:   2048,
			Temperature: 0,
		},
		Policy: PolicyConfig{
			AllowPaths:          []string{},
			DenyPaths:           []string{},
			AllowedCapabilities: []string{},
			RequireConfirmation: true,
		},
		Approval: ApprovalConfig{
			TimeoutSeconds: 300,
		},
		Schedules: []ScheduleConfig{},
		Hooks:     []HookConfig{},
		Metrics: MetricsConfig{
			Addr: "127.0.0.1:9464",
		},
	}
}

// String returns a JSON representation of the config with secrets masked
func (c *Config) String() string {
	masked := *c
	if masked.LLM.APIKey != "" {
		masked.LLM.APIKey = "***"
	}
	data, _ := json.MarshalIndent(&masked, "", "  ")
	return string(data)
}

// ToPolicy converts the policy section into an execution policy
func (c *Config) ToPolicy() (*toolexecutor.Policy, error) {
	caps, err := toolexecutor.ParseCapabilities(c.Policy.AllowedCapabilities)
	if err != nil {
		return nil, fmt.Errorf("policy.allowed_capabilities: %w", err)
	}
	return &toolexecutor.Policy{
		AllowPaths:          append([]string(nil), c.Policy.AllowPaths...),
		DenyPaths:           append([]string(nil), c.Policy.DenyPaths...),
		AllowedCapabilities: caps,
		RequireConfirmation: c.Policy.RequireConfirmation,
	}, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	switch c.LLM.Provider {
	case "anthropic", "openai":
	case "static":
		if c.LLM.StaticResponse == "" {
			return fmt.Errorf("llm.static_response is required for the static provider")
		}
	default:
		return fmt.Errorf("invalid llm provider %q (must be: anthropic, openai, static)", c.LLM.Provider)
	}

	if c.LLM.MaxTokens < 0 {
		return fmt.Errorf("llm.max_tokens must be >= 0")
	}

	if _, err := c.ToPolicy(); err != nil {
		return err
	}

	if c.Approval.TimeoutSeconds < 0 {
		return fmt.Errorf("approval.timeout_seconds must be >= 0")
	}

	seen := make(map[string]bool, len(c.Schedules))
	for i, s := range c.Schedules {
		if strings.TrimSpace(s.Name) == "" {
			return fmt.Errorf("schedule %d: name is required", i)
		}
		if seen[s.Name] {
			return fmt.Errorf("schedule %s: duplicate name", s.Name)
		}
		seen[s.Name] = true
		if s.Macro == "" {
			return fmt.Errorf("schedule %s: macro is required", s.Name)
		}
		if s.Cron == "" {
			return fmt.Errorf("schedule %s: cron is required", s.Name)
		}
	}

	for i, h := range c.Hooks {
		if h.Event == "" {
			return fmt.Errorf("hook %d: event is required", i)
		}
		if strings.TrimSpace(h.Command) == "" {
			return fmt.Errorf("hook %d: command is required", i)
		}
		if h.Job != "" && !seen[h.Job] {
			return fmt.Errorf("hook %d: unknown schedule %s", i, h.Job)
		}
		if h.TimeoutSeconds < 0 {
			return fmt.Errorf("hook %d: timeout_seconds must be >= 0", i)
		}
	}

	return nil
}
