package config

import (
	"fmt"
	"strings"

	"github.com/LetsVenture2021/FollowGPT/pkg/scheduler"
	"github.com/LetsVenture2021/FollowGPT/pkg/toolexecutor"
)

// Validator validates configuration values
type Validator struct{}

// NewValidator creates a new validator
func NewValidator() *Validator {
	return &Validator{}
}

// ValidateProvider validates an LLM provider name
func (v *Validator) ValidateProvider(provider string) error {
	validProviders := []string{"anthropic", "openai", "static"}
	for _, valid := range validProviders {
		if provider == valid {
			return nil
		}
	}
	return fmt.Errorf("invalid llm provider: %s (must be one of: %s)", provider, strings.Join(validProviders, ", "))
}

// ValidateAPIKey validates an API key format
func (v *Validator) ValidateAPIKey(key string, provider string) error {
	if provider == "static" {
		return nil
	}
	if key == "" {
		return fmt.Errorf("%s API key cannot be empty", provider)
	}

	switch provider {
	case "anthropic":
		if !strings.HasPrefix(key, "sk-ant-") {
			return fmt.Errorf("invalid Anthropic API key format (should start with sk-ant-)")
		}
	case "openai":
		if !strings.HasPrefix(key, "sk-") {
			return fmt.Errorf("invalid OpenAI API key format (should start with sk-)")
		}
	}

	return nil
}

// ValidateTemperature validates temperature value
func (v *Validator) ValidateTemperature(temp float64) error {
	if temp < 0 || temp > 2 {
		return fmt.Errorf("temperature must be between 0 and 2, got %f", temp)
	}
	return nil
}

// ValidateMaxTokens validates max tokens value
func (v *Validator) ValidateMaxTokens(tokens int) error {
	if tokens <= 0 {
		return fmt.Errorf("max tokens must be positive, got %d", tokens)
	}
	if tokens > 200000 {
		return fmt.Errorf("max tokens too large (max 200000), got %d", tokens)
	}
	return nil
}

// ValidateLogLevel validates log level
func (v *Validator) ValidateLogLevel(level string) error {
	validLevels := []string{"debug", "info", "warn", "error"}
	for _, valid := range validLevels {
		if level == valid {
			return nil
		}
	}
	return fmt.Errorf("invalid log level: %s (must be one of: %s)", level, strings.Join(validLevels, ", "))
}

// ValidateCapabilities validates capability names against the closed set
func (v *Validator) ValidateCapabilities(names []string) error {
	var unknown []string
	for _, name := range names {
		if !toolexecutor.IsValidCapability(strings.TrimSpace(name)) {
			unknown = append(unknown, name)
		}
	}
	if len(unknown) > 0 {
		return fmt.Errorf("unknown capabilities: %s", strings.Join(unknown, ", "))
	}
	return nil
}

// ValidateCron validates a schedule's cron expression
func (v *Validator) ValidateCron(expr string) error {
	_, err := scheduler.ParseSchedule(expr)
	return err
}

// ValidateConfig performs comprehensive validation
func (v *Validator) ValidateConfig(cfg *Config) []error {
	var errors []error

	if err := v.ValidateProvider(cfg.LLM.Provider); err != nil {
		errors = append(errors, err)
	} else if err := v.ValidateAPIKey(cfg.LLM.APIKey, cfg.LLM.Provider); err != nil {
		errors = append(errors, fmt.Errorf("llm: %w", err))
	}
	if err := v.ValidateTemperature(cfg.LLM.Temperature); err != nil {
		errors = append(errors, fmt.Errorf("llm: %w", err))
	}
	if cfg.LLM.MaxTokens != 0 {
		if err := v.ValidateMaxTokens(cfg.LLM.MaxTokens); err != nil {
			errors = append(errors, fmt.Errorf("llm: %w", err))
		}
	}

	if err := v.ValidateCapabilities(cfg.Policy.AllowedCapabilities); err != nil {
		errors = append(errors, fmt.Errorf("policy: %w", err))
	}
	for _, p := range cfg.Policy.AllowPaths {
		if strings.TrimSpace(p) == "" {
			errors = append(errors, fmt.Errorf("policy: allow_paths contains an empty entry"))
			break
		}
	}

	for i, s := range cfg.Schedules {
		if err := v.ValidateCron(s.Cron); err != nil {
			errors = append(errors, fmt.Errorf("schedule %d (%s): %w", i, s.Name, err))
		}
	}

	if err := v.ValidateLogLevel(cfg.Logging.Level); err != nil {
		errors = append(errors, err)
	}

	return errors
}
