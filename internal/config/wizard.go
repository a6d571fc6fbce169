package config

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// Wizard provides an interactive configuration wizard
type Wizard struct {
	reader *bufio.Reader
	out    io.Writer
}

// NewWizard creates a new configuration wizard on stdin/stdout
func NewWizard() *Wizard {
	return NewWizardWithIO(os.Stdin, os.Stdout)
}

// NewWizardWithIO creates a wizard reading answers from in and prompting on out
func NewWizardWithIO(in io.Reader, out io.Writer) *Wizard {
	return &Wizard{
		reader: bufio.NewReader(in),
		out:    out,
	}
}

// Run runs the interactive configuration wizard starting from base.
// A nil base starts from DefaultConfig.
func (w *Wizard) Run(base *Config) (*Config, error) {
	fmt.Fprintln(w.out, "=== FollowGPT Configuration Wizard ===")
	fmt.Fprintln(w.out)

	cfg := base
	if cfg == nil {
		cfg = DefaultConfig()
	}
	validator := NewValidator()

	// Provider
	for {
		fmt.Fprintf(w.out, "LLM provider (anthropic/openai/static) [%s]: ", cfg.LLM.Provider)
		provider, err := w.readLine()
		if err != nil {
			return nil, err
		}
		if provider == "" {
			provider = cfg.LLM.Provider
		}
		if err := validator.ValidateProvider(provider); err != nil {
			fmt.Fprintf(w.out, "Error: %v\n", err)
			continue
		}
		if provider != cfg.LLM.Provider {
			cfg.LLM.Model = ""
		}
		cfg.LLM.Provider = provider
		break
	}

	// API key
	if cfg.LLM.Provider != "static" {
		for {
			fmt.Fprint(w.out, "API key (press Enter to use the environment): ")
			key, err := w.readLine()
			if err != nil {
				return nil, err
			}
			if key == "" {
				break
			}
			if err := validator.ValidateAPIKey(key, cfg.LLM.Provider); err != nil {
				fmt.Fprintf(w.out, "Error: %v\n", err)
				continue
			}
			cfg.LLM.APIKey = key
			break
		}
	}

	// Model
	fmt.Fprintf(w.out, "Model name [%s]: ", displayDefault(cfg.LLM.Model, "provider default"))
	model, err := w.readLine()
	if err != nil {
		return nil, err
	}
	if model != "" {
		cfg.LLM.Model = model
	}

	fmt.Fprintln(w.out)

	// Policy
	fmt.Fprintln(w.out, "Policy:")
	fmt.Fprint(w.out, "Allowed paths, comma separated (empty allows everything): ")
	allow, err := w.readLine()
	if err != nil {
		return nil, err
	}
	if allow != "" {
		cfg.Policy.AllowPaths = splitList(allow)
	}

	fmt.Fprint(w.out, "Confirm mutating tools? (y/n) [y]: ")
	confirm, err := w.readLine()
	if err != nil {
		return nil, err
	}
	cfg.Policy.RequireConfirmation = confirm == "" || strings.ToLower(confirm) == "y"

	fmt.Fprintln(w.out)

	// Log Level
	fmt.Fprintln(w.out, "Logging:")
	fmt.Fprintf(w.out, "Log level (debug/info/warn/error) [%s]: ", cfg.Logging.Level)
	level, err := w.readLine()
	if err != nil {
		return nil, err
	}

	if level != "" {
		if err := validator.ValidateLogLevel(level); err != nil {
			fmt.Fprintf(w.out, "Warning: %v, keeping %s\n", err, cfg.Logging.Level)
		} else {
			cfg.Logging.Level = level
		}
	}

	fmt.Fprintln(w.out)
	fmt.Fprintln(w.out, "Configuration complete!")

	return cfg, nil
}

func (w *Wizard) readLine() (string, error) {
	line, err := w.reader.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func displayDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
