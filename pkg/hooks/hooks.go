// Package hooks runs user-configured shell commands when scheduled macro
// jobs change state. Hooks are declared in configuration and are not
// subject to the tool policy.
package hooks

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/LetsVenture2021/FollowGPT/pkg/sandbox"
	"github.com/LetsVenture2021/FollowGPT/pkg/scheduler"
	"github.com/rs/zerolog"
)

// Hook events
const (
	EventStarted  = "schedule:started"
	EventFinished = "schedule:finished"
	EventFailed   = "schedule:failed"
	EventSkipped  = "schedule:skipped"
)

const defaultTimeout = 30 * time.Second

var knownEvents = map[string]bool{
	EventStarted:  true,
	EventFinished: true,
	EventFailed:   true,
	EventSkipped:  true,
}

// Hook is a shell command bound to an event
type Hook struct {
	Name    string
	Event   string
	Command string
	// Job limits the hook to one schedule. Empty matches every job.
	Job     string
	Timeout time.Duration
}

// Config configures a Manager
type Config struct {
	Hooks  []Hook
	Runner sandbox.Runner
	Logger zerolog.Logger
}

// Manager dispatches scheduler events to hooks
type Manager struct {
	runner sandbox.Runner
	logger zerolog.Logger

	mu      sync.RWMutex
	byEvent map[string][]Hook
}

// NewManager validates hooks and indexes them by event
func NewManager(cfg Config) (*Manager, error) {
	if cfg.Runner == nil && len(cfg.Hooks) > 0 {
		return nil, fmt.Errorf("hooks require a shell runner")
	}

	m := &Manager{
		runner:  cfg.Runner,
		logger:  cfg.Logger.With().Str("component", "hooks").Logger(),
		byEvent: make(map[string][]Hook),
	}
	for i, hook := range cfg.Hooks {
		event := strings.TrimSpace(hook.Event)
		if !knownEvents[event] {
			return nil, fmt.Errorf("hook %d: unknown event %q", i, hook.Event)
		}
		if strings.TrimSpace(hook.Command) == "" {
			return nil, fmt.Errorf("hook %d: command is required for event %s", i, event)
		}
		if hook.Name == "" {
			hook.Name = fmt.Sprintf("%s#%d", event, i)
		}
		m.byEvent[event] = append(m.byEvent[event], hook)
	}
	return m, nil
}

// Len reports the number of registered hooks
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, hooks := range m.byEvent {
		n += len(hooks)
	}
	return n
}

// Trigger runs every hook registered for event whose job filter matches.
// All hooks run even when one fails; the failures are joined.
func (m *Manager) Trigger(ctx context.Context, event string, job string, env map[string]string) error {
	if m == nil {
		return nil
	}

	m.mu.RLock()
	hooks := append([]Hook(nil), m.byEvent[event]...)
	m.mu.RUnlock()

	var errs []error
	for _, hook := range hooks {
		if hook.Job != "" && hook.Job != job {
			continue
		}
		if err := m.run(ctx, event, hook, env); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// HandleEvent adapts a scheduler event into hook triggers. It is meant to be
// passed as scheduler.Options.OnEvent; failures are logged.
func (m *Manager) HandleEvent(e scheduler.Event) {
	if m == nil {
		return
	}

	env := map[string]string{
		"FOLLOWGPT_JOB":    e.Job,
		"FOLLOWGPT_RUN_ID": e.RunID,
		"FOLLOWGPT_STATUS": e.Status,
		"FOLLOWGPT_ERROR":  e.Error,
	}
	if e.Duration > 0 {
		env["FOLLOWGPT_DURATION_MS"] = fmt.Sprintf("%d", e.Duration.Milliseconds())
	}

	var events []string
	switch e.Action {
	case scheduler.EventActionStarted:
		events = []string{EventStarted}
	case scheduler.EventActionSkipped:
		events = []string{EventSkipped}
	case scheduler.EventActionFinished:
		events = []string{EventFinished}
		if e.Status == scheduler.StatusError {
			events = append(events, EventFailed)
		}
	}

	for _, event := range events {
		env["FOLLOWGPT_HOOK_EVENT"] = event
		if err := m.Trigger(context.Background(), event, e.Job, env); err != nil {
			m.logger.Warn().Err(err).Str("event", event).Str("job", e.Job).Msg("Hook failed")
		}
	}
}

func (m *Manager) run(ctx context.Context, event string, hook Hook, env map[string]string) error {
	timeout := hook.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	res, err := m.runner.Run(ctx, sandbox.ShellRequest{
		Command: hook.Command,
		Env:     env,
		Timeout: timeout,
	})
	if err != nil {
		return fmt.Errorf("hook %s: %w", hook.Name, err)
	}

	m.logger.Debug().
		Str("event", event).
		Str("hook", hook.Name).
		Str("output", strings.TrimSpace(res.Stdout)).
		Dur("duration", res.Duration).
		Msg("Hook executed")
	return nil
}
