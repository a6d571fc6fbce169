package hooks

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/LetsVenture2021/FollowGPT/pkg/sandbox"
	"github.com/LetsVenture2021/FollowGPT/pkg/scheduler"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRunner(t *testing.T) sandbox.Runner {
	t.Helper()
	runner, err := sandbox.NewHostRunner(sandbox.DefaultConfig())
	require.NoError(t, err)
	return runner
}

func TestNewManager(t *testing.T) {
	tests := []struct {
		name    string
		hooks   []Hook
		wantErr string
	}{
		{name: "no hooks"},
		{name: "valid", hooks: []Hook{{Event: EventFailed, Command: "true"}}},
		{name: "unknown event", hooks: []Hook{{Event: "daemon:startup", Command: "true"}}, wantErr: "unknown event"},
		{name: "missing command", hooks: []Hook{{Event: EventFinished, Command: "  "}}, wantErr: "command is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := NewManager(Config{Hooks: tt.hooks, Runner: newRunner(t), Logger: zerolog.Nop()})
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, len(tt.hooks), m.Len())
		})
	}

	t.Run("runner required when hooks are set", func(t *testing.T) {
		_, err := NewManager(Config{Hooks: []Hook{{Event: EventFailed, Command: "true"}}})
		assert.Error(t, err)
	})
}

func TestTrigger_RunsMatchingHooks(t *testing.T) {
	dir := t.TempDir()
	all := filepath.Join(dir, "all.txt")
	nightly := filepath.Join(dir, "nightly.txt")
	other := filepath.Join(dir, "other.txt")

	m, err := NewManager(Config{
		Runner: newRunner(t),
		Logger: zerolog.Nop(),
		Hooks: []Hook{
			{Event: EventFinished, Command: "echo $FOLLOWGPT_JOB > " + all},
			{Event: EventFinished, Job: "nightly", Command: "echo only > " + nightly},
			{Event: EventFinished, Job: "weekly", Command: "echo never > " + other},
		},
	})
	require.NoError(t, err)

	require.NoError(t, m.Trigger(context.Background(), EventFinished, "nightly", map[string]string{"FOLLOWGPT_JOB": "nightly"}))

	content, err := os.ReadFile(all)
	require.NoError(t, err)
	assert.Equal(t, "nightly\n", string(content))
	assert.FileExists(t, nightly)
	assert.NoFileExists(t, other)
}

func TestTrigger_JoinsFailures(t *testing.T) {
	marker := filepath.Join(t.TempDir(), "ran.txt")
	m, err := NewManager(Config{
		Runner: newRunner(t),
		Logger: zerolog.Nop(),
		Hooks: []Hook{
			{Name: "broken", Event: EventFailed, Command: "exit 3"},
			{Event: EventFailed, Command: "touch " + marker},
		},
	})
	require.NoError(t, err)

	err = m.Trigger(context.Background(), EventFailed, "job", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "hook broken")
	assert.FileExists(t, marker)
}

func TestTrigger_Timeout(t *testing.T) {
	m, err := NewManager(Config{
		Runner: newRunner(t),
		Logger: zerolog.Nop(),
		Hooks:  []Hook{{Event: EventStarted, Command: "sleep 5", Timeout: 100 * time.Millisecond}},
	})
	require.NoError(t, err)

	start := time.Now()
	err = m.Trigger(context.Background(), EventStarted, "job", nil)
	assert.ErrorIs(t, err, sandbox.ErrExecutionTimeout)
	assert.Less(t, time.Since(start), 4*time.Second)
}

func TestHandleEvent(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "events.log")

	m, err := NewManager(Config{
		Runner: newRunner(t),
		Logger: zerolog.Nop(),
		Hooks: []Hook{
			{Event: EventStarted, Command: "echo started:$FOLLOWGPT_RUN_ID >> " + logPath},
			{Event: EventFinished, Command: "echo finished:$FOLLOWGPT_STATUS >> " + logPath},
			{Event: EventFailed, Command: "echo failed:$FOLLOWGPT_ERROR >> " + logPath},
			{Event: EventSkipped, Command: "echo skipped:$FOLLOWGPT_JOB >> " + logPath},
		},
	})
	require.NoError(t, err)

	m.HandleEvent(scheduler.Event{Action: scheduler.EventActionStarted, Job: "nightly", RunID: "r1"})
	m.HandleEvent(scheduler.Event{Action: scheduler.EventActionFinished, Job: "nightly", RunID: "r1", Status: scheduler.StatusOK, Duration: time.Second})
	m.HandleEvent(scheduler.Event{Action: scheduler.EventActionFinished, Job: "nightly", RunID: "r2", Status: scheduler.StatusError, Error: "boom"})
	m.HandleEvent(scheduler.Event{Action: scheduler.EventActionSkipped, Job: "nightly"})

	content, err := os.ReadFile(logPath)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(content)), "\n")
	assert.Equal(t, []string{
		"started:r1",
		"finished:ok",
		"finished:error",
		"failed:boom",
		"skipped:nightly",
	}, lines)
}

func TestNilManager(t *testing.T) {
	var m *Manager
	assert.NoError(t, m.Trigger(context.Background(), EventFailed, "job", nil))
	assert.NotPanics(t, func() { m.HandleEvent(scheduler.Event{Action: scheduler.EventActionFinished}) })
}
