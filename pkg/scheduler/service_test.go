package scheduler

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/LetsVenture2021/FollowGPT/pkg/macro"
	"github.com/LetsVenture2021/FollowGPT/pkg/toolexecutor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRunner struct {
	mu       sync.Mutex
	calls    []string
	execCtxs []*toolexecutor.ExecutionContext
	err      error
	block    chan struct{}
}

func (f *fakeRunner) Run(ctx context.Context, name string, execCtx *toolexecutor.ExecutionContext) ([]macro.StepResult, error) {
	f.mu.Lock()
	f.calls = append(f.calls, name)
	f.execCtxs = append(f.execCtxs, execCtx)
	block := f.block
	f.mu.Unlock()
	if block != nil {
		<-block
	}
	return nil, f.err
}

func (f *fakeRunner) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func newTestService(t *testing.T, runner *fakeRunner, events *[]Event) *Service {
	var mu sync.Mutex
	svc, err := NewService(Options{
		Runner: runner,
		Cwd:    t.TempDir(),
		OnEvent: func(e Event) {
			if events == nil {
				return
			}
			mu.Lock()
			*events = append(*events, e)
			mu.Unlock()
		},
	})
	require.NoError(t, err)
	t.Cleanup(svc.Stop)
	return svc
}

func TestParseSchedule(t *testing.T) {
	tests := []struct {
		name    string
		expr    string
		wantErr bool
	}{
		{name: "every minute", expr: "* * * * *"},
		{name: "weekday mornings", expr: "0 9 * * 1-5"},
		{name: "descriptor", expr: "@daily"},
		{name: "every", expr: "@every 1h"},
		{name: "empty", expr: "", wantErr: true},
		{name: "seconds field", expr: "0 0 9 * * *", wantErr: true},
		{name: "garbage", expr: "not a cron", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sched, err := ParseSchedule(tt.expr)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
			assert.True(t, sched.Next(from).After(from))
		})
	}
}

func TestNewService_RequiresRunner(t *testing.T) {
	_, err := NewService(Options{})
	assert.Error(t, err)
}

func TestService_Add(t *testing.T) {
	svc := newTestService(t, &fakeRunner{}, nil)

	job, err := svc.Add(Schedule{Name: "cleanup", Macro: "tidy", Cron: "0 3 * * *"})
	require.NoError(t, err)
	assert.NotEmpty(t, job.ID)
	require.NotNil(t, job.State.NextRunAt)
	assert.True(t, job.State.NextRunAt.After(time.Now()))

	t.Run("duplicate name", func(t *testing.T) {
		_, err := svc.Add(Schedule{Name: "cleanup", Macro: "tidy", Cron: "@hourly"})
		assert.ErrorIs(t, err, ErrJobExists)
	})

	t.Run("invalid input", func(t *testing.T) {
		for _, s := range []Schedule{
			{Macro: "tidy", Cron: "@hourly"},
			{Name: "x", Cron: "@hourly"},
			{Name: "x", Macro: "tidy", Cron: "bad"},
		} {
			_, err := svc.Add(s)
			assert.Error(t, err)
		}
	})

	jobs := svc.Jobs()
	require.Len(t, jobs, 1)
	assert.Equal(t, "cleanup", jobs[0].Schedule.Name)
}

func TestService_Remove(t *testing.T) {
	svc := newTestService(t, &fakeRunner{}, nil)
	_, err := svc.Add(Schedule{Name: "a", Macro: "m", Cron: "@hourly"})
	require.NoError(t, err)

	require.NoError(t, svc.Remove("a"))
	assert.Empty(t, svc.Jobs())
	assert.ErrorIs(t, svc.Remove("a"), ErrJobNotFound)
}

func TestService_RunNow(t *testing.T) {
	runner := &fakeRunner{}
	var events []Event
	svc := newTestService(t, runner, &events)
	_, err := svc.Add(Schedule{Name: "nightly", Macro: "backup", Cron: "@daily"})
	require.NoError(t, err)

	require.NoError(t, svc.RunNow("nightly"))

	require.Equal(t, []string{"backup"}, runner.calls)
	execCtx := runner.execCtxs[0]
	assert.NotEmpty(t, execCtx.RunID)
	assert.Equal(t, "schedule:nightly", execCtx.UserPrompt)
	assert.IsType(t, toolexecutor.DenyAllHandler{}, execCtx.Confirmer)

	jobs := svc.Jobs()
	require.Len(t, jobs, 1)
	state := jobs[0].State
	assert.Equal(t, "ok", state.LastStatus)
	assert.Equal(t, 1, state.Runs)
	assert.Equal(t, execCtx.RunID, state.LastRunID)
	assert.False(t, state.Running)
	require.NotNil(t, state.LastRunAt)

	require.Len(t, events, 2)
	assert.Equal(t, EventActionStarted, events[0].Action)
	assert.Equal(t, EventActionFinished, events[1].Action)
	assert.Equal(t, "ok", events[1].Status)

	assert.ErrorIs(t, svc.RunNow("missing"), ErrJobNotFound)
}

func TestService_RunNowFailureTracksErrors(t *testing.T) {
	runner := &fakeRunner{err: errors.New("step 1 failed")}
	svc := newTestService(t, runner, nil)
	_, err := svc.Add(Schedule{Name: "flaky", Macro: "m", Cron: "@hourly"})
	require.NoError(t, err)

	assert.Error(t, svc.RunNow("flaky"))
	assert.Error(t, svc.RunNow("flaky"))

	state := svc.Jobs()[0].State
	assert.Equal(t, "error", state.LastStatus)
	assert.Equal(t, "step 1 failed", state.LastError)
	assert.Equal(t, 2, state.ConsecutiveErrors)

	runner.err = nil
	require.NoError(t, svc.RunNow("flaky"))
	state = svc.Jobs()[0].State
	assert.Equal(t, 0, state.ConsecutiveErrors)
	assert.Empty(t, state.LastError)
}

func TestService_SkipsOverlappingRuns(t *testing.T) {
	runner := &fakeRunner{block: make(chan struct{})}
	var events []Event
	svc := newTestService(t, runner, &events)
	_, err := svc.Add(Schedule{Name: "slow", Macro: "m", Cron: "@hourly"})
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- svc.RunNow("slow") }()

	require.Eventually(t, func() bool { return runner.callCount() == 1 }, time.Second, 5*time.Millisecond)
	assert.True(t, svc.Jobs()[0].State.Running)

	require.NoError(t, svc.RunNow("slow"))
	assert.Equal(t, 1, runner.callCount())

	close(runner.block)
	require.NoError(t, <-done)
	assert.Equal(t, 1, svc.Jobs()[0].State.Runs)
}

func TestService_ConfirmerAndPolicyPassThrough(t *testing.T) {
	runner := &fakeRunner{}
	policy := &toolexecutor.Policy{AllowedCapabilities: []toolexecutor.Capability{toolexecutor.CapFilesRead}}
	svc, err := NewService(Options{
		Runner:    runner,
		Policy:    policy,
		Confirmer: toolexecutor.AutoApproveHandler{},
	})
	require.NoError(t, err)
	defer svc.Stop()

	_, err = svc.Add(Schedule{Name: "j", Macro: "m", Cron: "@hourly"})
	require.NoError(t, err)
	require.NoError(t, svc.RunNow("j"))

	assert.Same(t, policy, runner.execCtxs[0].Policy)
	assert.IsType(t, toolexecutor.AutoApproveHandler{}, runner.execCtxs[0].Confirmer)
}

func TestNewService_AbsoluteWorkingDir(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	runner := &fakeRunner{}
	svc, err := NewService(Options{Runner: runner, Cwd: "."})
	require.NoError(t, err)
	t.Cleanup(svc.Stop)

	_, err = svc.Add(Schedule{Name: "job", Macro: "m", Cron: "@daily"})
	require.NoError(t, err)
	require.NoError(t, svc.RunNow("job"))

	wd, err := os.Getwd()
	require.NoError(t, err)
	require.Len(t, runner.execCtxs, 1)
	assert.Equal(t, wd, runner.execCtxs[0].Cwd)
	assert.True(t, filepath.IsAbs(runner.execCtxs[0].Cwd))
}

func TestService_FiresOnSchedule(t *testing.T) {
	runner := &fakeRunner{}
	svc := newTestService(t, runner, nil)
	_, err := svc.Add(Schedule{Name: "tick", Macro: "m", Cron: "@every 1s"})
	require.NoError(t, err)

	svc.Start()
	require.Eventually(t, func() bool { return runner.callCount() >= 1 }, 3*time.Second, 20*time.Millisecond)
}
