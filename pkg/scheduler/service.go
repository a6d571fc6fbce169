package scheduler

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/LetsVenture2021/FollowGPT/internal/tracing"
	"github.com/LetsVenture2021/FollowGPT/pkg/toolexecutor"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

var (
	// ErrJobNotFound is returned for unknown job names
	ErrJobNotFound = errors.New("scheduled job not found")

	// ErrJobExists is returned when adding a job whose name is taken
	ErrJobExists = errors.New("scheduled job already exists")
)

var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// ParseSchedule parses a 5-field cron expression or a descriptor such as @daily
func ParseSchedule(expr string) (cron.Schedule, error) {
	if expr == "" {
		return nil, fmt.Errorf("cron expression is required")
	}
	sched, err := parser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid cron expression %q: %w", expr, err)
	}
	return sched, nil
}

type entry struct {
	job     *Job
	entryID cron.EntryID
	sched   cron.Schedule
}

// Service schedules and runs macros
type Service struct {
	cron    *cron.Cron
	opts    Options
	entries map[string]*entry
	mu      sync.RWMutex
	ctx     context.Context
	cancel  context.CancelFunc
	started bool
}

// NewService creates a new scheduler service
func NewService(opts Options) (*Service, error) {
	if opts.Runner == nil {
		return nil, fmt.Errorf("macro runner is required")
	}
	if opts.Confirmer == nil {
		opts.Confirmer = toolexecutor.DenyAllHandler{}
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Cwd != "" {
		abs, err := filepath.Abs(opts.Cwd)
		if err != nil {
			return nil, fmt.Errorf("invalid working directory %s: %w", opts.Cwd, err)
		}
		opts.Cwd = abs
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Service{
		cron:    cron.New(cron.WithParser(parser), cron.WithLocation(opts.Location), cron.WithLogger(cronLogger{})),
		opts:    opts,
		entries: make(map[string]*entry),
		ctx:     ctx,
		cancel:  cancel,
	}, nil
}

// Add schedules s
func (svc *Service) Add(s Schedule) (*Job, error) {
	if s.Name == "" {
		return nil, fmt.Errorf("schedule name is required")
	}
	if s.Macro == "" {
		return nil, fmt.Errorf("schedule %s: macro is required", s.Name)
	}
	sched, err := ParseSchedule(s.Cron)
	if err != nil {
		return nil, fmt.Errorf("schedule %s: %w", s.Name, err)
	}

	id, err := gonanoid.New()
	if err != nil {
		return nil, fmt.Errorf("failed to generate job id: %w", err)
	}

	svc.mu.Lock()
	defer svc.mu.Unlock()

	if _, exists := svc.entries[s.Name]; exists {
		return nil, fmt.Errorf("%w: %s", ErrJobExists, s.Name)
	}

	job := &Job{ID: id, Schedule: s}
	next := sched.Next(time.Now().In(svc.opts.Location))
	job.State.NextRunAt = &next

	name := s.Name
	entryID := svc.cron.Schedule(sched, cron.FuncJob(func() { svc.execute(name) }))
	svc.entries[name] = &entry{job: job, entryID: entryID, sched: sched}

	log.Info().
		Str("job", name).
		Str("macro", s.Macro).
		Str("cron", s.Cron).
		Time("nextRun", next).
		Msg("Job scheduled")

	snapshot := *job
	return &snapshot, nil
}

// Remove unschedules the job called name
func (svc *Service) Remove(name string) error {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	e, ok := svc.entries[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrJobNotFound, name)
	}
	svc.cron.Remove(e.entryID)
	delete(svc.entries, name)

	log.Info().Str("job", name).Msg("Job removed")
	return nil
}

// Jobs returns a snapshot of every job sorted by name
func (svc *Service) Jobs() []Job {
	svc.mu.RLock()
	defer svc.mu.RUnlock()

	jobs := make([]Job, 0, len(svc.entries))
	for _, e := range svc.entries {
		jobs = append(jobs, *e.job)
	}
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].Schedule.Name < jobs[j].Schedule.Name })
	return jobs
}

// Start starts firing jobs in the background
func (svc *Service) Start() {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	if svc.started {
		return
	}
	svc.started = true
	svc.cron.Start()
	log.Info().Int("jobs", len(svc.entries)).Msg("Scheduler started")
}

// Stop stops firing jobs, cancels running macros and waits for them to return
func (svc *Service) Stop() {
	svc.cancel()
	<-svc.cron.Stop().Done()
	log.Info().Msg("Scheduler stopped")
}

// RunNow runs the job called name immediately and returns its error
func (svc *Service) RunNow(name string) error {
	svc.mu.RLock()
	_, ok := svc.entries[name]
	svc.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrJobNotFound, name)
	}
	return svc.execute(name)
}

func (svc *Service) execute(name string) error {
	svc.mu.Lock()
	e, ok := svc.entries[name]
	if !ok {
		svc.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrJobNotFound, name)
	}
	if e.job.State.Running {
		svc.mu.Unlock()
		log.Debug().Str("job", name).Msg("Job already running, skipping execution")
		svc.emit(Event{Action: EventActionSkipped, Job: name})
		return nil
	}
	e.job.State.Running = true
	macroName := e.job.Schedule.Macro
	svc.mu.Unlock()

	runID, err := gonanoid.New()
	if err != nil {
		runID = fmt.Sprintf("%s-%d", name, time.Now().UnixNano())
	}
	execCtx := &toolexecutor.ExecutionContext{
		Cwd:        svc.opts.Cwd,
		Platform:   runtime.GOOS,
		Logger:     toolexecutor.ZerologLogFunc,
		Confirmer:  svc.opts.Confirmer,
		Policy:     svc.opts.Policy,
		UserPrompt: "schedule:" + name,
		RunID:      runID,
	}

	ctx := tracing.NewRunContext(svc.ctx, runID)
	svc.emit(Event{Action: EventActionStarted, Job: name, RunID: runID})
	log.Info().Str("job", name).Str("macro", macroName).Str("run_id", runID).Msg("Executing job")

	start := time.Now()
	_, runErr := svc.opts.Runner.Run(ctx, macroName, execCtx)
	duration := time.Since(start)

	svc.mu.Lock()
	state := &e.job.State
	state.Running = false
	state.LastRunAt = &start
	state.LastDuration = duration
	state.LastRunID = runID
	state.Runs++
	if runErr != nil {
		state.LastStatus = StatusError
		state.LastError = runErr.Error()
		state.ConsecutiveErrors++
	} else {
		state.LastStatus = StatusOK
		state.LastError = ""
		state.ConsecutiveErrors = 0
	}
	next := e.sched.Next(time.Now().In(svc.opts.Location))
	state.NextRunAt = &next
	event := Event{
		Action:   EventActionFinished,
		Job:      name,
		RunID:    runID,
		Status:   state.LastStatus,
		Error:    state.LastError,
		Duration: duration,
	}
	consecutive := state.ConsecutiveErrors
	svc.mu.Unlock()

	if runErr != nil {
		log.Error().
			Err(runErr).
			Str("job", name).
			Str("run_id", runID).
			Int("consecutiveErrors", consecutive).
			Msg("Job execution failed")
	} else {
		log.Info().
			Str("job", name).
			Str("run_id", runID).
			Dur("duration", duration).
			Msg("Job execution completed")
	}
	svc.emit(event)
	return runErr
}

func (svc *Service) emit(e Event) {
	if svc.opts.OnEvent != nil {
		svc.opts.OnEvent(e)
	}
}

// cronLogger routes robfig/cron's internal logging to zerolog
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	log.Debug().Fields(keysAndValues).Msg("cron: " + msg)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	log.Error().Err(err).Fields(keysAndValues).Msg("cron: " + msg)
}
