// Package scheduler runs stored macros on cron schedules.
//
// Invariants:
// - Each run gets its own execution context and run id.
// - A job never overlaps itself; a tick that fires while the previous run
//   is still going is skipped.
// - Mutations that need confirmation are denied unless a confirmer is configured.
package scheduler

import (
	"context"
	"time"

	"github.com/LetsVenture2021/FollowGPT/pkg/macro"
	"github.com/LetsVenture2021/FollowGPT/pkg/toolexecutor"
)

// Schedule binds a macro to a cron expression
type Schedule struct {
	Name  string `json:"name" mapstructure:"name"`
	Macro string `json:"macro" mapstructure:"macro"`
	Cron  string `json:"cron" mapstructure:"cron"`
}

// JobState tracks the outcome of a job's runs
type JobState struct {
	LastRunAt         *time.Time    `json:"lastRunAt,omitempty"`
	LastDuration      time.Duration `json:"lastDuration,omitempty"`
	LastStatus        string        `json:"lastStatus,omitempty"`
	LastError         string        `json:"lastError,omitempty"`
	LastRunID         string        `json:"lastRunId,omitempty"`
	ConsecutiveErrors int           `json:"consecutiveErrors"`
	Runs              int           `json:"runs"`
	NextRunAt         *time.Time    `json:"nextRunAt,omitempty"`
	Running           bool          `json:"running"`
}

// Job is a scheduled macro with its state
type Job struct {
	ID       string   `json:"id"`
	Schedule Schedule `json:"schedule"`
	State    JobState `json:"state"`
}

// Job run statuses
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// EventAction names scheduler events
type EventAction string

const (
	EventActionStarted  EventAction = "started"
	EventActionFinished EventAction = "finished"
	EventActionSkipped  EventAction = "skipped"
)

// Event reports job activity
type Event struct {
	Action   EventAction
	Job      string
	RunID    string
	Status   string
	Error    string
	Duration time.Duration
}

// MacroRunner runs a stored macro by name
type MacroRunner interface {
	Run(ctx context.Context, name string, execCtx *toolexecutor.ExecutionContext) ([]macro.StepResult, error)
}

// Options configures the scheduler service
type Options struct {
	Runner MacroRunner

	// Policy applies to every scheduled run
	Policy *toolexecutor.Policy

	// Confirmer answers confirmation requests; nil denies them
	Confirmer toolexecutor.ApprovalHandler

	// Cwd is the working directory of scheduled runs; empty uses the process directory
	Cwd string

	// Location evaluates cron expressions; nil uses time.Local
	Location *time.Location

	// OnEvent, when set, receives job events
	OnEvent func(Event)
}
