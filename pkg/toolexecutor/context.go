package toolexecutor

import (
	"fmt"
	"os"
	"runtime"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// LogFunc receives human-readable progress messages for the user
type LogFunc func(msg string, fields map[string]interface{})

// ExecutionContext carries the per-request state shared by every step of a run
type ExecutionContext struct {
	Cwd        string
	Platform   string
	Logger     LogFunc
	Confirmer  ApprovalHandler
	Policy     *Policy
	UserPrompt string
	RunID      string
}

// NewExecutionContext returns a context for the current process: working
// directory, GOOS, a fresh run id and a zerolog-backed progress logger.
func NewExecutionContext(userPrompt string) *ExecutionContext {
	cwd, _ := os.Getwd()
	return &ExecutionContext{
		Cwd:        cwd,
		Platform:   runtime.GOOS,
		Logger:     ZerologLogFunc,
		UserPrompt: userPrompt,
		RunID:      uuid.NewString(),
	}
}

// Log forwards a progress message to the context's logger. A nil context,
// nil logger, or a panicking logger is ignored.
func (ec *ExecutionContext) Log(msg string, fields map[string]interface{}) {
	if ec == nil || ec.Logger == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			log.Warn().Str("panic", fmt.Sprint(r)).Msg("Progress logger failed")
		}
	}()
	ec.Logger(msg, fields)
}

// WorkingDir returns Cwd, falling back to the process working directory
func (ec *ExecutionContext) WorkingDir() string {
	if ec != nil && ec.Cwd != "" {
		return ec.Cwd
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "."
	}
	return cwd
}

// ZerologLogFunc writes progress messages to the global zerolog logger at info level
func ZerologLogFunc(msg string, fields map[string]interface{}) {
	log.Info().Fields(fields).Msg(msg)
}
