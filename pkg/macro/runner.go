package macro

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/LetsVenture2021/FollowGPT/internal/observability"
	"github.com/LetsVenture2021/FollowGPT/internal/tracing"
	"github.com/LetsVenture2021/FollowGPT/pkg/sandbox"
	"github.com/LetsVenture2021/FollowGPT/pkg/toolexecutor"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
)

// MaxDepth bounds macros that run other macros
const MaxDepth = 8

const tracerName = "followgpt/macro"

type depthKey struct{}

// DepthFromContext returns how many macro runs enclose ctx
func DepthFromContext(ctx context.Context) int {
	if ctx == nil {
		return 0
	}
	if d, ok := ctx.Value(depthKey{}).(int); ok {
		return d
	}
	return 0
}

// StepResult is the output of one successful macro step
type StepResult struct {
	Step   Step        `json:"step"`
	Output interface{} `json:"output"`
}

// Runner replays stored macros fail-fast
type Runner struct {
	tools *toolexecutor.Executor
	store Store
	shell sandbox.Runner
}

// NewRunner creates a macro runner
func NewRunner(tools *toolexecutor.Executor, store Store, shell sandbox.Runner) *Runner {
	return &Runner{
		tools: tools,
		store: store,
		shell: shell,
	}
}

// Run loads the macro called name and runs its steps
func (r *Runner) Run(ctx context.Context, name string, execCtx *toolexecutor.ExecutionContext) ([]StepResult, error) {
	if r.store == nil {
		return nil, fmt.Errorf("no macro store configured")
	}
	m, err := r.store.GetMacro(ctx, name)
	if err != nil {
		return nil, err
	}
	return r.RunSteps(ctx, m.Name, m.Steps, execCtx)
}

// RunSteps runs steps in order and stops at the first failure. Results of
// the steps that completed before the failure are returned with the error.
func (r *Runner) RunSteps(ctx context.Context, name string, steps []Step, execCtx *toolexecutor.ExecutionContext) (results []StepResult, err error) {
	if ctx == nil {
		ctx = context.Background()
	}
	depth := DepthFromContext(ctx)
	if depth >= MaxDepth {
		return nil, fmt.Errorf("%w: %s at depth %d", ErrMacroDepth, name, depth)
	}
	ctx = context.WithValue(ctx, depthKey{}, depth+1)
	ctx = tracing.PropagateToMacro(ctx, name)

	startTime := time.Now()
	logger := tracing.PropagateToLogger(ctx, log.Logger)
	logger.Info().Int("steps", len(steps)).Int("depth", depth+1).Msg("Running macro")

	defer func() {
		observability.RecordMacroRun(err == nil)
		if err != nil {
			logger.Error().Err(err).Int("completed", len(results)).Msg("Macro failed")
		} else {
			logger.Info().Dur("duration", time.Since(startTime)).Msg("Macro completed")
		}
	}()

	results = make([]StepResult, 0, len(steps))
	for i, step := range steps {
		output, serr := r.runStep(ctx, i, step, execCtx)
		if serr != nil {
			return results, fmt.Errorf("macro %s step %d (%s): %w", name, i, step, serr)
		}
		results = append(results, StepResult{Step: step, Output: output})
	}

	return results, nil
}

func (r *Runner) runStep(ctx context.Context, index int, step Step, execCtx *toolexecutor.ExecutionContext) (output interface{}, err error) {
	ctx, span := tracing.StartSpan(ctx, tracerName, "macro.step",
		attribute.Int("step.index", index),
		attribute.String("step.kind", string(step.Kind)),
	)
	defer func() { tracing.EndSpan(span, err) }()

	switch step.Kind {
	case KindTool:
		return r.tools.Invoke(ctx, step.Tool, step.Input, execCtx)
	case KindShell:
		return r.runShell(ctx, step, execCtx)
	default:
		return nil, fmt.Errorf("%w: unknown kind %q", ErrInvalidStep, step.Kind)
	}
}

func (r *Runner) runShell(ctx context.Context, step Step, execCtx *toolexecutor.ExecutionContext) (interface{}, error) {
	if r.shell == nil {
		return nil, fmt.Errorf("%w: no shell runner configured", toolexecutor.ErrHandler)
	}

	cwd := step.Cwd
	base := execCtx.WorkingDir()
	if cwd == "" {
		cwd = base
	} else if !filepath.IsAbs(cwd) {
		cwd = filepath.Join(base, cwd)
	}

	if err := r.tools.Policy().AuthorizePaths([]string{cwd}, execCtx); err != nil {
		return nil, err
	}

	execCtx.Log("Running shell command", map[string]interface{}{"command": step.Command, "cwd": cwd})

	res, err := r.shell.Run(ctx, sandbox.ShellRequest{Command: step.Command, WorkingDir: cwd})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", toolexecutor.ErrHandler, err)
	}

	return map[string]interface{}{
		"stdout":   res.Stdout,
		"stderr":   res.Stderr,
		"exitCode": res.ExitCode,
	}, nil
}
