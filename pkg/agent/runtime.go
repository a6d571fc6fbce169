package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/LetsVenture2021/FollowGPT/internal/tracing"
	"github.com/LetsVenture2021/FollowGPT/pkg/planner"
	"github.com/LetsVenture2021/FollowGPT/pkg/toolexecutor"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
)

const tracerName = "followgpt/agent"

// RunLogger persists a finished run
type RunLogger interface {
	LogRun(ctx context.Context, runID, prompt string, plan *planner.Plan, result *planner.PlanResult) error
}

// RuntimeConfig holds runtime dependencies
type RuntimeConfig struct {
	Registry  *toolexecutor.Registry
	Client    planner.LLMClient
	Executor  *toolexecutor.Executor
	RunLogger RunLogger
	Policy    *toolexecutor.Policy
	Confirmer toolexecutor.ApprovalHandler
	Progress  toolexecutor.LogFunc
	Logger    zerolog.Logger
}

// Overrides adjusts the execution context of a single request. Zero
// fields keep the runtime defaults.
type Overrides struct {
	Cwd       string
	RunID     string
	Policy    *toolexecutor.Policy
	Confirmer toolexecutor.ApprovalHandler
	Progress  toolexecutor.LogFunc
}

// Runtime plans and executes user requests
type Runtime struct {
	planner   *planner.Planner
	executor  *planner.Executor
	tools     *toolexecutor.Executor
	runLogger RunLogger
	policy    *toolexecutor.Policy
	confirmer toolexecutor.ApprovalHandler
	progress  toolexecutor.LogFunc
	logger    zerolog.Logger
}

// NewRuntime creates a new runtime
func NewRuntime(cfg RuntimeConfig) (*Runtime, error) {
	if cfg.Registry == nil {
		return nil, fmt.Errorf("tool registry is required")
	}
	if cfg.Client == nil {
		return nil, fmt.Errorf("LLM client is required")
	}

	tools := cfg.Executor
	if tools == nil {
		tools = toolexecutor.NewExecutor(cfg.Registry)
	}
	progress := cfg.Progress
	if progress == nil {
		progress = toolexecutor.ZerologLogFunc
	}

	return &Runtime{
		planner:   planner.NewPlanner(cfg.Registry, cfg.Client),
		executor:  planner.NewExecutor(tools),
		tools:     tools,
		runLogger: cfg.RunLogger,
		policy:    cfg.Policy,
		confirmer: cfg.Confirmer,
		progress:  progress,
		logger:    cfg.Logger,
	}, nil
}

// Tools returns the tool executor used for plan steps
func (rt *Runtime) Tools() *toolexecutor.Executor {
	return rt.tools
}

// NewExecutionContext builds the per-request context from the runtime
// defaults and o.
func (rt *Runtime) NewExecutionContext(prompt string, o Overrides) *toolexecutor.ExecutionContext {
	execCtx := &toolexecutor.ExecutionContext{
		Cwd:        o.Cwd,
		Platform:   runtime.GOOS,
		Logger:     rt.progress,
		Confirmer:  rt.confirmer,
		Policy:     rt.policy,
		UserPrompt: prompt,
		RunID:      o.RunID,
	}
	if execCtx.Cwd == "" {
		execCtx.Cwd, _ = os.Getwd()
	} else if abs, err := filepath.Abs(execCtx.Cwd); err == nil {
		execCtx.Cwd = abs
	}
	if execCtx.RunID == "" {
		execCtx.RunID = uuid.NewString()
	}
	if o.Policy != nil {
		execCtx.Policy = o.Policy
	}
	if o.Confirmer != nil {
		execCtx.Confirmer = o.Confirmer
	}
	if o.Progress != nil {
		execCtx.Logger = o.Progress
	}
	return execCtx
}

// Plan generates a plan without executing it
func (rt *Runtime) Plan(ctx context.Context, prompt string) (*planner.Plan, error) {
	return rt.planner.PlanFromPrompt(ctx, prompt)
}

// HandlePrompt plans prompt and runs every step. Planning failures are
// returned before any step runs; step failures are recorded in the result.
func (rt *Runtime) HandlePrompt(ctx context.Context, prompt string, o Overrides) (*planner.PlanResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	execCtx := rt.NewExecutionContext(prompt, o)

	ctx = tracing.NewRunContext(ctx, execCtx.RunID)
	ctx, span := tracing.StartSpan(ctx, tracerName, "agent.handle_prompt",
		attribute.String("run.id", execCtx.RunID),
	)
	logger := tracing.PropagateToLogger(ctx, rt.logger)

	plan, err := rt.planner.PlanFromPrompt(ctx, prompt)
	if err != nil {
		tracing.EndSpan(span, err)
		logger.Error().Err(err).Msg("Planning failed")
		return nil, err
	}

	if data, merr := json.Marshal(plan); merr == nil {
		logger.Debug().RawJSON("plan", data).Msg("Plan ready")
	}
	execCtx.Log("Plan: "+plan.Summary, map[string]interface{}{"steps": len(plan.Steps)})

	result := rt.executor.Execute(ctx, plan, execCtx)
	span.SetAttributes(attribute.Int("plan.failed_steps", result.FailedSteps()))
	tracing.EndSpan(span, nil)

	rt.logRun(ctx, logger, execCtx, plan, result)

	return result, nil
}

// ExecutePlan runs an already generated plan under a fresh execution context
func (rt *Runtime) ExecutePlan(ctx context.Context, prompt string, plan *planner.Plan, o Overrides) *planner.PlanResult {
	if ctx == nil {
		ctx = context.Background()
	}
	execCtx := rt.NewExecutionContext(prompt, o)
	ctx = tracing.NewRunContext(ctx, execCtx.RunID)

	result := rt.executor.Execute(ctx, plan, execCtx)
	rt.logRun(ctx, tracing.PropagateToLogger(ctx, rt.logger), execCtx, plan, result)
	return result
}

func (rt *Runtime) logRun(ctx context.Context, logger zerolog.Logger, execCtx *toolexecutor.ExecutionContext, plan *planner.Plan, result *planner.PlanResult) {
	if rt.runLogger == nil {
		return
	}
	if err := rt.runLogger.LogRun(ctx, execCtx.RunID, execCtx.UserPrompt, plan, result); err != nil {
		logger.Warn().Err(err).Str("run_id", execCtx.RunID).Msg("Failed to log run")
	}
}
