package planner

import (
	"context"
	"time"

	"github.com/LetsVenture2021/FollowGPT/internal/observability"
	"github.com/LetsVenture2021/FollowGPT/internal/tracing"
	"github.com/LetsVenture2021/FollowGPT/pkg/toolexecutor"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
)

const tracerName = "followgpt/planner"

// Executor runs plans best-effort: a failing step is recorded and the
// remaining steps still run.
type Executor struct {
	tools *toolexecutor.Executor
}

// NewExecutor creates a new plan executor
func NewExecutor(tools *toolexecutor.Executor) *Executor {
	return &Executor{tools: tools}
}

// Execute runs every step of plan in order, one at a time, and always
// returns one result per step.
func (e *Executor) Execute(ctx context.Context, plan *Plan, execCtx *toolexecutor.ExecutionContext) *PlanResult {
	if plan == nil {
		plan = &Plan{}
	}
	startTime := time.Now()

	runID := ""
	if execCtx != nil {
		runID = execCtx.RunID
	}
	ctx, span := tracing.StartSpan(ctx, tracerName, "plan.execute",
		attribute.String("run.id", runID),
		attribute.Int("plan.steps", len(plan.Steps)),
	)

	result := &PlanResult{
		Plan:    *plan,
		Results: make([]StepResult, 0, len(plan.Steps)),
	}

	for i, step := range plan.Steps {
		res := e.executeStep(ctx, step, execCtx)
		if res.Failed() {
			log.Warn().
				Int("step", i).
				Str("tool", step.Tool).
				Str("error", res.Error).
				Msg("Plan step failed, continuing")
		}
		result.Results = append(result.Results, res)
	}

	failed := result.FailedSteps()
	span.SetAttributes(attribute.Int("plan.failed_steps", failed))
	tracing.EndSpan(span, nil)

	observability.RecordPlan("completed")
	observability.RecordPlanExecution(time.Since(startTime))

	log.Info().
		Str("run_id", runID).
		Int("steps", len(plan.Steps)).
		Int("failed", failed).
		Dur("duration", time.Since(startTime)).
		Msg("Plan executed")

	return result
}

func (e *Executor) executeStep(ctx context.Context, step PlannedStep, execCtx *toolexecutor.ExecutionContext) StepResult {
	startTime := time.Now()
	res := StepResult{Step: step}

	output, err := e.tools.Invoke(ctx, step.Tool, step.Input, execCtx)
	res.Duration = time.Since(startTime)
	if err != nil {
		res.Error = err.Error()
		return res
	}
	res.Output = output
	return res
}
