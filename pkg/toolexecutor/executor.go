package toolexecutor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/LetsVenture2021/FollowGPT/internal/observability"
	"github.com/LetsVenture2021/FollowGPT/internal/tracing"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
)

const tracerName = "followgpt/toolexecutor"

// Executor runs single tool invocations through the full pipeline:
// lookup, input validation, authorization, handler, output validation.
// Every failure is returned to the caller; deciding whether a failure ends
// the surrounding run is left to the caller.
type Executor struct {
	registry *Registry
	policy   *PolicyEngine
}

// NewExecutor creates an executor over registry using the default policy engine
func NewExecutor(registry *Registry) *Executor {
	return NewExecutorWithPolicy(registry, defaultPolicyEngine)
}

// NewExecutorWithPolicy creates an executor with a custom policy engine
func NewExecutorWithPolicy(registry *Registry, policy *PolicyEngine) *Executor {
	if policy == nil {
		policy = defaultPolicyEngine
	}
	return &Executor{
		registry: registry,
		policy:   policy,
	}
}

// Registry returns the registry the executor resolves tools from
func (e *Executor) Registry() *Registry {
	return e.registry
}

// Policy returns the policy engine used for authorization
func (e *Executor) Policy() *PolicyEngine {
	return e.policy
}

// Invoke runs one tool. A nil input is treated as an empty object.
func (e *Executor) Invoke(ctx context.Context, name string, input interface{}, execCtx *ExecutionContext) (output interface{}, err error) {
	if ctx == nil {
		ctx = context.Background()
	}
	startTime := time.Now()
	status := observability.StatusOK
	runID := ""
	if execCtx != nil {
		runID = execCtx.RunID
	}

	ctx, span := tracing.StartSpan(ctx, tracerName, "tool."+name,
		attribute.String("tool.name", name),
		attribute.String("run.id", runID),
	)
	defer func() {
		duration := time.Since(startTime)
		observability.RecordToolStep(name, status, duration)
		if err != nil {
			observability.RecordToolAudit(ctx, name, runID, status, map[string]interface{}{"error": err.Error()})
			log.Warn().
				Err(err).
				Str("tool", name).
				Str("status", status).
				Dur("duration", duration).
				Msg("Tool step failed")
		} else {
			observability.RecordToolAudit(ctx, name, runID, status, nil)
			log.Debug().
				Str("tool", name).
				Dur("duration", duration).
				Msg("Tool step completed")
		}
		span.SetAttributes(attribute.String("tool.status", status))
		tracing.EndSpan(span, err)
	}()

	tool, ok := e.registry.lookup(name)
	if !ok {
		status = observability.StatusUnknownTool
		return nil, fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}

	if m, isMap := input.(map[string]interface{}); input == nil || (isMap && m == nil) {
		input = map[string]interface{}{}
	}
	if verr := tool.input.Validate(input); verr != nil {
		status = observability.StatusInvalidInput
		return nil, fmt.Errorf("invalid input for %s: %w", name, verr)
	}

	if aerr := e.policy.AuthorizeTool(ctx, tool.desc, execCtx); aerr != nil {
		status = observability.StatusDenied
		if errors.Is(aerr, ErrConfirmationRejected) {
			status = observability.StatusRejected
		}
		observability.RecordSecurityAudit(ctx, "authorize:"+name, runID, status, map[string]interface{}{"error": aerr.Error()})
		return nil, aerr
	}

	params, ok := input.(map[string]interface{})
	if !ok {
		status = observability.StatusFailed
		return nil, fmt.Errorf("%w: %s: input is %T, not an object", ErrHandler, name, input)
	}

	execCtx.Log("Running "+name, map[string]interface{}{"tool": name})

	output, herr := callHandler(ctx, tool.desc.Handler, params, execCtx)
	if herr != nil {
		status = observability.StatusFailed
		// Policy failures raised from inside a handler (path checks) keep their kind.
		if errors.Is(herr, ErrPathDenied) || errors.Is(herr, ErrPathNotAllowed) {
			status = observability.StatusDenied
			return nil, herr
		}
		return nil, fmt.Errorf("%w: %s: %w", ErrHandler, name, herr)
	}

	if verr := tool.output.Validate(output); verr != nil {
		status = observability.StatusInvalidOutput
		return nil, fmt.Errorf("invalid output from %s: %w", name, verr)
	}

	return output, nil
}

func callHandler(ctx context.Context, handler ToolHandler, params map[string]interface{}, execCtx *ExecutionContext) (output interface{}, err error) {
	defer func() {
		if r := recover(); r != nil {
			output = nil
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return handler(ctx, params, execCtx)
}
