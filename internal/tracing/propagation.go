package tracing

import (
	"context"

	"github.com/rs/zerolog"
)

// PropagateToMacro derives the context for a nested macro replay. The trace
// and run IDs of the parent are kept.
func PropagateToMacro(ctx context.Context, macro string) context.Context {
	if GetTraceID(ctx) == "" {
		ctx = WithTraceID(ctx, NewTraceID())
	}
	return WithMacro(ctx, macro)
}

// PropagateToLogger adds tracing context to a zerolog logger
func PropagateToLogger(ctx context.Context, logger zerolog.Logger) zerolog.Logger {
	tc := FromContext(ctx)

	if tc.TraceID != "" {
		logger = logger.With().Str("trace_id", tc.TraceID).Logger()
	}
	if tc.RunID != "" {
		logger = logger.With().Str("run_id", tc.RunID).Logger()
	}
	if tc.Macro != "" {
		logger = logger.With().Str("macro", tc.Macro).Logger()
	}

	return logger
}
