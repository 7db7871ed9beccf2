package obs

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Carrier snapshots the calling context's propagation fields (traceparent,
// tracestate, baggage) so they can travel through a store, like the outbox
// table, and be re-extracted on the far side.
func Carrier(ctx context.Context) propagation.MapCarrier {
	mc := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, mc)
	return mc
}

// WithTrace attaches the active span's trace/span IDs to log entries so the
// structured logs line up with the traces.
func WithTrace(ctx context.Context, log *zap.Logger) *zap.Logger {
	if log == nil {
		return nil
	}
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return log
	}
	return log.With(
		zap.String("trace_id", sc.TraceID().String()),
		zap.String("span_id", sc.SpanID().String()),
	)
}
