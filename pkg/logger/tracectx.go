package logger

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/trace"
)

// AttrsFromCtx returns the ids of the active span. Unsampled spans are
// marked so gateway logs can be matched against the exported traces.
func AttrsFromCtx(ctx context.Context) []slog.Attr {
	sc := trace.SpanFromContext(ctx).SpanContext()
	if !sc.IsValid() {
		return nil
	}

	attrs := []slog.Attr{
		slog.String("trace_id", sc.TraceID().String()),
		slog.String("span_id", sc.SpanID().String()),
	}
	if !sc.IsSampled() {
		attrs = append(attrs, slog.Bool("trace_sampled", false))
	}
	return attrs
}
