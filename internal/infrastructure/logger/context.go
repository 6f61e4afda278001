package logger

import (
	"context"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type ctxKey struct{}

// WithContext attaches l to ctx
func WithContext(ctx context.Context, l *zap.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// With returns ctx carrying its logger extended by fields. Middleware uses
// it to stamp request_id, user_id and user_type once per request.
func With(ctx context.Context, fields ...zap.Field) context.Context {
	return WithContext(ctx, base(ctx).With(fields...))
}

// FromContext returns the request logger, or a no-op logger outside a
// request. Inside a recorded span it also carries trace_id and span_id so
// log lines can be joined to traces.
func FromContext(ctx context.Context) *zap.Logger {
	l := base(ctx)
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return l
	}
	return l.With(zap.Stringer("trace_id", sc.TraceID()), zap.Stringer("span_id", sc.SpanID()))
}

func base(ctx context.Context) *zap.Logger {
	if l, ok := ctx.Value(ctxKey{}).(*zap.Logger); ok && l != nil {
		return l
	}
	return zap.NewNop()
}
