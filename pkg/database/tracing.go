package database

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/Aniket7411/Gems-frontend-sub001/pkg/database"

// QueryTracer wraps database operations in OpenTelemetry spans and logs
// queries slower than a threshold. A nil *QueryTracer is valid and only traces.
type QueryTracer struct {
	slowThreshold time.Duration
	logger        *slog.Logger
}

// NewQueryTracer returns a tracer that warns about queries at or above
// slowThreshold. A zero threshold or nil logger disables slow-query logging.
func NewQueryTracer(slowThreshold time.Duration, logger *slog.Logger) *QueryTracer {
	return &QueryTracer{slowThreshold: slowThreshold, logger: logger}
}

// Start begins a span for operation. The returned func must be called with
// the operation's error when it completes:
//
//	ctx, end := t.Start(ctx, "FindOpenAttempt", query)
//	defer func() { end(err) }()
func (t *QueryTracer) Start(ctx context.Context, operation, statement string) (context.Context, func(error)) {
	start := time.Now()
	ctx, span := otel.Tracer(tracerName).Start(ctx, "db."+operation,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("db.system", "postgresql"),
			attribute.String("db.operation", operation),
			attribute.String("db.statement", statement),
		),
	)

	return ctx, func(err error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()

		if t == nil || t.slowThreshold <= 0 || t.logger == nil {
			return
		}
		if elapsed := time.Since(start); elapsed >= t.slowThreshold {
			attrs := []any{
				slog.String("operation", operation),
				slog.Duration("duration", elapsed),
			}
			if err != nil {
				attrs = append(attrs, slog.String("error", err.Error()))
			}
			t.logger.WarnContext(ctx, "slow query detected", attrs...)
		}
	}
}
