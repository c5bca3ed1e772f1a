package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/neomorfeo/celsiusify/internal/domain"
)

// TracingLedger wraps a domain.ConversionLedger with OpenTelemetry tracing.
type TracingLedger struct {
	next   domain.ConversionLedger
	tracer trace.Tracer
}

// Compile-time check: TracingLedger implements domain.ConversionLedger.
var _ domain.ConversionLedger = (*TracingLedger)(nil)

// NewTracingLedger creates a tracing decorator around the given ledger.
func NewTracingLedger(next domain.ConversionLedger) *TracingLedger {
	return &TracingLedger{
		next:   next,
		tracer: otel.Tracer(instrumentationName),
	}
}

func (l *TracingLedger) Save(ctx context.Context, conversions ...domain.Conversion) error {
	ctx, span := l.tracer.Start(ctx, "ConversionLedger.Save",
		trace.WithAttributes(attribute.Int("conversion.batch_size", len(conversions))),
	)
	defer span.End()

	err := l.next.Save(ctx, conversions...)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (l *TracingLedger) Stats(ctx context.Context, id domain.AppIdentifier) (domain.LedgerStats, error) {
	ctx, span := l.tracer.Start(ctx, "ConversionLedger.Stats",
		trace.WithAttributes(attribute.String("app.identifier", id.String())),
	)
	defer span.End()

	stats, err := l.next.Stats(ctx, id)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetAttributes(attribute.Int64("result.count", stats.Count))
	}
	return stats, err
}
