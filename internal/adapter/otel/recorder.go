package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/neomorfeo/celsiusify/internal/domain"
)

const instrumentationName = "github.com/neomorfeo/celsiusify/internal/adapter/otel"

// TracingRecorder wraps a domain.ConversionRecorder with a span per call and
// counts recorded conversions.
type TracingRecorder struct {
	next     domain.ConversionRecorder
	tracer   trace.Tracer
	recorded metric.Int64Counter
}

// Compile-time check: TracingRecorder implements domain.ConversionRecorder.
var _ domain.ConversionRecorder = (*TracingRecorder)(nil)

// NewTracingRecorder creates a tracing decorator around the given recorder.
func NewTracingRecorder(next domain.ConversionRecorder) (*TracingRecorder, error) {
	recorded, err := otel.Meter(instrumentationName).Int64Counter(
		"celsiusify.conversions.recorded",
		metric.WithDescription("Conversions handed to the ledger"),
		metric.WithUnit("{conversion}"),
	)
	if err != nil {
		return nil, err
	}

	return &TracingRecorder{
		next:     next,
		tracer:   otel.Tracer(instrumentationName),
		recorded: recorded,
	}, nil
}

func (r *TracingRecorder) Record(ctx context.Context, conversions []domain.Conversion) error {
	ctx, span := r.tracer.Start(ctx, "ConversionRecorder.Record",
		trace.WithAttributes(attribute.Int("conversion.batch_size", len(conversions))),
	)
	defer span.End()

	err := r.next.Record(ctx, conversions)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	r.recorded.Add(ctx, int64(len(conversions)))
	return nil
}

// ObserveDropped exports dropped() as the celsiusify.conversions.dropped
// counter, read on every collection.
func ObserveDropped(id domain.AppIdentifier, dropped func() int64) error {
	_, err := otel.Meter(instrumentationName).Int64ObservableCounter(
		"celsiusify.conversions.dropped",
		metric.WithDescription("Conversions dropped because the record queue was full"),
		metric.WithUnit("{conversion}"),
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			o.Observe(dropped(), metric.WithAttributes(attribute.String("app.identifier", id.String())))
			return nil
		}),
	)
	return err
}
