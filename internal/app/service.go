package app

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/neomorfeo/celsiusify/internal/domain"
)

// Defaults for the record buffer between Convert and the recorder.
const (
	DefaultBufferSize    = 4096
	DefaultBatchSize     = 256
	DefaultFlushInterval = 100 * time.Millisecond
)

// ConversionService answers conversion requests for one process.
// It is built once by Initialize and is read-only afterwards, so handlers
// may share it without locking.
type ConversionService struct {
	identifier domain.AppIdentifier
	recorder   domain.ConversionRecorder
	ledger     domain.ConversionLedger

	pending       chan domain.Conversion
	batchSize     int
	flushInterval time.Duration
	dropped       atomic.Int64
}

// Option configures a ConversionService.
type Option func(*ConversionService)

// WithRecordBuffer sets how many conversions may wait for the recorder, how
// many are handed over at once, and how long a partial batch may wait.
func WithRecordBuffer(size, batchSize int, flushInterval time.Duration) Option {
	return func(s *ConversionService) {
		s.pending = make(chan domain.Conversion, size)
		s.batchSize = batchSize
		s.flushInterval = flushInterval
	}
}

// Initialize generates the process identifier and returns the ready service.
// A nil recorder disables recording; a nil ledger disables Stats.
func Initialize(recorder domain.ConversionRecorder, ledger domain.ConversionLedger, opts ...Option) *ConversionService {
	return NewConversionService(NewIdentifier(), recorder, ledger, opts...)
}

// NewConversionService creates a service around an existing identifier.
func NewConversionService(id domain.AppIdentifier, recorder domain.ConversionRecorder, ledger domain.ConversionLedger, opts ...Option) *ConversionService {
	s := &ConversionService{
		identifier:    id,
		recorder:      recorder,
		ledger:        ledger,
		pending:       make(chan domain.Conversion, DefaultBufferSize),
		batchSize:     DefaultBatchSize,
		flushInterval: DefaultFlushInterval,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Identifier returns the process identifier.
func (s *ConversionService) Identifier() domain.AppIdentifier {
	return s.identifier
}

// Convert turns fahrenheit into Celsius. The result is queued for the
// recorder without waiting; when the queue is full it is dropped and counted.
func (s *ConversionService) Convert(_ context.Context, fahrenheit float64) domain.Conversion {
	conversion := domain.NewConversion(s.identifier, fahrenheit)
	if s.recorder == nil {
		return conversion
	}

	select {
	case s.pending <- conversion:
	default:
		s.dropped.Add(1)
	}
	return conversion
}

// Dropped returns how many conversions never reached the recorder because
// the queue was full.
func (s *ConversionService) Dropped() int64 {
	return s.dropped.Load()
}

// Run hands queued conversions to the recorder in batches until ctx is done,
// then flushes what is still queued. It returns immediately without a recorder.
func (s *ConversionService) Run(ctx context.Context) {
	if s.recorder == nil {
		return
	}

	ticker := time.NewTicker(s.flushInterval)
	defer ticker.Stop()

	batch := make([]domain.Conversion, 0, s.batchSize)
	var reported int64

	flush := func(ctx context.Context) {
		if dropped := s.dropped.Load(); dropped > reported {
			slog.WarnContext(ctx, "record queue full, conversions dropped",
				"app_identifier", s.identifier.String(),
				"dropped", dropped-reported,
			)
			reported = dropped
		}
		if len(batch) == 0 {
			return
		}
		if err := s.recorder.Record(ctx, batch); err != nil {
			slog.WarnContext(ctx, "recording conversions failed",
				"app_identifier", s.identifier.String(),
				"batch", len(batch),
				"error", err,
			)
		}
		batch = make([]domain.Conversion, 0, s.batchSize)
	}

	for {
		select {
		case c := <-s.pending:
			batch = append(batch, c)
			if len(batch) >= s.batchSize {
				flush(ctx)
			}
		case <-ticker.C:
			flush(ctx)
		case <-ctx.Done():
			final := context.WithoutCancel(ctx)
			for {
				select {
				case c := <-s.pending:
					batch = append(batch, c)
					if len(batch) >= s.batchSize {
						flush(final)
					}
				default:
					flush(final)
					return
				}
			}
		}
	}
}

// Stats summarizes the conversions this process has recorded.
func (s *ConversionService) Stats(ctx context.Context) (domain.LedgerStats, error) {
	if s.ledger == nil {
		return domain.LedgerStats{}, domain.ErrLedgerDisabled
	}
	stats, err := s.ledger.Stats(ctx, s.identifier)
	if err != nil {
		return domain.LedgerStats{}, fmt.Errorf("reading ledger stats: %w", err)
	}
	return stats, nil
}
