package domain

import "context"

// ConversionRecorder hands a batch of served conversions to the ledger.
type ConversionRecorder interface {
	Record(ctx context.Context, conversions []Conversion) error
}

// ConversionLedger stores served conversions and summarizes them per process.
type ConversionLedger interface {
	Save(ctx context.Context, conversions ...Conversion) error
	Stats(ctx context.Context, id AppIdentifier) (LedgerStats, error)
}

// TransitionValidator decides where a lifecycle event leads from the current status.
type TransitionValidator interface {
	Apply(ctx context.Context, current Status, event Event) (Status, error)
}
