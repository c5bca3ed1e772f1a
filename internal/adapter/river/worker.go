package river

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/riverqueue/river"

	"github.com/neomorfeo/celsiusify/internal/domain"
)

// ConversionWorker writes batches of served conversions into the ledger.
type ConversionWorker struct {
	river.WorkerDefaults[ConversionBatchArgs]
	ledger domain.ConversionLedger
}

// Work saves one batch in a single ledger write.
func (w *ConversionWorker) Work(ctx context.Context, job *river.Job[ConversionBatchArgs]) error {
	conversions := make([]domain.Conversion, 0, len(job.Args.Conversions))
	for _, r := range job.Args.Conversions {
		conversions = append(conversions, domain.Conversion{
			Fahrenheit:    r.Fahrenheit,
			Celsius:       r.Celsius,
			AppIdentifier: domain.AppIdentifier(r.AppIdentifier),
			At:            r.ServedAt,
		})
	}

	if err := w.ledger.Save(ctx, conversions...); err != nil {
		return fmt.Errorf("saving conversions: %w", err)
	}

	slog.DebugContext(ctx, "conversions recorded",
		"count", len(conversions),
		"job_id", job.ID,
		"attempt", job.Attempt,
	)
	return nil
}
