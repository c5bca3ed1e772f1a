package river

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"time"

	"github.com/riverqueue/river"

	"github.com/neomorfeo/celsiusify/internal/domain"
)

// Compile-time check: Recorder implements domain.ConversionRecorder.
var _ domain.ConversionRecorder = (*Recorder)(nil)

// ConversionRecord is one served conversion inside a ConversionBatchArgs job.
type ConversionRecord struct {
	AppIdentifier string    `json:"app_identifier"`
	Fahrenheit    float64   `json:"fahrenheit"`
	Celsius       float64   `json:"celsius"`
	ServedAt      time.Time `json:"served_at"`
}

// ConversionBatchArgs is a batch of served conversions waiting to be written
// to the ledger. River stores it as JSON in its job table.
type ConversionBatchArgs struct {
	Conversions []ConversionRecord `json:"conversions"`
}

// Kind returns the unique job type identifier used by River's job routing.
func (ConversionBatchArgs) Kind() string { return "conversion.served" }

// Client is the River client type parameterized for SQLite (*sql.Tx).
type Client = river.Client[*sql.Tx]

// Recorder implements domain.ConversionRecorder by enqueuing River jobs.
type Recorder struct {
	client *Client
}

// NewRecorder creates a recorder backed by the given River client.
func NewRecorder(client *Client) *Recorder {
	return &Recorder{client: client}
}

// Record enqueues the batch as a single job; the ConversionWorker persists it
// later. Non-finite values cannot be encoded as JSON and are skipped.
func (r *Recorder) Record(ctx context.Context, conversions []domain.Conversion) error {
	records := make([]ConversionRecord, 0, len(conversions))
	for _, c := range conversions {
		if !finite(c.Fahrenheit) || !finite(c.Celsius) {
			continue
		}
		records = append(records, ConversionRecord{
			AppIdentifier: c.AppIdentifier.String(),
			Fahrenheit:    c.Fahrenheit,
			Celsius:       c.Celsius,
			ServedAt:      c.At,
		})
	}
	if len(records) == 0 {
		return nil
	}

	if _, err := r.client.Insert(ctx, ConversionBatchArgs{Conversions: records}, nil); err != nil {
		return fmt.Errorf("enqueuing conversion batch: %w", err)
	}
	return nil
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
