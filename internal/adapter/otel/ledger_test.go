package otel_test

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel/codes"

	adapter "github.com/neomorfeo/celsiusify/internal/adapter/otel"
	"github.com/neomorfeo/celsiusify/internal/domain"
)

type mockLedger struct {
	saved []domain.Conversion
	err   error
}

func (m *mockLedger) Save(_ context.Context, conversions ...domain.Conversion) error {
	if m.err != nil {
		return m.err
	}
	m.saved = append(m.saved, conversions...)
	return nil
}

func (m *mockLedger) Stats(_ context.Context, id domain.AppIdentifier) (domain.LedgerStats, error) {
	if m.err != nil {
		return domain.LedgerStats{}, m.err
	}
	var count int64
	for _, c := range m.saved {
		if c.AppIdentifier == id {
			count++
		}
	}
	return domain.LedgerStats{AppIdentifier: id, Count: count}, nil
}

func TestTracingLedger_Save_RecordsSpan(t *testing.T) {
	exporter := setupTestTracer(t)
	inner := &mockLedger{}
	ledger := adapter.NewTracingLedger(inner)

	if err := ledger.Save(context.Background(),
		domain.NewConversion(testID, -40),
		domain.NewConversion(testID, 212),
	); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("got %d spans, want 1", len(spans))
	}
	if spans[0].Name != "ConversionLedger.Save" {
		t.Errorf("span name = %q, want %q", spans[0].Name, "ConversionLedger.Save")
	}
	assertAttribute(t, spans[0], "conversion.batch_size", "2")

	if len(inner.saved) != 2 {
		t.Errorf("inner ledger saved %d conversions, want 2", len(inner.saved))
	}
}

func TestTracingLedger_Stats_RecordsResultCount(t *testing.T) {
	exporter := setupTestTracer(t)
	inner := &mockLedger{}
	ledger := adapter.NewTracingLedger(inner)

	inner.saved = append(inner.saved,
		domain.NewConversion(testID, 1),
		domain.NewConversion(testID, 2),
	)

	stats, err := ledger.Stats(context.Background(), testID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.Count != 2 {
		t.Errorf("Count = %d, want 2", stats.Count)
	}

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("got %d spans, want 1", len(spans))
	}
	assertAttribute(t, spans[0], "result.count", "2")
}

func TestTracingLedger_Stats_RecordsError(t *testing.T) {
	exporter := setupTestTracer(t)
	ledger := adapter.NewTracingLedger(&mockLedger{err: errors.New("locked")})

	if _, err := ledger.Stats(context.Background(), testID); err == nil {
		t.Fatal("expected error")
	}

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("got %d spans, want 1", len(spans))
	}
	if spans[0].Status.Code != codes.Error {
		t.Errorf("span status = %v, want %v", spans[0].Status.Code, codes.Error)
	}
	if len(spans[0].Events) == 0 {
		t.Error("expected error event on span")
	}
}
