package analytics

import (
	"context"
	"testing"
	"time"

	"github.com/atmx/settlement-analytics/internal/model"
)

var t0 = time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)

// settle builds a one-contract trade at 40c with a 12c predicted edge.
func settle(hour int, city string, won bool) model.SettlementRecord {
	pnl := -40
	if won {
		pnl = 60
	}
	return model.SettlementRecord{
		Timestamp:          t0.Add(time.Duration(hour) * time.Hour),
		City:               city,
		Side:               model.SideYes,
		Count:              1,
		PriceCents:         40,
		CostCents:          40,
		PnLCents:           pnl,
		Won:                won,
		PredictedEdgeCents: 12,
		Confidence:         0.75,
		ProviderCount:      5,
	}
}

// outcomes builds a PHX sequence from a string such as "WWL".
func outcomes(seq string) []model.SettlementRecord {
	out := make([]model.SettlementRecord, 0, len(seq))
	for i, c := range seq {
		out = append(out, settle(i, "PHX", c == 'W'))
	}
	return out
}

func intp(n int) *int { return &n }

func assertRate(t *testing.T, name string, got *float64, want float64) {
	t.Helper()
	if got == nil {
		t.Fatalf("%s: expected %v, got null", name, want)
	}
	if *got != want {
		t.Errorf("%s: expected %v, got %v", name, want, *got)
	}
}

func assertNull(t *testing.T, name string, got *float64) {
	t.Helper()
	if got != nil {
		t.Errorf("%s: expected null, got %v", name, *got)
	}
}

// staticSource serves a fixed slice or a fixed error.
type staticSource struct {
	records []model.SettlementRecord
	err     error
}

func (s staticSource) ReadSettlements(context.Context) ([]model.SettlementRecord, error) {
	return s.records, s.err
}
