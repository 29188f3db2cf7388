package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/atmx/settlement-analytics/internal/model"
)

func newTestEngine(records []model.SettlementRecord) *Engine {
	now := t0.Add(48 * time.Hour)
	return NewEngine(staticSource{records: records}, WithClock(func() time.Time { return now }))
}

// everyAnalytic runs each analytic once and returns the results in order.
func everyAnalytic(ctx context.Context, e *Engine, spec model.FilterSpec) ([]any, error) {
	var out []any
	add := func(v any, err error) error {
		if err != nil {
			return err
		}
		out = append(out, v)
		return nil
	}
	steps := []func() error{
		func() error { return add(e.ReliabilitySummary(ctx, spec)) },
		func() error { return add(e.ReliabilityByCity(ctx, spec)) },
		func() error { return add(e.Streaks(ctx, spec)) },
		func() error { return add(e.CostSummary(ctx, spec)) },
		func() error { return add(e.CostByEdgeBucket(ctx, spec)) },
		func() error { return add(e.EdgeCalibration(ctx, spec, DefaultEdgeBucketSize)) },
		func() error { return add(e.ConfidenceCalibration(ctx, spec, DefaultConfidenceBucketSize)) },
		func() error { return add(e.Bias(ctx, spec)) },
		func() error { return add(e.ProviderAccuracy(ctx, spec)) },
		func() error { return add(e.Staleness(ctx, spec)) },
		func() error { return add(e.Dropout(ctx, spec)) },
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func sampleLog() []model.SettlementRecord {
	actual := 88.0
	records := mixedCities()
	for i := range records {
		records[i].PredictedEdgeCents = float64(10 + 3*i)
		records[i].Confidence = 0.6 + 0.04*float64(i)
		records[i].ProviderCount = 3 + i%3
		records[i].NOAAStale = i%4 == 0
		records[i].ActualTemp = &actual
		records[i].IndividualForecasts = map[string]float64{"noaa": 87, "tomorrow": 90}
		if i%2 == 0 {
			records[i].Side = model.SideNo
			records[i].IndividualForecasts["openmeteo"] = 88.5
		}
	}
	return records
}

func TestEngine_Deterministic(t *testing.T) {
	e := newTestEngine(sampleLog())
	spec := model.FilterSpec{Days: intp(30), MinTrades: 1}

	first, err := everyAnalytic(context.Background(), e, spec)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := everyAnalytic(context.Background(), e, spec)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	a, _ := json.Marshal(first)
	b, _ := json.Marshal(second)
	if string(a) != string(b) {
		t.Errorf("results differ between runs:\n%s\n%s", a, b)
	}
}

func TestEngine_EmptyLog(t *testing.T) {
	e := newTestEngine(nil)
	results, err := everyAnalytic(context.Background(), e, model.FilterSpec{})
	if err != nil {
		t.Fatalf("empty log must not error: %v", err)
	}

	summary := results[0].(*ReliabilitySummaryResult)
	if summary.TotalTrades != 0 || len(summary.ByCity) != 0 || summary.Streaks.CurrentStreakType != nil {
		t.Errorf("unexpected summary for empty log: %+v", summary)
	}
	cost := results[3].(*CostSummaryResult)
	assertNull(t, "roi", cost.ROI)
	bias := results[7].(*BiasResult)
	if bias.Color != nil {
		t.Errorf("expected null colour, got %v", *bias.Color)
	}

	data, err := json.Marshal(results[1])
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"cities":[],"count":0,"filters":{"days":null,"city":null,"min_trades":0,"paper":null}}`
	if string(data) != want {
		t.Errorf("unexpected by-city JSON:\n got %s\nwant %s", data, want)
	}
}

func TestEngine_FiltersEchoed(t *testing.T) {
	e := newTestEngine(sampleLog())
	spec := model.FilterSpec{Days: intp(7), City: "PHX", MinTrades: 2}
	res, err := e.ReliabilityByCity(context.Background(), spec)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Filters.Days == nil || *res.Filters.Days != 7 {
		t.Errorf("expected days=7 echoed, got %v", res.Filters.Days)
	}
	if res.Filters.City == nil || *res.Filters.City != "PHX" {
		t.Errorf("expected city=PHX echoed, got %v", res.Filters.City)
	}
	if res.Filters.MinTrades != 2 {
		t.Errorf("expected min_trades=2 echoed, got %d", res.Filters.MinTrades)
	}
	if res.Count != 1 || res.Cities[0].City != "PHX" {
		t.Errorf("expected only PHX, got %+v", res.Cities)
	}
}

func TestEngine_InvalidInput(t *testing.T) {
	e := newTestEngine(sampleLog())
	ctx := context.Background()

	if _, err := e.CostSummary(ctx, model.FilterSpec{MinTrades: -1}); !errors.Is(err, model.ErrInvalidInput) {
		t.Errorf("negative min_trades: expected ErrInvalidInput, got %v", err)
	}
	if _, err := e.Streaks(ctx, model.FilterSpec{Days: intp(-3)}); !errors.Is(err, model.ErrInvalidInput) {
		t.Errorf("negative days: expected ErrInvalidInput, got %v", err)
	}
	if _, err := e.ConfidenceCalibration(ctx, model.FilterSpec{}, 0); !errors.Is(err, model.ErrInvalidInput) {
		t.Errorf("zero bucket_size: expected ErrInvalidInput, got %v", err)
	}
}

func TestEngine_SourceErrorIsolated(t *testing.T) {
	boom := errors.New("postgres down")
	e := NewEngine(staticSource{err: boom})
	if _, err := e.Dropout(context.Background(), model.FilterSpec{}); !errors.Is(err, boom) {
		t.Errorf("expected source error, got %v", err)
	}
}

func TestEngine_CancelledContext(t *testing.T) {
	e := newTestEngine(sampleLog())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := e.Bias(ctx, model.FilterSpec{}); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
