package analytics

import (
	"context"
	"time"

	"github.com/atmx/settlement-analytics/internal/metrics"
	"github.com/atmx/settlement-analytics/internal/model"
)

// Source supplies the full settlement log. A missing log is an empty slice,
// not an error.
type Source interface {
	ReadSettlements(ctx context.Context) ([]model.SettlementRecord, error)
}

// Engine reads the log, applies a FilterSpec, and runs one analytic per call.
// It holds no state between calls.
type Engine struct {
	source Source
	now    func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides the clock used for the days window.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// NewEngine creates an engine over the given source.
func NewEngine(src Source, opts ...Option) *Engine {
	e := &Engine{source: src, now: func() time.Time { return time.Now().UTC() }}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ReliabilitySummaryResult is the overall and grouped win/loss reliability.
type ReliabilitySummaryResult struct {
	TotalTrades int `json:"total_trades"`
	ReliabilitySummary
	Filters model.FilterEcho `json:"filters"`
}

// CityReliabilityResult lists per-city reliability rows.
type CityReliabilityResult struct {
	Cities  []CityStats      `json:"cities"`
	Count   int              `json:"count"`
	Filters model.FilterEcho `json:"filters"`
}

// CityPnLResult lists per-city realized P&L, best city first.
type CityPnLResult struct {
	Cities        []CityStats      `json:"cities"`
	Count         int              `json:"count"`
	TotalPnLCents int64            `json:"total_pnl_cents"`
	Filters       model.FilterEcho `json:"filters"`
}

// StreaksResult reports current and longest win/loss runs.
type StreaksResult struct {
	Streaks
	Filters model.FilterEcho `json:"filters"`
}

// CostSummaryResult is the cost, profit and ROI summary.
type CostSummaryResult struct {
	CostSummary
	Filters model.FilterEcho `json:"filters"`
}

// CostByEdgeResult breaks ROI down by predicted-edge bracket.
type CostByEdgeResult struct {
	EdgeBuckets []EdgeBucketROI  `json:"edge_buckets"`
	Filters     model.FilterEcho `json:"filters"`
}

// EdgeCalibrationResult compares predicted edge with realized win rates.
type EdgeCalibrationResult struct {
	Calibration []EdgeCalibrationPoint `json:"calibration"`
	BucketSize  float64                `json:"bucket_size"`
	Filters     model.FilterEcho       `json:"filters"`
}

// ConfidenceCalibrationResult compares model confidence with realized win rates.
type ConfidenceCalibrationResult struct {
	Calibration []ConfidenceCalibrationPoint `json:"calibration"`
	BucketSize  float64                      `json:"bucket_size"`
	Filters     model.FilterEcho             `json:"filters"`
}

// BiasResult reports systematic over- or under-estimation of edge.
type BiasResult struct {
	EdgeBias
	Filters model.FilterEcho `json:"filters"`
}

// ProviderAccuracyResult ranks forecast providers.
type ProviderAccuracyResult struct {
	Providers []ProviderAccuracy `json:"providers"`
	Filters   model.FilterEcho   `json:"filters"`
}

// StalenessResult compares trades made with fresh and stale NOAA data.
type StalenessResult struct {
	StalenessImpact StalenessImpact  `json:"staleness_impact"`
	Filters         model.FilterEcho `json:"filters"`
}

// DropoutResult compares full and partial forecast ensembles.
type DropoutResult struct {
	DropoutImpact DropoutImpact    `json:"dropout_impact"`
	Filters       model.FilterEcho `json:"filters"`
}

// Filtered validates spec, reads the log, and returns the filtered,
// time-ordered records.
func (e *Engine) Filtered(ctx context.Context, spec model.FilterSpec) ([]model.SettlementRecord, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	records, err := e.source.ReadSettlements(ctx)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return Filter(records, spec, e.now()), nil
}

// run loads the filtered slice and applies fn, recording metrics.
func run[T any](ctx context.Context, e *Engine, analytic string, spec model.FilterSpec, fn func([]model.SettlementRecord) (T, error)) (res T, err error) {
	start := time.Now()
	defer func() { metrics.ObserveComputation(analytic, start, err) }()

	records, err := e.Filtered(ctx, spec)
	if err != nil {
		return res, err
	}
	return fn(records)
}

// ReliabilitySummary computes every reliability grouping over the filtered log.
func (e *Engine) ReliabilitySummary(ctx context.Context, spec model.FilterSpec) (*ReliabilitySummaryResult, error) {
	return run(ctx, e, "reliability_summary", spec, func(rs []model.SettlementRecord) (*ReliabilitySummaryResult, error) {
		return &ReliabilitySummaryResult{
			TotalTrades:        len(rs),
			ReliabilitySummary: Reliability(rs, spec),
			Filters:            spec.Echo(),
		}, nil
	})
}

// ReliabilityByCity returns win rates per city.
func (e *Engine) ReliabilityByCity(ctx context.Context, spec model.FilterSpec) (*CityReliabilityResult, error) {
	return run(ctx, e, "reliability_by_city", spec, func(rs []model.SettlementRecord) (*CityReliabilityResult, error) {
		cities := ByCity(rs, spec)
		return &CityReliabilityResult{Cities: cities, Count: len(cities), Filters: spec.Echo()}, nil
	})
}

// PnLByCity returns realized P&L per city. The total covers every filtered
// record, including cities hidden by min_trades.
func (e *Engine) PnLByCity(ctx context.Context, spec model.FilterSpec) (*CityPnLResult, error) {
	return run(ctx, e, "pnl_by_city", spec, func(rs []model.SettlementRecord) (*CityPnLResult, error) {
		var total int64
		for _, r := range rs {
			total += int64(r.PnLCents)
		}
		cities := PnLByCity(rs, spec)
		return &CityPnLResult{Cities: cities, Count: len(cities), TotalPnLCents: total, Filters: spec.Echo()}, nil
	})
}

// Streaks returns win/loss streaks in settlement order.
func (e *Engine) Streaks(ctx context.Context, spec model.FilterSpec) (*StreaksResult, error) {
	return run(ctx, e, "streaks", spec, func(rs []model.SettlementRecord) (*StreaksResult, error) {
		return &StreaksResult{Streaks: DetectStreaks(rs), Filters: spec.Echo()}, nil
	})
}

// CostSummary returns cost, profit, ROI and break-even figures.
func (e *Engine) CostSummary(ctx context.Context, spec model.FilterSpec) (*CostSummaryResult, error) {
	return run(ctx, e, "cost_summary", spec, func(rs []model.SettlementRecord) (*CostSummaryResult, error) {
		return &CostSummaryResult{CostSummary: Cost(rs, spec), Filters: spec.Echo()}, nil
	})
}

// CostByEdgeBucket returns ROI per predicted-edge bracket.
func (e *Engine) CostByEdgeBucket(ctx context.Context, spec model.FilterSpec) (*CostByEdgeResult, error) {
	return run(ctx, e, "cost_by_edge_bucket", spec, func(rs []model.SettlementRecord) (*CostByEdgeResult, error) {
		return &CostByEdgeResult{EdgeBuckets: CostByEdgeBucket(rs, spec), Filters: spec.Echo()}, nil
	})
}

// EdgeCalibration buckets predicted edge into bins of bucketSize cents.
func (e *Engine) EdgeCalibration(ctx context.Context, spec model.FilterSpec, bucketSize float64) (*EdgeCalibrationResult, error) {
	if err := validBucketSize(bucketSize); err != nil {
		return nil, err
	}
	return run(ctx, e, "edge_calibration", spec, func(rs []model.SettlementRecord) (*EdgeCalibrationResult, error) {
		points, err := EdgeCalibration(rs, spec, bucketSize)
		if err != nil {
			return nil, err
		}
		return &EdgeCalibrationResult{Calibration: points, BucketSize: bucketSize, Filters: spec.Echo()}, nil
	})
}

// ConfidenceCalibration buckets confidence into bins of bucketSize.
func (e *Engine) ConfidenceCalibration(ctx context.Context, spec model.FilterSpec, bucketSize float64) (*ConfidenceCalibrationResult, error) {
	if err := validBucketSize(bucketSize); err != nil {
		return nil, err
	}
	return run(ctx, e, "confidence_calibration", spec, func(rs []model.SettlementRecord) (*ConfidenceCalibrationResult, error) {
		points, err := ConfidenceCalibration(rs, spec, bucketSize)
		if err != nil {
			return nil, err
		}
		return &ConfidenceCalibrationResult{Calibration: points, BucketSize: bucketSize, Filters: spec.Echo()}, nil
	})
}

// Bias returns the mean predicted minus mean realized edge.
func (e *Engine) Bias(ctx context.Context, spec model.FilterSpec) (*BiasResult, error) {
	return run(ctx, e, "edge_bias", spec, func(rs []model.SettlementRecord) (*BiasResult, error) {
		return &BiasResult{EdgeBias: Bias(rs), Filters: spec.Echo()}, nil
	})
}

// ProviderAccuracy returns per-provider win rates and forecast error.
func (e *Engine) ProviderAccuracy(ctx context.Context, spec model.FilterSpec) (*ProviderAccuracyResult, error) {
	return run(ctx, e, "provider_accuracy", spec, func(rs []model.SettlementRecord) (*ProviderAccuracyResult, error) {
		return &ProviderAccuracyResult{Providers: Accuracy(rs, spec), Filters: spec.Echo()}, nil
	})
}

// Staleness returns the effect of stale NOAA data on win rate.
func (e *Engine) Staleness(ctx context.Context, spec model.FilterSpec) (*StalenessResult, error) {
	return run(ctx, e, "provider_staleness", spec, func(rs []model.SettlementRecord) (*StalenessResult, error) {
		return &StalenessResult{StalenessImpact: Staleness(rs), Filters: spec.Echo()}, nil
	})
}

// Dropout returns win rates by number of responding providers.
func (e *Engine) Dropout(ctx context.Context, spec model.FilterSpec) (*DropoutResult, error) {
	return run(ctx, e, "provider_dropout", spec, func(rs []model.SettlementRecord) (*DropoutResult, error) {
		return &DropoutResult{DropoutImpact: Dropout(rs), Filters: spec.Echo()}, nil
	})
}
