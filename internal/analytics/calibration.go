package analytics

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"

	"github.com/atmx/settlement-analytics/internal/model"
	"github.com/atmx/settlement-analytics/internal/pricing"
)

// Default calibration bucket widths.
const (
	DefaultEdgeBucketSize       = 5.0
	DefaultConfidenceBucketSize = 0.05
)

// MinBucketSize is the narrowest calibration bucket accepted.
const MinBucketSize = 0.001

// BiasColor classifies the magnitude of systematic edge bias.
type BiasColor string

const (
	BiasGreen BiasColor = "green"
	BiasAmber BiasColor = "amber"
	BiasRed   BiasColor = "red"
)

// Bias colour thresholds in cents, compared against |bias|.
var (
	biasAmberAt = decimal.NewFromInt(5)
	biasRedAt   = decimal.NewFromInt(15)
)

// EdgeCalibrationPoint compares predicted edge with realized win rate.
type EdgeCalibrationPoint struct {
	Label           string   `json:"label"`
	EdgeMin         float64  `json:"edge_min"`
	EdgeMax         float64  `json:"edge_max"`
	PredictedEdge   float64  `json:"predicted_edge"`
	ActualWinRate   *float64 `json:"actual_win_rate"`
	ExpectedWinRate *float64 `json:"expected_win_rate"`
	Count           int      `json:"count"`
	Wins            int      `json:"wins"`
}

// ConfidenceCalibrationPoint compares stated confidence with realized win
// rate.
type ConfidenceCalibrationPoint struct {
	Label               string   `json:"label"`
	ConfidenceMin       float64  `json:"confidence_min"`
	ConfidenceMax       float64  `json:"confidence_max"`
	PredictedConfidence float64  `json:"predicted_confidence"`
	ActualWinRate       *float64 `json:"actual_win_rate"`
	Count               int      `json:"count"`
	Wins                int      `json:"wins"`
}

// EdgeBias is the aggregate over- or under-estimation of edge.
type EdgeBias struct {
	Trades           int        `json:"trades"`
	AvgPredictedEdge *float64   `json:"avg_predicted_edge"`
	AvgActualEdge    *float64   `json:"avg_actual_edge"`
	Bias             *float64   `json:"bias"`
	Color            *BiasColor `json:"color"`
	AvgPredictedFair *float64   `json:"avg_predicted_fair"`
	AvgActualValue   *float64   `json:"avg_actual_value"`
	ActualWinRate    *float64   `json:"actual_win_rate"`
}

func validBucketSize(size float64) error {
	if math.IsNaN(size) || math.IsInf(size, 0) || size < MinBucketSize {
		return fmt.Errorf("%w: bucket_size must be >= %v, got %v", model.ErrInvalidInput, MinBucketSize, size)
	}
	return nil
}

// EdgeCalibration buckets predicted edge into fixed-width bins. The expected
// win rate of a bin is the mean model win probability of its trades.
func EdgeCalibration(records []model.SettlementRecord, spec model.FilterSpec, bucketSize float64) ([]EdgeCalibrationPoint, error) {
	if err := validBucketSize(bucketSize); err != nil {
		return nil, err
	}
	fw := FixedWidth{Size: bucketSize, Places: -1}

	out := []EdgeCalibrationPoint{}
	for _, b := range fw.Group(records, predictedEdge) {
		stats := model.NewBucketStats(b.Records)
		if suppressed(stats.Trades, spec) {
			continue
		}
		var probSum decimal.Decimal
		for _, r := range b.Records {
			probSum = probSum.Add(pricing.ExpectedWinProbability(r.PriceCents, r.PredictedEdgeCents))
		}
		out = append(out, EdgeCalibrationPoint{
			Label:           b.Label,
			EdgeMin:         b.Lower,
			EdgeMax:         b.Upper,
			PredictedEdge:   fw.Midpoint(b),
			ActualWinRate:   stats.WinRate,
			ExpectedWinRate: model.Ratio(probSum, decimal.NewFromInt(int64(stats.Trades)), model.Hundred),
			Count:           stats.Trades,
			Wins:            stats.Wins,
		})
	}
	return out, nil
}

// ConfidenceCalibration buckets confidence into fixed-width bins.
func ConfidenceCalibration(records []model.SettlementRecord, spec model.FilterSpec, bucketSize float64) ([]ConfidenceCalibrationPoint, error) {
	if err := validBucketSize(bucketSize); err != nil {
		return nil, err
	}
	fw := FixedWidth{Size: bucketSize, Places: 2}

	out := []ConfidenceCalibrationPoint{}
	for _, b := range fw.Group(records, confidence) {
		stats := model.NewBucketStats(b.Records)
		if suppressed(stats.Trades, spec) {
			continue
		}
		out = append(out, ConfidenceCalibrationPoint{
			Label:               b.Label,
			ConfidenceMin:       b.Lower,
			ConfidenceMax:       b.Upper,
			PredictedConfidence: fw.Midpoint(b),
			ActualWinRate:       stats.WinRate,
			Count:               stats.Trades,
			Wins:                stats.Wins,
		})
	}
	return out, nil
}

// Bias compares the mean predicted edge with the mean realized edge, both in
// cents per contract. Realized edge is settlement value minus entry price,
// the same mapping EdgeCalibration uses for expected win rates.
func Bias(records []model.SettlementRecord) EdgeBias {
	var predicted, realized, fair, settled decimal.Decimal
	stats := model.NewBucketStats(records)
	for _, r := range records {
		predicted = predicted.Add(decimal.NewFromFloat(r.PredictedEdgeCents))
		realized = realized.Add(pricing.RealizedEdgeCents(r.PriceCents, r.Won))
		if r.FairCents != nil {
			fair = fair.Add(decimal.NewFromFloat(*r.FairCents))
		} else {
			fair = fair.Add(pricing.FairCents(r.PriceCents, r.PredictedEdgeCents))
		}
		settled = settled.Add(pricing.SettlementValueCents(r.Won))
	}

	n := len(records)
	out := EdgeBias{
		Trades:           n,
		AvgPredictedEdge: model.Mean(predicted, n),
		AvgActualEdge:    model.Mean(realized, n),
		AvgPredictedFair: model.Mean(fair, n),
		AvgActualValue:   model.Mean(settled, n),
		ActualWinRate:    stats.WinRate,
	}
	if n == 0 {
		return out
	}

	nd := decimal.NewFromInt(int64(n))
	// The colour band uses the unrounded bias; only the reported value is rounded.
	bias := predicted.Div(nd).Sub(realized.Div(nd))
	b := bias.Round(model.ReportScale).InexactFloat64()
	color := classifyBias(bias)
	out.Bias = &b
	out.Color = &color
	return out
}

// ClassifyBias maps a bias in cents onto its colour band.
func ClassifyBias(bias float64) BiasColor {
	return classifyBias(decimal.NewFromFloat(bias))
}

func classifyBias(bias decimal.Decimal) BiasColor {
	abs := bias.Abs()
	switch {
	case abs.LessThan(biasAmberAt):
		return BiasGreen
	case abs.LessThan(biasRedAt):
		return BiasAmber
	default:
		return BiasRed
	}
}
