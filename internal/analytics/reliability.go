package analytics

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/atmx/settlement-analytics/internal/model"
)

// CityStats is the win/loss breakdown for one city.
type CityStats struct {
	City string `json:"city"`
	model.BucketStats
	AvgEdge  *float64 `json:"avg_edge"`
	PnLCents int64    `json:"pnl_cents"`
}

// SideStats is the win/loss breakdown for one contract side.
type SideStats struct {
	Side model.Side `json:"side"`
	model.BucketStats
}

// BracketStats is the win/loss breakdown for one named range.
type BracketStats struct {
	Bracket string `json:"bracket"`
	model.BucketStats
}

// ReliabilitySummary is the full reliability view of a filtered slice.
type ReliabilitySummary struct {
	Overall      model.BucketStats `json:"overall"`
	ByCity       []CityStats       `json:"by_city"`
	BySide       []SideStats       `json:"by_side"`
	ByConfidence []BracketStats    `json:"by_confidence"`
	ByEdge       []BracketStats    `json:"by_edge"`
	Streaks      Streaks           `json:"streaks"`
}

// Reliability computes every reliability grouping. The overall tally is never
// suppressed.
func Reliability(records []model.SettlementRecord, spec model.FilterSpec) ReliabilitySummary {
	return ReliabilitySummary{
		Overall:      model.NewBucketStats(records),
		ByCity:       ByCity(records, spec),
		BySide:       BySide(records, spec),
		ByConfidence: byBracket(records, spec, ConfidenceBrackets, confidence),
		ByEdge:       byBracket(records, spec, EdgeBrackets, predictedEdge),
		Streaks:      DetectStreaks(records),
	}
}

// ByCity groups by city and sorts by win rate desc, then trades desc, then
// city code.
func ByCity(records []model.SettlementRecord, spec model.FilterSpec) []CityStats {
	type acc struct {
		stats   model.BucketStats
		edgeSum decimal.Decimal
		pnl     int64
	}
	groups := make(map[string]*acc)
	for _, r := range records {
		a, ok := groups[r.City]
		if !ok {
			a = &acc{}
			groups[r.City] = a
		}
		a.stats.Add(r)
		a.edgeSum = a.edgeSum.Add(decimal.NewFromFloat(r.PredictedEdgeCents))
		a.pnl += int64(r.PnLCents)
	}

	out := make([]CityStats, 0, len(groups))
	for city, a := range groups {
		if suppressed(a.stats.Trades, spec) {
			continue
		}
		out = append(out, CityStats{
			City:        city,
			BucketStats: a.stats.Finalize(),
			AvgEdge:     model.Mean(a.edgeSum, a.stats.Trades),
			PnLCents:    a.pnl,
		})
	}

	sort.Slice(out, func(i, j int) bool {
		wi, wj := winRateOf(out[i].BucketStats), winRateOf(out[j].BucketStats)
		if wi != wj {
			return wi > wj
		}
		if out[i].Trades != out[j].Trades {
			return out[i].Trades > out[j].Trades
		}
		return out[i].City < out[j].City
	})
	return out
}

// PnLByCity groups by city like ByCity but orders by realized P&L desc, then
// trades desc, then city code.
func PnLByCity(records []model.SettlementRecord, spec model.FilterSpec) []CityStats {
	out := ByCity(records, spec)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].PnLCents != out[j].PnLCents {
			return out[i].PnLCents > out[j].PnLCents
		}
		if out[i].Trades != out[j].Trades {
			return out[i].Trades > out[j].Trades
		}
		return out[i].City < out[j].City
	})
	return out
}

// BySide groups by contract side, ordered by side.
func BySide(records []model.SettlementRecord, spec model.FilterSpec) []SideStats {
	groups := make(map[model.Side]*model.BucketStats)
	for _, r := range records {
		s, ok := groups[r.Side]
		if !ok {
			s = &model.BucketStats{}
			groups[r.Side] = s
		}
		s.Add(r)
	}

	out := make([]SideStats, 0, len(groups))
	for side, s := range groups {
		if suppressed(s.Trades, spec) {
			continue
		}
		out = append(out, SideStats{Side: side, BucketStats: s.Finalize()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Side < out[j].Side })
	return out
}

func byBracket(records []model.SettlementRecord, spec model.FilterSpec, ranges NamedRanges, value func(model.SettlementRecord) float64) []BracketStats {
	out := []BracketStats{}
	for _, b := range ranges.Group(records, value) {
		stats := model.NewBucketStats(b.Records)
		if suppressed(stats.Trades, spec) {
			continue
		}
		out = append(out, BracketStats{Bracket: b.Label, BucketStats: stats})
	}
	return out
}

// winRateOf orders groups with no rate after every group that has one.
func winRateOf(s model.BucketStats) float64 {
	if s.WinRate == nil {
		return -1
	}
	return *s.WinRate
}
