package analytics

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/atmx/settlement-analytics/internal/model"
)

// ProviderAccuracy is the record of trades a forecast provider contributed
// to. A provider is credited with a win whenever the parent trade won.
type ProviderAccuracy struct {
	Provider string `json:"provider"`
	model.BucketStats
	AvgForecastError *float64 `json:"avg_forecast_error"`
	ErrorSamples     int      `json:"error_samples"`
}

// StalenessImpact splits trades on whether primary provider data was stale.
type StalenessImpact struct {
	Fresh        model.BucketStats `json:"fresh"`
	Stale        model.BucketStats `json:"stale"`
	WinRateDelta *float64          `json:"win_rate_delta"` // stale - fresh
}

// DropoutGroup is the tally for one provider count.
type DropoutGroup struct {
	ProviderCount int `json:"provider_count"`
	model.BucketStats
}

// DropoutImpact shows how results degrade as providers drop out.
type DropoutImpact struct {
	ByProviderCount  []DropoutGroup    `json:"by_provider_count"`
	MaxProviderCount int               `json:"max_provider_count"`
	FullEnsemble     model.BucketStats `json:"full_ensemble"`
	PartialEnsemble  model.BucketStats `json:"partial_ensemble"`
	WinRateDelta     *float64          `json:"win_rate_delta"` // partial - full
}

// Accuracy groups by every provider key present in the individual
// forecasts. Sorted by win rate desc, then trades desc, then name.
func Accuracy(records []model.SettlementRecord, spec model.FilterSpec) []ProviderAccuracy {
	type acc struct {
		stats    model.BucketStats
		errSum   decimal.Decimal
		errCount int
	}
	groups := make(map[string]*acc)
	for _, r := range records {
		for provider, forecast := range r.IndividualForecasts {
			a, ok := groups[provider]
			if !ok {
				a = &acc{}
				groups[provider] = a
			}
			a.stats.Add(r)
			if r.ActualTemp != nil {
				diff := decimal.NewFromFloat(forecast).Sub(decimal.NewFromFloat(*r.ActualTemp))
				a.errSum = a.errSum.Add(diff.Abs())
				a.errCount++
			}
		}
	}

	out := make([]ProviderAccuracy, 0, len(groups))
	for provider, a := range groups {
		if suppressed(a.stats.Trades, spec) {
			continue
		}
		out = append(out, ProviderAccuracy{
			Provider:         provider,
			BucketStats:      a.stats.Finalize(),
			AvgForecastError: model.Mean(a.errSum, a.errCount),
			ErrorSamples:     a.errCount,
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
		return out[i].Provider < out[j].Provider
	})
	return out
}

// Staleness partitions every record into fresh or stale. Partitions are
// never suppressed.
func Staleness(records []model.SettlementRecord) StalenessImpact {
	var fresh, stale model.BucketStats
	for _, r := range records {
		if r.NOAAStale {
			stale.Add(r)
		} else {
			fresh.Add(r)
		}
	}
	out := StalenessImpact{Fresh: fresh.Finalize(), Stale: stale.Finalize()}
	out.WinRateDelta = rateDelta(out.Stale, out.Fresh)
	return out
}

// Dropout groups by provider count ascending and splits the slice into the
// full ensemble (the highest observed count) and everything below it.
func Dropout(records []model.SettlementRecord) DropoutImpact {
	groups := make(map[int]*model.BucketStats)
	maxCount := 0
	for _, r := range records {
		s, ok := groups[r.ProviderCount]
		if !ok {
			s = &model.BucketStats{}
			groups[r.ProviderCount] = s
		}
		s.Add(r)
		maxCount = max(maxCount, r.ProviderCount)
	}

	out := DropoutImpact{
		ByProviderCount:  make([]DropoutGroup, 0, len(groups)),
		MaxProviderCount: maxCount,
	}
	var full, partial model.BucketStats
	for _, r := range records {
		if r.ProviderCount >= maxCount {
			full.Add(r)
		} else {
			partial.Add(r)
		}
	}
	for count, s := range groups {
		out.ByProviderCount = append(out.ByProviderCount, DropoutGroup{
			ProviderCount: count,
			BucketStats:   s.Finalize(),
		})
	}
	sort.Slice(out.ByProviderCount, func(i, j int) bool {
		return out.ByProviderCount[i].ProviderCount < out.ByProviderCount[j].ProviderCount
	})

	out.FullEnsemble = full.Finalize()
	out.PartialEnsemble = partial.Finalize()
	out.WinRateDelta = rateDelta(out.PartialEnsemble, out.FullEnsemble)
	return out
}

// rateDelta returns a.win_rate - b.win_rate, or nil when either is empty.
func rateDelta(a, b model.BucketStats) *float64 {
	if a.WinRate == nil || b.WinRate == nil {
		return nil
	}
	d := decimal.NewFromFloat(*a.WinRate).Sub(decimal.NewFromFloat(*b.WinRate)).
		Round(model.ReportScale).InexactFloat64()
	return &d
}
