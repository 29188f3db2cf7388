package store

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/atmx/settlement-analytics/internal/contract"
	"github.com/atmx/settlement-analytics/internal/model"
	"github.com/atmx/settlement-analytics/internal/pricing"
)

// rawRecord accepts every historical shape of a settlement line:
//
//	format A: ts, price_cents, cost_cents, adjusted_edge, ensemble_details{...}
//	format B: timestamp, price, cost, edge, flat provider fields
//
// plus the canonical field names, so re-encoded records normalize to
// themselves.
type rawRecord struct {
	TS            *string  `json:"ts"`
	Timestamp     *string  `json:"timestamp"`
	Ticker        string   `json:"ticker"`
	City          string   `json:"city"`
	Side          string   `json:"side"`
	Count         *float64 `json:"count"`
	PriceCents    *float64 `json:"price_cents"`
	Price         *float64 `json:"price"`
	CostCents     *float64 `json:"cost_cents"`
	Cost          *float64 `json:"cost"`
	PnLCents      *float64 `json:"pnl_cents"`
	PnL           *float64 `json:"pnl"`
	Won           *bool    `json:"won"`
	AdjustedEdge  *float64 `json:"adjusted_edge"`
	PredictedEdge *float64 `json:"predicted_edge_cents"`
	Edge          *float64 `json:"edge"`
	Confidence    *float64 `json:"confidence"`
	FairCents     *float64 `json:"fair_cents"`
	ActualTemp    *float64 `json:"actual_temp"`
	Forecast      *float64 `json:"forecast"`
	PaperTrade    bool     `json:"paper_trade"`

	Ensemble *ensembleDetails `json:"ensemble_details"`
	ensembleDetails
}

type ensembleDetails struct {
	ProviderCount       *float64            `json:"provider_count"`
	NOAAStale           *bool               `json:"noaa_stale"`
	IndividualForecasts map[string]*float64 `json:"individual_forecasts"`
}

// timestampLayouts are tried in order. Layouts without a zone are UTC.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
}

// Normalize maps one raw settlement line into the canonical record.
// Lines without a parseable timestamp or with an impossible price are
// rejected with ErrMalformedRecord.
func Normalize(line []byte) (model.SettlementRecord, error) {
	var raw rawRecord
	if err := json.Unmarshal(line, &raw); err != nil {
		return model.SettlementRecord{}, fmt.Errorf("%w: %v", ErrMalformedRecord, err)
	}

	ts, err := parseTimestamp(firstString(raw.TS, raw.Timestamp))
	if err != nil {
		return model.SettlementRecord{}, err
	}

	rec := model.SettlementRecord{
		Timestamp:          ts,
		Ticker:             raw.Ticker,
		City:               strings.ToUpper(strings.TrimSpace(raw.City)),
		Side:               model.Side(strings.ToLower(strings.TrimSpace(raw.Side))),
		Count:              toInt(raw.Count),
		PriceCents:         toInt(firstFloat(raw.PriceCents, raw.Price)),
		CostCents:          toInt(firstFloat(raw.CostCents, raw.Cost)),
		PnLCents:           toInt(firstFloat(raw.PnLCents, raw.PnL)),
		PredictedEdgeCents: valueOr(firstFloat(raw.AdjustedEdge, raw.PredictedEdge, raw.Edge), 0),
		Confidence:         valueOr(raw.Confidence, 0),
		FairCents:          raw.FairCents,
		ActualTemp:         raw.ActualTemp,
		Forecast:           raw.Forecast,
		PaperTrade:         raw.PaperTrade,
	}

	if rec.Ticker != "" {
		applyTicker(&rec)
	}

	if _, err := pricing.ImpliedProbability(rec.PriceCents); err != nil {
		return model.SettlementRecord{}, fmt.Errorf("%w: %v", ErrMalformedRecord, err)
	}

	// won is authoritative; the pnl sign is only a fallback for lines that
	// predate the flag.
	if raw.Won != nil {
		rec.Won = *raw.Won
	} else {
		rec.Won = rec.PnLCents > 0
	}

	// Nested ensemble details win over flat fields.
	details := raw.ensembleDetails
	if raw.Ensemble != nil {
		details = *raw.Ensemble
	}
	rec.ProviderCount = toInt(details.ProviderCount)
	if details.NOAAStale != nil {
		rec.NOAAStale = *details.NOAAStale
	}
	for name, v := range details.IndividualForecasts {
		if v == nil {
			continue
		}
		if rec.IndividualForecasts == nil {
			rec.IndividualForecasts = make(map[string]float64, len(details.IndividualForecasts))
		}
		rec.IndividualForecasts[name] = *v
	}
	return rec, nil
}

func parseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("%w: missing timestamp", ErrMalformedRecord)
	}
	for _, layout := range timestampLayouts {
		if ts, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return ts.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: unparseable timestamp %q", ErrMalformedRecord, s)
}

func firstString(vals ...*string) string {
	for _, v := range vals {
		if v != nil && *v != "" {
			return *v
		}
	}
	return ""
}

func firstFloat(vals ...*float64) *float64 {
	for _, v := range vals {
		if v != nil {
			return v
		}
	}
	return nil
}

func valueOr(v *float64, def float64) float64 {
	if v == nil {
		return def
	}
	return *v
}

func toInt(v *float64) int {
	if v == nil || math.IsNaN(*v) || math.IsInf(*v, 0) {
		return 0
	}
	return int(math.Round(*v))
}

// applyTicker canonicalizes a well-formed ticker and fills a missing city
// from it. Tickers that fail strict parsing still yield a city when they
// carry a series prefix.
func applyTicker(rec *model.SettlementRecord) {
	c, err := contract.ParseTicker(rec.Ticker)
	if err == nil {
		rec.Ticker = c.Ticker
		if rec.City == "" {
			rec.City = c.City
		}
		return
	}
	if rec.City == "" {
		if city, ok := contract.CityFromTicker(rec.Ticker); ok {
			rec.City = city
		}
	}
}
