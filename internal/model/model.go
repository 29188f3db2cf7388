// Package model defines the core domain types shared across the analytics
// service. Settlement records are immutable once read from the log; every
// derived type here is request-scoped and never persisted.
package model

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidInput is returned when a caller supplies a malformed or
// out-of-range filter or analytic parameter.
var ErrInvalidInput = errors.New("model: invalid input")

// Side is the contract side a trade was placed on.
type Side string

const (
	SideYes Side = "yes"
	SideNo  Side = "no"
)

// Outcome classifies a settled trade. Only the record's Won flag decides it.
type Outcome string

const (
	OutcomeWin  Outcome = "win"
	OutcomeLoss Outcome = "loss"
)

// SettlementRecord is one closed trade outcome appended by the trading daemon.
// Schema: {ts, city, side, count, price, cost, pnl, won, edge, confidence, ensemble}
type SettlementRecord struct {
	Timestamp           time.Time          `json:"timestamp"`
	Ticker              string             `json:"ticker,omitempty"`
	City                string             `json:"city"`
	Side                Side               `json:"side"`
	Count               int                `json:"count"`
	PriceCents          int                `json:"price_cents"`
	CostCents           int                `json:"cost_cents"` // count * price, trusted as recorded
	PnLCents            int                `json:"pnl_cents"`
	Won                 bool               `json:"won"` // authoritative, never re-derived from pnl sign
	PredictedEdgeCents  float64            `json:"predicted_edge_cents"`
	Confidence          float64            `json:"confidence"`
	FairCents           *float64           `json:"fair_cents,omitempty"`
	ActualTemp          *float64           `json:"actual_temp,omitempty"`
	Forecast            *float64           `json:"forecast,omitempty"`
	ProviderCount       int                `json:"provider_count"`
	NOAAStale           bool               `json:"noaa_stale"`
	IndividualForecasts map[string]float64 `json:"individual_forecasts,omitempty"`
	PaperTrade          bool               `json:"paper_trade,omitempty"`
}

// Outcome returns the win/loss classification of the record.
func (r SettlementRecord) Outcome() Outcome {
	if r.Won {
		return OutcomeWin
	}
	return OutcomeLoss
}

// MaxDays bounds the lookback window to one century.
const MaxDays = 36500

// FilterSpec is the explicit set of filters applied to every analytic.
type FilterSpec struct {
	Days      *int   // lookback window in days; nil = all history
	City      string // exact city code; "" = all cities
	MinTrades int    // minimum group size for grouped detail rows
	Paper     *bool  // paper or live trades only; nil = both
}

// Validate reports whether the filters are usable.
func (f FilterSpec) Validate() error {
	if f.Days != nil && *f.Days < 0 {
		return fmt.Errorf("%w: days must be >= 0, got %d", ErrInvalidInput, *f.Days)
	}
	if f.Days != nil && *f.Days > MaxDays {
		return fmt.Errorf("%w: days must be <= %d, got %d", ErrInvalidInput, MaxDays, *f.Days)
	}
	if f.MinTrades < 0 {
		return fmt.Errorf("%w: min_trades must be >= 0, got %d", ErrInvalidInput, f.MinTrades)
	}
	return nil
}

// FilterEcho is the applied-filters object included in every result.
type FilterEcho struct {
	Days      *int    `json:"days"`
	City      *string `json:"city"`
	MinTrades int     `json:"min_trades"`
	Paper     *bool   `json:"paper"`
}

// Echo returns the JSON echo of the spec.
func (f FilterSpec) Echo() FilterEcho {
	e := FilterEcho{MinTrades: f.MinTrades}
	if f.Days != nil {
		d := *f.Days
		e.Days = &d
	}
	if f.City != "" {
		c := f.City
		e.City = &c
	}
	if f.Paper != nil {
		p := *f.Paper
		e.Paper = &p
	}
	return e
}

// Bucket is a labelled numeric range and the records that fell into it.
type Bucket struct {
	Label   string
	Lower   float64
	Upper   float64
	Records []SettlementRecord
}

// BucketStats are the win/loss tallies of a group of records.
type BucketStats struct {
	Trades  int      `json:"trades"`
	Wins    int      `json:"wins"`
	Losses  int      `json:"losses"`
	WinRate *float64 `json:"win_rate"` // percent; null when Trades == 0
}

// NewBucketStats tallies records using the Won flag only.
func NewBucketStats(records []SettlementRecord) BucketStats {
	var s BucketStats
	for _, r := range records {
		s.Add(r)
	}
	return s.Finalize()
}

// Add counts one record into the tally.
func (s *BucketStats) Add(r SettlementRecord) {
	s.Trades++
	if r.Won {
		s.Wins++
	} else {
		s.Losses++
	}
}

// Finalize computes WinRate from the current tally.
func (s BucketStats) Finalize() BucketStats {
	s.WinRate = nil
	if s.Trades > 0 {
		wr := Percent(s.Wins, s.Trades)
		s.WinRate = &wr
	}
	return s
}

// Percent returns num/den*100 rounded to two decimals. Callers guard den > 0.
func Percent(num, den int) float64 {
	return Round2(float64(num) / float64(den) * 100)
}
