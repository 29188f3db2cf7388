package analytics

import (
	"testing"

	"github.com/atmx/settlement-analytics/internal/model"
)

func TestCost_ROI(t *testing.T) {
	records := []model.SettlementRecord{
		{CostCents: 500, PnLCents: 150, Won: true},
		{CostCents: 500, PnLCents: -50, Won: false},
	}
	s := Cost(records, model.FilterSpec{})
	if s.TotalCostCents != 1000 || s.TotalProfitCents != 100 {
		t.Fatalf("unexpected totals: cost=%d pnl=%d", s.TotalCostCents, s.TotalProfitCents)
	}
	assertRate(t, "roi", s.ROI, 10.0)
	assertRate(t, "avg_trade_roi", s.AvgTradeROI, 10.0)
	assertRate(t, "avg_cost_cents", s.AvgCostCents, 500)
	assertRate(t, "avg_profit_cents", s.AvgProfitCents, 50)
	assertRate(t, "actual_win_rate", s.ActualWinRate, 50)
}

func TestCost_BreakEvenWinRate(t *testing.T) {
	s := Cost(outcomes("WWLL"), model.FilterSpec{})
	// avg win payoff 60, avg loss payoff 40: 40 / (60 + 40)
	assertRate(t, "break_even_win_rate", s.BreakEvenWinRate, 40)
	assertRate(t, "avg_win_payoff_cents", s.AvgWinPayoffCents, 60)
	assertRate(t, "avg_loss_payoff_cents", s.AvgLossPayoffCents, 40)
}

func TestCost_BreakEvenNullWhenOutcomeGroupEmpty(t *testing.T) {
	s := Cost(outcomes("WWW"), model.FilterSpec{})
	assertNull(t, "break_even_win_rate", s.BreakEvenWinRate)
	assertNull(t, "avg_loss_payoff_cents", s.AvgLossPayoffCents)
	assertRate(t, "actual_win_rate", s.ActualWinRate, 100)
}

func TestCost_MinTradesGatesBreakEvenOnly(t *testing.T) {
	s := Cost(outcomes("WWLL"), model.FilterSpec{MinTrades: 5})
	assertNull(t, "break_even_win_rate", s.BreakEvenWinRate)
	if s.TotalTrades != 4 {
		t.Errorf("totals must not be suppressed, got %d trades", s.TotalTrades)
	}
	assertRate(t, "roi", s.ROI, 25)
}

func TestCost_ZeroCost(t *testing.T) {
	s := Cost([]model.SettlementRecord{{CostCents: 0, PnLCents: 0, Won: false}}, model.FilterSpec{})
	assertNull(t, "roi", s.ROI)
	assertNull(t, "avg_trade_roi", s.AvgTradeROI)
	assertRate(t, "avg_cost_cents", s.AvgCostCents, 0)
}

func TestCost_Empty(t *testing.T) {
	s := Cost(nil, model.FilterSpec{})
	if s.TotalTrades != 0 || s.TotalCostCents != 0 {
		t.Errorf("expected zero totals, got %+v", s)
	}
	assertNull(t, "avg_cost_cents", s.AvgCostCents)
	assertNull(t, "roi", s.ROI)
	assertNull(t, "actual_win_rate", s.ActualWinRate)
	assertNull(t, "break_even_win_rate", s.BreakEvenWinRate)
}

func TestCostByEdgeBucket(t *testing.T) {
	records := []model.SettlementRecord{
		{PredictedEdgeCents: 12, CostCents: 100, PnLCents: 50, Won: true},
		{PredictedEdgeCents: 14, CostCents: 100, PnLCents: -100, Won: false},
		{PredictedEdgeCents: 30, CostCents: 200, PnLCents: 100, Won: true},
		{PredictedEdgeCents: 8, CostCents: 100, PnLCents: 100, Won: true},
	}
	buckets := CostByEdgeBucket(records, model.FilterSpec{})
	if len(buckets) != 2 {
		t.Fatalf("expected 2 buckets, got %d", len(buckets))
	}
	if buckets[0].Bucket != "10-15" || buckets[0].Count != 2 {
		t.Errorf("unexpected first bucket: %+v", buckets[0])
	}
	assertRate(t, "10-15 roi", buckets[0].ROI, -25)
	assertRate(t, "10-15 avg_pnl", buckets[0].AvgPnL, -25)
	if buckets[1].Bucket != "25-40" {
		t.Errorf("expected 25-40, got %s", buckets[1].Bucket)
	}
	assertRate(t, "25-40 roi", buckets[1].ROI, 50)

	suppressedBuckets := CostByEdgeBucket(records, model.FilterSpec{MinTrades: 2})
	if len(suppressedBuckets) != 1 || suppressedBuckets[0].Bucket != "10-15" {
		t.Errorf("expected only 10-15 to survive min_trades=2, got %+v", suppressedBuckets)
	}
}
