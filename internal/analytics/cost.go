package analytics

import (
	"github.com/shopspring/decimal"

	"github.com/atmx/settlement-analytics/internal/model"
)

// CostSummary is the cost-effectiveness view of the whole filtered slice.
// Every ratio is null when its denominator is zero.
type CostSummary struct {
	TotalTrades        int      `json:"total_trades"`
	Wins               int      `json:"wins"`
	Losses             int      `json:"losses"`
	AvgCostCents       *float64 `json:"avg_cost_cents"`
	AvgProfitCents     *float64 `json:"avg_profit_cents"`
	TotalCostCents     int64    `json:"total_cost_cents"`
	TotalProfitCents   int64    `json:"total_profit_cents"`
	ROI                *float64 `json:"roi"`
	AvgTradeROI        *float64 `json:"avg_trade_roi"`
	AvgWinPayoffCents  *float64 `json:"avg_win_payoff_cents"`
	AvgLossPayoffCents *float64 `json:"avg_loss_payoff_cents"`
	BreakEvenWinRate   *float64 `json:"break_even_win_rate"`
	ActualWinRate      *float64 `json:"actual_win_rate"`
}

// EdgeBucketROI is the return breakdown for one edge bracket.
type EdgeBucketROI struct {
	Bucket         string   `json:"bucket"`
	Count          int      `json:"count"`
	Wins           int      `json:"wins"`
	WinRate        *float64 `json:"win_rate"`
	TotalCostCents int64    `json:"total_cost_cents"`
	TotalPnLCents  int64    `json:"total_pnl_cents"`
	ROI            *float64 `json:"roi"`
	AvgPnL         *float64 `json:"avg_pnl"`
}

// Cost computes the cost summary. min_trades gates only the break-even
// figure, which is withheld when the slice is smaller than min_trades.
func Cost(records []model.SettlementRecord, spec model.FilterSpec) CostSummary {
	var (
		totalCost, totalPnL decimal.Decimal
		winPnL, lossPnL     decimal.Decimal
		tradeROISum         decimal.Decimal
		tradeROICount       int
		s                   CostSummary
	)
	for _, r := range records {
		cost := decimal.NewFromInt(int64(r.CostCents))
		pnl := decimal.NewFromInt(int64(r.PnLCents))
		totalCost = totalCost.Add(cost)
		totalPnL = totalPnL.Add(pnl)
		if r.Won {
			s.Wins++
			winPnL = winPnL.Add(pnl)
		} else {
			s.Losses++
			lossPnL = lossPnL.Add(pnl)
		}
		if r.CostCents > 0 {
			tradeROISum = tradeROISum.Add(pnl.Div(cost))
			tradeROICount++
		}
	}

	n := len(records)
	s.TotalTrades = n
	s.TotalCostCents = totalCost.IntPart()
	s.TotalProfitCents = totalPnL.IntPart()
	s.AvgCostCents = model.Mean(totalCost, n)
	s.AvgProfitCents = model.Mean(totalPnL, n)
	s.ROI = model.Ratio(totalPnL, totalCost, model.Hundred)
	s.AvgTradeROI = model.Ratio(tradeROISum, decimal.NewFromInt(int64(tradeROICount)), model.Hundred)
	s.ActualWinRate = model.Ratio(decimal.NewFromInt(int64(s.Wins)), decimal.NewFromInt(int64(n)), model.Hundred)

	// Payoffs are magnitudes of the mean pnl conditioned on the outcome.
	avgWin := meanAbs(winPnL, s.Wins)
	avgLoss := meanAbs(lossPnL, s.Losses)
	s.AvgWinPayoffCents = roundedOrNil(avgWin, s.Wins)
	s.AvgLossPayoffCents = roundedOrNil(avgLoss, s.Losses)
	if s.Wins > 0 && s.Losses > 0 && !suppressed(n, spec) {
		s.BreakEvenWinRate = model.Ratio(avgLoss, avgWin.Add(avgLoss), model.Hundred)
	}
	return s
}

// CostByEdgeBucket groups by edge bracket; brackets with fewer than
// min_trades records are suppressed.
func CostByEdgeBucket(records []model.SettlementRecord, spec model.FilterSpec) []EdgeBucketROI {
	out := []EdgeBucketROI{}
	for _, b := range EdgeBrackets.Group(records, predictedEdge) {
		if suppressed(len(b.Records), spec) {
			continue
		}
		var cost, pnl decimal.Decimal
		stats := model.NewBucketStats(b.Records)
		for _, r := range b.Records {
			cost = cost.Add(decimal.NewFromInt(int64(r.CostCents)))
			pnl = pnl.Add(decimal.NewFromInt(int64(r.PnLCents)))
		}
		out = append(out, EdgeBucketROI{
			Bucket:         b.Label,
			Count:          stats.Trades,
			Wins:           stats.Wins,
			WinRate:        stats.WinRate,
			TotalCostCents: cost.IntPart(),
			TotalPnLCents:  pnl.IntPart(),
			ROI:            model.Ratio(pnl, cost, model.Hundred),
			AvgPnL:         model.Mean(pnl, stats.Trades),
		})
	}
	return out
}

func meanAbs(sum decimal.Decimal, n int) decimal.Decimal {
	if n == 0 {
		return decimal.Zero
	}
	return sum.Div(decimal.NewFromInt(int64(n))).Abs()
}

func roundedOrNil(v decimal.Decimal, n int) *float64 {
	if n == 0 {
		return nil
	}
	f := v.Round(model.ReportScale).InexactFloat64()
	return &f
}
