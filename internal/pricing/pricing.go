// Package pricing implements the binary-contract price math shared by the
// calibration and bias analytics.
//
// A Kalshi contract settles at 100 cents if it wins and 0 otherwise, so a
// price in cents is also an implied probability. The edge recorded by the
// trading daemon is model fair value minus entry price:
//
//	fair = price + edge
//	p(win) = clamp(fair, 0, 100) / 100
//
// The realized edge of a settled trade is what the contract paid out minus
// what it cost per share:
//
//	realized = (won ? 100 : 0) - price
//
// Averaged over many trades, predicted edge minus realized edge is the
// systematic bias of the fair value model. All values use shopspring/decimal.
package pricing

import (
	"errors"

	"github.com/shopspring/decimal"
)

var (
	// ErrInvalidPrice is returned when a price lies outside [0, 100] cents.
	ErrInvalidPrice = errors.New("pricing: price must be within [0, 100] cents")

	// PayoutCents is the settlement value of a winning contract.
	PayoutCents = decimal.NewFromInt(100)

	// ReferencePriceCents is used when a record carries no entry price, which
	// makes the edge relative to an even-odds market.
	ReferencePriceCents = decimal.NewFromInt(50)

	// MinProbability and MaxProbability bound every implied probability.
	MinProbability = decimal.Zero
	MaxProbability = decimal.NewFromInt(1)

	// ProbabilityScale is the number of decimal places kept for probabilities.
	ProbabilityScale int32 = 8
)

// ImpliedProbability converts a price in cents into the market's implied
// win probability.
func ImpliedProbability(priceCents int) (decimal.Decimal, error) {
	p := decimal.NewFromInt(int64(priceCents))
	if p.LessThan(decimal.Zero) || p.GreaterThan(PayoutCents) {
		return decimal.Zero, ErrInvalidPrice
	}
	return p.Div(PayoutCents).Round(ProbabilityScale), nil
}

// entryPrice returns the entry price used as the base for edge math.
func entryPrice(priceCents int) decimal.Decimal {
	if priceCents <= 0 {
		return ReferencePriceCents
	}
	return decimal.NewFromInt(int64(priceCents))
}

// FairCents returns the model fair value implied by an entry price and a
// predicted edge. The result is not clamped.
func FairCents(priceCents int, edgeCents float64) decimal.Decimal {
	return entryPrice(priceCents).Add(decimal.NewFromFloat(edgeCents))
}

// ExpectedWinProbability maps a predicted edge at a given entry price onto
// the win probability the model claimed, clamped to [0, 1]. The mapping is
// monotonic in edge for a fixed price.
func ExpectedWinProbability(priceCents int, edgeCents float64) decimal.Decimal {
	p := FairCents(priceCents, edgeCents).Div(PayoutCents).Round(ProbabilityScale)
	if p.LessThan(MinProbability) {
		return MinProbability
	}
	if p.GreaterThan(MaxProbability) {
		return MaxProbability
	}
	return p
}

// SettlementValueCents returns what one contract paid out at settlement.
func SettlementValueCents(won bool) decimal.Decimal {
	if won {
		return PayoutCents
	}
	return decimal.Zero
}

// RealizedEdgeCents returns the per-contract edge a settled trade actually
// captured: payout minus entry price.
func RealizedEdgeCents(priceCents int, won bool) decimal.Decimal {
	return SettlementValueCents(won).Sub(entryPrice(priceCents))
}
