package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
)

// d is a test helper for creating decimals from float64.
func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

func TestImpliedProbability(t *testing.T) {
	p, err := ImpliedProbability(37)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !p.Equal(d(0.37)) {
		t.Errorf("expected 0.37, got %s", p)
	}
}

func TestImpliedProbability_OutOfRange(t *testing.T) {
	for _, price := range []int{-1, 101} {
		if _, err := ImpliedProbability(price); err != ErrInvalidPrice {
			t.Errorf("expected ErrInvalidPrice for %d, got %v", price, err)
		}
	}
}

func TestFairCents(t *testing.T) {
	if got := FairCents(40, 12.5); !got.Equal(d(52.5)) {
		t.Errorf("expected 52.5, got %s", got)
	}
	// No entry price: edge is relative to an even-odds market.
	if got := FairCents(0, 10); !got.Equal(d(60)) {
		t.Errorf("expected 60, got %s", got)
	}
}

func TestExpectedWinProbability_Clamped(t *testing.T) {
	tests := []struct {
		price int
		edge  float64
		want  float64
	}{
		{40, 20, 0.6},
		{90, 25, 1},
		{5, -10, 0},
		{0, 0, 0.5},
	}
	for _, tt := range tests {
		got := ExpectedWinProbability(tt.price, tt.edge)
		if !got.Equal(d(tt.want)) {
			t.Errorf("ExpectedWinProbability(%d, %v) = %s, want %v", tt.price, tt.edge, got, tt.want)
		}
	}
}

func TestExpectedWinProbability_MonotonicInEdge(t *testing.T) {
	prev := ExpectedWinProbability(30, -40)
	for edge := -35.0; edge <= 80; edge += 5 {
		cur := ExpectedWinProbability(30, edge)
		if cur.LessThan(prev) {
			t.Fatalf("probability decreased at edge=%v: %s < %s", edge, cur, prev)
		}
		prev = cur
	}
}

func TestRealizedEdgeCents(t *testing.T) {
	if got := RealizedEdgeCents(35, true); !got.Equal(d(65)) {
		t.Errorf("win at 35: expected 65, got %s", got)
	}
	if got := RealizedEdgeCents(35, false); !got.Equal(d(-35)) {
		t.Errorf("loss at 35: expected -35, got %s", got)
	}
}

// Averaged predicted edge minus averaged realized edge must equal averaged
// fair value minus averaged settlement value.
func TestBiasIdentity(t *testing.T) {
	type trade struct {
		price int
		edge  float64
		won   bool
	}
	trades := []trade{{40, 10, true}, {55, 20, false}, {20, 15, false}, {70, 5, true}}

	var predicted, realized, fair, settled decimal.Decimal
	for _, tr := range trades {
		predicted = predicted.Add(d(tr.edge))
		realized = realized.Add(RealizedEdgeCents(tr.price, tr.won))
		fair = fair.Add(FairCents(tr.price, tr.edge))
		settled = settled.Add(SettlementValueCents(tr.won))
	}
	if !predicted.Sub(realized).Equal(fair.Sub(settled)) {
		t.Errorf("bias mismatch: %s vs %s", predicted.Sub(realized), fair.Sub(settled))
	}
}
