package analytics

import (
	"math"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/atmx/settlement-analytics/internal/model"
)

// boundaryEpsilon absorbs binary drift in v/size so that a value sitting on a
// bucket's lower bound (0.15 with size 0.05) lands in that bucket.
const boundaryEpsilon = 1e-9

// FixedWidth buckets a value into [k*Size, (k+1)*Size). Bounds are computed in
// decimal so labels never carry float noise.
type FixedWidth struct {
	Size   float64
	Places int32 // label decimal places; negative prints the shortest form
}

// maxBucketIndex keeps bucket indexes exactly representable as float64 and
// far inside the int64 range.
const maxBucketIndex = 1 << 53

// Index returns the bucket index k for v.
func (b FixedWidth) Index(v float64) int64 {
	return int64(math.Floor(v/b.Size + boundaryEpsilon))
}

// Bounds returns the lower and upper bound of bucket k.
func (b FixedWidth) Bounds(k int64) (lower, upper decimal.Decimal) {
	size := decimal.NewFromFloat(b.Size)
	lower = size.Mul(decimal.NewFromInt(k))
	return lower, lower.Add(size)
}

// Label formats bucket k as "{lower}-{upper}".
func (b FixedWidth) Label(k int64) string {
	lower, upper := b.Bounds(k)
	return b.format(lower) + "-" + b.format(upper)
}

func (b FixedWidth) format(v decimal.Decimal) string {
	if b.Places < 0 {
		return v.String()
	}
	return v.StringFixed(b.Places)
}

// Group assigns each record to a bucket by value and returns the non-empty
// buckets in ascending order. Values too far from zero to index are skipped.
func (b FixedWidth) Group(records []model.SettlementRecord, value func(model.SettlementRecord) float64) []model.Bucket {
	byIndex := make(map[int64][]model.SettlementRecord)
	for _, r := range records {
		v := value(r)
		if math.IsNaN(v) || math.IsInf(v, 0) || math.Abs(v/b.Size) > maxBucketIndex {
			continue
		}
		k := b.Index(v)
		byIndex[k] = append(byIndex[k], r)
	}

	keys := make([]int64, 0, len(byIndex))
	for k := range byIndex {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	buckets := make([]model.Bucket, 0, len(keys))
	for _, k := range keys {
		lower, upper := b.Bounds(k)
		buckets = append(buckets, model.Bucket{
			Label:   b.Label(k),
			Lower:   lower.InexactFloat64(),
			Upper:   upper.InexactFloat64(),
			Records: byIndex[k],
		})
	}
	return buckets
}

// Midpoint returns the centre of a fixed-width bucket.
func (b FixedWidth) Midpoint(bucket model.Bucket) float64 {
	lower := decimal.NewFromFloat(bucket.Lower)
	half := decimal.NewFromFloat(b.Size).Div(decimal.NewFromInt(2))
	return lower.Add(half).InexactFloat64()
}

// Range is one labelled half-open interval [Lower, Upper).
type Range struct {
	Label string
	Lower float64
	Upper float64
}

// NamedRanges is an ascending list of ranges. The last range is open above.
type NamedRanges []Range

// EdgeBrackets group predicted edge in cents.
var EdgeBrackets = NamedRanges{
	{Label: "10-15", Lower: 10, Upper: 15},
	{Label: "15-25", Lower: 15, Upper: 25},
	{Label: "25-40", Lower: 25, Upper: 40},
	{Label: "40-100", Lower: 40, Upper: 100},
}

// ConfidenceBrackets group forecast confidence.
var ConfidenceBrackets = NamedRanges{
	{Label: "0.6-0.7", Lower: 0.6, Upper: 0.7},
	{Label: "0.7-0.8", Lower: 0.7, Upper: 0.8},
	{Label: "0.8-0.9", Lower: 0.8, Upper: 0.9},
	{Label: "0.9-1.0", Lower: 0.9, Upper: 1.0},
}

// Find returns the index of the range containing v. Values below the first
// lower bound, or falling in a gap, report false.
func (n NamedRanges) Find(v float64) (int, bool) {
	last := len(n) - 1
	for i, r := range n {
		if v < r.Lower {
			continue
		}
		if i == last || v < r.Upper {
			return i, true
		}
	}
	return 0, false
}

// Group assigns records to ranges and returns the non-empty ones in range
// order. Records outside every range are dropped.
func (n NamedRanges) Group(records []model.SettlementRecord, value func(model.SettlementRecord) float64) []model.Bucket {
	grouped := make([][]model.SettlementRecord, len(n))
	for _, r := range records {
		if i, ok := n.Find(value(r)); ok {
			grouped[i] = append(grouped[i], r)
		}
	}

	var buckets []model.Bucket
	for i, recs := range grouped {
		if len(recs) == 0 {
			continue
		}
		buckets = append(buckets, model.Bucket{
			Label:   n[i].Label,
			Lower:   n[i].Lower,
			Upper:   n[i].Upper,
			Records: recs,
		})
	}
	return buckets
}

func predictedEdge(r model.SettlementRecord) float64 { return r.PredictedEdgeCents }
func confidence(r model.SettlementRecord) float64    { return r.Confidence }

// suppressed reports whether a group is too small to show in detail output.
func suppressed(trades int, spec model.FilterSpec) bool {
	return trades < spec.MinTrades
}
