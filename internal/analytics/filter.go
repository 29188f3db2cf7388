// Package analytics turns settled trades into reliability, cost, calibration,
// and provider statistics. Every analyzer is a pure function of the filtered
// records and an explicit FilterSpec; nothing here touches I/O.
package analytics

import (
	"sort"
	"time"

	"github.com/atmx/settlement-analytics/internal/model"
)

// Filter applies the time window, city, and paper/live filters and returns a new slice
// ordered by ascending timestamp. Records with equal timestamps keep their
// log order. min_trades is not applied here.
func Filter(records []model.SettlementRecord, spec model.FilterSpec, now time.Time) []model.SettlementRecord {
	var since time.Time
	if spec.Days != nil {
		since = now.AddDate(0, 0, -*spec.Days)
	}

	out := make([]model.SettlementRecord, 0, len(records))
	for _, r := range records {
		if spec.Days != nil && r.Timestamp.Before(since) {
			continue
		}
		if spec.City != "" && r.City != spec.City {
			continue
		}
		if spec.Paper != nil && r.PaperTrade != *spec.Paper {
			continue
		}
		out = append(out, r)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out
}
