package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/atmx/settlement-analytics/internal/analytics"
	"github.com/atmx/settlement-analytics/internal/store"
)

// Invalidator drops cached settlement data.
type Invalidator interface {
	Invalidate(ctx context.Context) error
}

// Watcher polls a source and pushes newly appended settlements to the hub.
// The log is append-only, so records past the previously seen count are new.
type Watcher struct {
	source   analytics.Source
	hub      *WSHub
	interval time.Duration
	cache    Invalidator
	seen     int
}

// NewWatcher creates a watcher. cache may be nil.
func NewWatcher(src analytics.Source, hub *WSHub, interval time.Duration, cache Invalidator) *Watcher {
	return &Watcher{source: src, hub: hub, interval: interval, cache: cache}
}

// Run blocks until ctx is cancelled. Records present at start are not
// broadcast.
func (w *Watcher) Run(ctx context.Context) {
	if records, err := w.source.ReadSettlements(ctx); err == nil {
		w.seen = len(records)
	} else {
		slog.Warn("settlement watcher initial read failed", "err", err)
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.poll(ctx)
		}
	}
}

// poll reads the source once and returns how many records were broadcast.
func (w *Watcher) poll(ctx context.Context) int {
	records, err := w.source.ReadSettlements(ctx)
	if err != nil {
		slog.Warn("settlement watcher read failed", "err", err)
		return 0
	}
	if len(records) < w.seen {
		// Log was truncated or rotated; resync without replaying.
		slog.Info("settlement log shrank, resetting watcher", "was", w.seen, "now", len(records))
		w.seen = len(records)
		return 0
	}
	fresh := records[w.seen:]
	if len(fresh) == 0 {
		return 0
	}
	w.seen = len(records)

	if w.cache != nil {
		if err := w.cache.Invalidate(ctx); err != nil {
			slog.Warn("settlement cache invalidation failed", "err", err)
		}
	}
	for i := range fresh {
		rec := fresh[i]
		payload, err := json.Marshal(rec)
		if err != nil {
			continue
		}
		w.hub.Broadcast(WSMessage{Type: "settlement", ID: store.RecordID(payload).String(), Settlement: &rec})
	}
	slog.Info("new settlements", "count", len(fresh), "total", len(records))
	return len(fresh)
}
