// Package store provides the settlement log sources for the analytics
// service. The JSONL file written by the trading daemon is the source of
// truth; PostgreSQL and Kafka carry the same records for deployments that
// ship the log elsewhere, Redis provides a read-through cache, and the
// in-memory source is used for testing.
package store

import (
	"context"
	"errors"

	"github.com/atmx/settlement-analytics/internal/model"
)

// SettlementLogName is the daemon's settlement log file name.
const SettlementLogName = "kalshi_settlement_log.jsonl"

var (
	// ErrSourceUnavailable is returned when a backing service cannot be
	// reached. A missing log file is not an error.
	ErrSourceUnavailable = errors.New("store: settlement source unavailable")

	// ErrMalformedRecord is returned by Normalize for lines that cannot be
	// turned into a settlement record.
	ErrMalformedRecord = errors.New("store: malformed settlement record")
)

// Source reads the full append-only settlement log. Implementations return
// records in log order and must be safe for concurrent readers.
type Source interface {
	// ReadSettlements returns every record currently in the log, or an
	// empty slice when the log does not exist yet.
	ReadSettlements(ctx context.Context) ([]model.SettlementRecord, error)
}
