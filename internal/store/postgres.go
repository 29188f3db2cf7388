package store

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/atmx/settlement-analytics/internal/metrics"
	"github.com/atmx/settlement-analytics/internal/model"
)

// settlementsSchema is applied by EnsureSchema. Payloads are the daemon's
// JSON lines stored verbatim, so both historical shapes survive the trip.
const settlementsSchema = `
CREATE TABLE IF NOT EXISTS settlements (
	id         BIGSERIAL   PRIMARY KEY,
	settled_at TIMESTAMPTZ NOT NULL,
	payload    JSONB       NOT NULL
);
CREATE INDEX IF NOT EXISTS settlements_settled_at_idx ON settlements (settled_at);
`

// PostgresSource reads settlement payloads from PostgreSQL.
type PostgresSource struct {
	pool *pgxpool.Pool
}

// NewPostgresSource creates a new PostgreSQL-backed source.
func NewPostgresSource(pool *pgxpool.Pool) *PostgresSource {
	return &PostgresSource{pool: pool}
}

// EnsureSchema creates the settlements table if it does not exist.
func (s *PostgresSource) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, settlementsSchema); err != nil {
		return fmt.Errorf("ensure settlements schema: %w", err)
	}
	return nil
}

// Insert appends one raw settlement line. The line must normalize cleanly.
func (s *PostgresSource) Insert(ctx context.Context, line []byte) error {
	rec, err := Normalize(line)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO settlements (settled_at, payload) VALUES ($1, $2::JSONB)`,
		rec.Timestamp, string(line),
	)
	return err
}

// ReadSettlements implements Source. Rows that fail normalization are
// skipped and counted like malformed file lines.
func (s *PostgresSource) ReadSettlements(ctx context.Context) ([]model.SettlementRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT payload FROM settlements ORDER BY settled_at, id`)
	if err != nil {
		metrics.SourceErrorsTotal.WithLabelValues("postgres").Inc()
		return nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}
	defer rows.Close()

	records := []model.SettlementRecord{}
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			metrics.SourceErrorsTotal.WithLabelValues("postgres").Inc()
			return nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
		}
		rec, err := Normalize(payload)
		if err != nil {
			metrics.MalformedLinesTotal.Inc()
			slog.Debug("skipped malformed settlement row", "err", err)
			continue
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		metrics.SourceErrorsTotal.WithLabelValues("postgres").Inc()
		return nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}

	metrics.SettlementsRead.Set(float64(len(records)))
	return records, nil
}
