package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/atmx/settlement-analytics/internal/metrics"
	"github.com/atmx/settlement-analytics/internal/model"
)

// CachedSource wraps a primary Source with a Redis read-through cache.
// Reads check Redis first then fall back to the primary; the normalized
// log is cached for ttl so that concurrent dashboard panels share one read.
type CachedSource struct {
	primary Source
	rdb     *redis.Client
	ttl     time.Duration
	key     string
}

// NewCachedSource creates a cached wrapper around a primary source. The
// namespace keeps caches of different logs apart on a shared Redis.
func NewCachedSource(primary Source, rdb *redis.Client, ttl time.Duration, namespace string) *CachedSource {
	return &CachedSource{
		primary: primary,
		rdb:     rdb,
		ttl:     ttl,
		key:     settlementsKey(namespace),
	}
}

// ReadSettlements implements Source.
func (s *CachedSource) ReadSettlements(ctx context.Context) ([]model.SettlementRecord, error) {
	// Try cache.
	data, err := s.rdb.Get(ctx, s.key).Bytes()
	switch {
	case err == nil:
		var records []model.SettlementRecord
		if json.Unmarshal(data, &records) == nil {
			metrics.CacheRequestsTotal.WithLabelValues("hit").Inc()
			return records, nil
		}
		metrics.CacheRequestsTotal.WithLabelValues("corrupt").Inc()
	case errors.Is(err, redis.Nil):
		metrics.CacheRequestsTotal.WithLabelValues("miss").Inc()
	default:
		// Redis down: serve from the primary rather than failing the request.
		metrics.CacheRequestsTotal.WithLabelValues("error").Inc()
		slog.Warn("settlement cache unavailable", "err", err)
	}

	// Cache miss: read from primary.
	records, err := s.primary.ReadSettlements(ctx)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(records); err == nil {
		s.rdb.Set(ctx, s.key, data, s.ttl)
	}
	return records, nil
}

// Invalidate drops the cached log so the next read goes to the primary.
func (s *CachedSource) Invalidate(ctx context.Context) error {
	return s.rdb.Del(ctx, s.key).Err()
}

func settlementsKey(namespace string) string { return fmt.Sprintf("settlements:%s", namespace) }
