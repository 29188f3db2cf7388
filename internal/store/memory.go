package store

import (
	"context"
	"sync"

	"github.com/atmx/settlement-analytics/internal/model"
)

// MemorySource implements Source with an in-memory append-only slice. Used
// for testing and development. Not suitable for production (no persistence).
type MemorySource struct {
	mu      sync.RWMutex
	records []model.SettlementRecord
}

// NewMemorySource creates a source seeded with records in log order.
func NewMemorySource(records ...model.SettlementRecord) *MemorySource {
	s := &MemorySource{}
	s.records = append(s.records, records...)
	return s
}

// Append adds records to the end of the log.
func (s *MemorySource) Append(records ...model.SettlementRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, records...)
}

// ReadSettlements returns a copy of the log.
func (s *MemorySource) ReadSettlements(_ context.Context) ([]model.SettlementRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.SettlementRecord, len(s.records))
	copy(out, s.records)
	return out, nil
}
