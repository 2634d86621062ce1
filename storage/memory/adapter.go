package memory

import (
	"context"
	"sync"
	"time"

	"github.com/sig-0/credsim/storage/types"
)

type Storage struct {
	records []types.SimulationRecord
	lastID  int64

	mu sync.RWMutex
}

func NewStorage() *Storage {
	return &Storage{
		records: make([]types.SimulationRecord, 0),
	}
}

func (s *Storage) SaveSimulation(_ context.Context, r *types.SimulationRecord) error {
	now := time.Now().UTC()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastID++

	r.ID = s.lastID
	r.CreatedAt = now
	r.UpdatedAt = now
	r.QueriedAt = r.QueriedAt.UTC()

	s.records = append(s.records, *r) // append-only

	return nil
}

func (s *Storage) LatestSimulations(
	_ context.Context,
	limit int,
) ([]*types.SimulationRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 || limit > len(s.records) {
		limit = len(s.records)
	}

	out := make([]*types.SimulationRecord, 0, limit)

	// Records are stored in insertion order, walk backwards
	for i := len(s.records) - 1; i >= 0 && len(out) < limit; i-- {
		cp := s.records[i]
		out = append(out, &cp)
	}

	return out, nil
}
