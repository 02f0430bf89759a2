package calllog

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// InMemoryStore keeps a bounded ring of recent call records. Used when no
// database is configured.
type InMemoryStore struct {
	mu      sync.Mutex
	records []CallRecord
	max     int
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{max: 1000}
}

func (s *InMemoryStore) Record(_ context.Context, rec CallRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.EndedAt.IsZero() {
		rec.EndedAt = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, rec)
	if len(s.records) > s.max {
		s.records = s.records[len(s.records)-s.max:]
	}
	return nil
}

func (s *InMemoryStore) Recent(_ context.Context, limit int) ([]CallRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	start := len(s.records) - limit
	if start < 0 {
		start = 0
	}
	out := make([]CallRecord, len(s.records)-start)
	copy(out, s.records[start:])
	return out, nil
}

func (s *InMemoryStore) Close() error { return nil }
