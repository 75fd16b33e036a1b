package usage

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"
)

// MemoryStore keeps records in memory. Records are lost on exit.
type MemoryStore struct {
	mu      sync.RWMutex
	records []*Record
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Store appends a copy of record.
func (s *MemoryStore) Store(ctx context.Context, record *Record) error {
	if record == nil {
		return newStorageError("memory", "store", errors.New("record cannot be nil"))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	recordCopy := *record
	s.records = append(s.records, &recordCopy)
	return nil
}

// Query returns copies of matching records, newest first.
func (s *MemoryStore) Query(ctx context.Context, query *Query) ([]*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	results := []*Record{}
	for _, r := range s.records {
		if query.matches(r) {
			recordCopy := *r
			results = append(results, &recordCopy)
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Time.After(results[j].Time)
	})
	if query != nil && query.Limit > 0 && len(results) > query.Limit {
		results = results[:query.Limit]
	}
	return results, nil
}

// Totals aggregates matching records per provider.
func (s *MemoryStore) Totals(ctx context.Context, query *Query) ([]Totals, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byProvider := make(map[string]*Totals)
	for _, r := range s.records {
		if !query.matches(r) {
			continue
		}
		t, ok := byProvider[r.Provider]
		if !ok {
			t = &Totals{Provider: r.Provider}
			byProvider[r.Provider] = t
		}
		t.add(r)
	}

	out := make([]Totals, 0, len(byProvider))
	for _, t := range byProvider {
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Provider < out[j].Provider })
	return out, nil
}

// DeleteBefore removes records older than cutoff.
func (s *MemoryStore) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.records[:0]
	var deleted int64
	for _, r := range s.records {
		if r.Time.Before(cutoff) {
			deleted++
			continue
		}
		kept = append(kept, r)
	}
	s.records = kept
	return deleted, nil
}

// Close is a no-op.
func (s *MemoryStore) Close() error {
	return nil
}

var _ Store = (*MemoryStore)(nil)
