package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"homegraph/pkg/entity"
	"homegraph/pkg/storage"
)

// Storage stores state changes in memory. Data is lost on restart.
// Useful for testing and development.
type Storage struct {
	events []entity.StateChange
	mu     sync.RWMutex
}

// New creates an in-memory storage backend
func New() *Storage {
	return &Storage{
		events: make([]entity.StateChange, 0, 10000),
	}
}

// Write stores state changes in memory
func (s *Storage) Write(ctx context.Context, changes []entity.StateChange) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.events = append(s.events, changes...)
	return nil
}

// Query retrieves state changes matching the request, ordered by timestamp.
// MQTT and batched HTTP writes can land out of order, so results are sorted
// here rather than trusting insertion order.
func (s *Storage) Query(ctx context.Context, req storage.QueryRequest) ([]entity.StateChange, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var results []entity.StateChange

	// anchor: newest event strictly before the window start
	var anchor *entity.StateChange

	for i := range s.events {
		e := s.events[i]
		if req.EntityID != "" && e.EntityID != req.EntityID {
			continue
		}

		if e.Timestamp.Before(req.Start) {
			if req.IncludeStart && (anchor == nil || e.Timestamp.After(anchor.Timestamp)) {
				anchor = &s.events[i]
			}
			continue
		}
		if !e.Timestamp.Before(req.End) {
			continue
		}

		results = append(results, e)
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].Timestamp.Before(results[j].Timestamp)
	})

	if anchor != nil {
		results = append([]entity.StateChange{*anchor}, results...)
	}

	if req.Limit > 0 && len(results) > req.Limit {
		results = results[:req.Limit]
	}

	return results, nil
}

// Delete removes state changes older than the given time
func (s *Storage) Delete(ctx context.Context, before time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	filtered := make([]entity.StateChange, 0, len(s.events))
	for _, e := range s.events {
		if !e.Timestamp.Before(before) {
			filtered = append(filtered, e)
		}
	}

	s.events = filtered
	return nil
}

// Close is a no-op for memory storage
func (s *Storage) Close() error {
	return nil
}

// Stats returns storage statistics
func (s *Storage) Stats(ctx context.Context) (*storage.Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := &storage.Stats{
		TotalEvents: uint64(len(s.events)),
	}

	if len(s.events) == 0 {
		return stats, nil
	}

	// Count unique entities and find min/max timestamps in single pass
	entities := make(map[string]bool)
	oldest := s.events[0].Timestamp
	newest := s.events[0].Timestamp

	for _, e := range s.events {
		entities[e.EntityID] = true

		if e.Timestamp.Before(oldest) {
			oldest = e.Timestamp
		}
		if e.Timestamp.After(newest) {
			newest = e.Timestamp
		}
	}

	stats.TotalEntities = uint64(len(entities))
	stats.OldestEvent = oldest
	stats.NewestEvent = newest

	// Rough size estimate (each event ~120 bytes)
	stats.SizeBytes = uint64(len(s.events)) * 120

	return stats, nil
}
