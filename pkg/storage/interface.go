package storage

import (
	"context"
	"time"

	"homegraph/pkg/entity"
)

// Storage defines the interface for state-change storage backends.
// Implementations: memory (testing/dev), badger (production)
type Storage interface {
	// Write stores state changes
	Write(ctx context.Context, changes []entity.StateChange) error

	// Query retrieves state changes for one entity, ordered by timestamp
	Query(ctx context.Context, req QueryRequest) ([]entity.StateChange, error)

	// Delete removes state changes older than the given time
	Delete(ctx context.Context, before time.Time) error

	// Close cleanly shuts down the storage
	Close() error

	// Stats returns storage statistics
	Stats(ctx context.Context) (*Stats, error)
}

// QueryRequest specifies which state changes to retrieve
type QueryRequest struct {
	// Entity to query
	EntityID string

	// Half-open time range [Start, End)
	Start time.Time
	End   time.Time

	// IncludeStart prepends the newest event strictly before Start: the
	// state that was in effect when the window opened. History charts need
	// it as their anchor sample.
	IncludeStart bool

	// Limit number of results (0 = no limit)
	Limit int
}

// Stats provides storage health and usage info
type Stats struct {
	// Total state changes stored
	TotalEvents uint64

	// Unique entities with at least one event
	TotalEntities uint64

	// Storage size in bytes
	SizeBytes uint64

	// Oldest event timestamp
	OldestEvent time.Time

	// Newest event timestamp
	NewestEvent time.Time
}
