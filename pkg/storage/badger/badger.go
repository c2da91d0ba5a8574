package badger

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"

	"homegraph/pkg/entity"
	"homegraph/pkg/storage"
)

// Storage implements storage.Storage using BadgerDB (LSM tree)
type Storage struct {
	db *badger.DB
}

// Config holds BadgerDB configuration
type Config struct {
	// Path to store database files
	Path string

	// InMemory mode (for testing)
	InMemory bool

	// MaxMemoryMB limits BadgerDB memory usage in MB (0 = laptop-friendly defaults).
	// A homegraph instance tracking a handful of entities should stay well
	// under 64 MB.
	MaxMemoryMB int64
}

// New creates a BadgerDB storage backend
func New(cfg Config) (*Storage, error) {
	opts := badger.DefaultOptions(cfg.Path)

	if cfg.InMemory {
		opts = opts.WithInMemory(true)
	}

	// BadgerDB defaults assume server workloads (64 MB memtable, 5 open
	// memtables). homegraph usually runs next to the dashboard on a NUC or
	// Pi, so bound everything.
	var memTableSize int64
	if cfg.MaxMemoryMB > 0 {
		memTableSize = cfg.MaxMemoryMB * 1024 * 1024 / 3 // ~33% for memtable
	} else {
		// 16 MB memtable is the floor for decent performance; below that
		// flushes get excessive.
		memTableSize = 16 * 1024 * 1024
	}

	// Block and index caches are unbounded by default and must be capped
	// alongside the memtable or Badger can still grow past the budget.
	opts = opts.
		WithCompression(options.Snappy).
		WithNumVersionsToKeep(1). // state changes are immutable, no versioning
		WithMemTableSize(memTableSize).
		WithNumMemtables(3).
		WithBlockCacheSize(memTableSize / 2).
		WithIndexCacheSize(memTableSize / 4).
		WithMaxLevels(4).
		WithNumLevelZeroTables(2).
		WithNumLevelZeroTablesStall(4).
		WithValueThreshold(1024).
		WithNumCompactors(1).
		WithValueLogMaxEntries(5000).
		WithValueLogFileSize(64 << 20)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger: %w", err)
	}

	return &Storage{db: db}, nil
}

// Write stores state changes in BadgerDB.
// Enforces context cancellation to prevent indefinite blocking.
func (s *Storage) Write(ctx context.Context, changes []entity.StateChange) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	done := make(chan error, 1)
	go func() {
		done <- s.db.Update(func(txn *badger.Txn) error {
			for i, c := range changes {
				// Check context periodically (every 100 events)
				if i%100 == 0 {
					select {
					case <-ctx.Done():
						return ctx.Err()
					default:
					}
				}

				value, err := json.Marshal(c)
				if err != nil {
					return fmt.Errorf("failed to encode state change: %w", err)
				}

				if err := txn.Set(makeKey(c.EntityID, c.Timestamp), value); err != nil {
					return fmt.Errorf("failed to write state change: %w", err)
				}
			}
			return nil
		})
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return fmt.Errorf("write operation cancelled: %w", ctx.Err())
	}
}

// Query retrieves state changes for one entity, ordered by timestamp.
// Keys are entity_hash + timestamp, so a prefix seek visits the entity's
// events in time order without touching other entities.
func (s *Storage) Query(ctx context.Context, req storage.QueryRequest) ([]entity.StateChange, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	type queryResult struct {
		results []entity.StateChange
		err     error
	}
	done := make(chan queryResult, 1)

	go func() {
		var res queryResult
		res.err = s.db.View(func(txn *badger.Txn) error {
			opts := badger.DefaultIteratorOptions
			opts.PrefetchSize = 100

			it := txn.NewIterator(opts)
			defer it.Close()

			prefix := entityPrefix(req.EntityID)

			// anchor: newest event strictly before the window start
			var anchor *entity.StateChange
			var iterCount int

			for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
				iterCount++

				// Check context periodically (every 1000 iterations)
				if iterCount%1000 == 0 {
					select {
					case <-ctx.Done():
						return ctx.Err()
					default:
					}
				}

				ts := keyTimestamp(it.Item().Key())

				if ts.Before(req.Start) {
					if !req.IncludeStart {
						continue
					}
					// Keys iterate in time order, so the last event seen
					// before Start is the newest one.
					var c entity.StateChange
					if err := it.Item().Value(func(val []byte) error {
						return json.Unmarshal(val, &c)
					}); err != nil {
						return fmt.Errorf("failed to decode state change: %w", err)
					}
					anchor = &c
					continue
				}
				if !ts.Before(req.End) {
					break
				}

				var c entity.StateChange
				if err := it.Item().Value(func(val []byte) error {
					return json.Unmarshal(val, &c)
				}); err != nil {
					return fmt.Errorf("failed to decode state change: %w", err)
				}
				res.results = append(res.results, c)

				if req.Limit > 0 && len(res.results) >= req.Limit {
					break
				}
			}

			if anchor != nil {
				res.results = append([]entity.StateChange{*anchor}, res.results...)
				if req.Limit > 0 && len(res.results) > req.Limit {
					res.results = res.results[:req.Limit]
				}
			}

			return nil
		})
		done <- res
	}()

	select {
	case res := <-done:
		return res.results, res.err
	case <-ctx.Done():
		return nil, fmt.Errorf("query operation cancelled: %w", ctx.Err())
	}
}

// Delete removes state changes older than the given time, across all entities.
func (s *Storage) Delete(ctx context.Context, before time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	done := make(chan error, 1)
	go func() {
		done <- s.db.Update(func(txn *badger.Txn) error {
			iterOpts := badger.DefaultIteratorOptions
			iterOpts.PrefetchValues = false

			it := txn.NewIterator(iterOpts)
			defer it.Close()

			var keysToDelete [][]byte
			var iterCount int

			for it.Rewind(); it.Valid(); it.Next() {
				iterCount++

				if iterCount%1000 == 0 {
					select {
					case <-ctx.Done():
						return ctx.Err()
					default:
					}
				}

				key := it.Item().Key()
				if !keyTimestamp(key).Before(before) {
					continue
				}
				keysToDelete = append(keysToDelete, it.Item().KeyCopy(nil))
			}

			for _, key := range keysToDelete {
				if err := txn.Delete(key); err != nil {
					return err
				}
			}

			return nil
		})
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return fmt.Errorf("delete operation cancelled: %w", ctx.Err())
	}
}

// Close shuts down BadgerDB cleanly
func (s *Storage) Close() error {
	return s.db.Close()
}

// RunGC runs BadgerDB's value log garbage collection to reclaim disk space.
// discardRatio: run GC if this fraction of a file can be discarded (0.5 = 50%).
func (s *Storage) RunGC(discardRatio float64) error {
	return s.db.RunValueLogGC(discardRatio)
}

// Stats returns storage statistics.
// Iterates keys only (no value prefetch), so it stays cheap even with a
// year of events on disk.
func (s *Storage) Stats(ctx context.Context) (*storage.Stats, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	type statsResult struct {
		stats *storage.Stats
		err   error
	}
	done := make(chan statsResult, 1)

	go func() {
		var res statsResult
		stats := &storage.Stats{}

		res.err = s.db.View(func(txn *badger.Txn) error {
			opts := badger.DefaultIteratorOptions
			opts.PrefetchValues = false

			it := txn.NewIterator(opts)
			defer it.Close()

			entities := make(map[uint64]bool)
			var oldest, newest time.Time
			var iterCount int

			for it.Rewind(); it.Valid(); it.Next() {
				iterCount++

				if iterCount%1000 == 0 {
					select {
					case <-ctx.Done():
						return ctx.Err()
					default:
					}
				}

				key := it.Item().Key()
				stats.TotalEvents++
				entities[binary.BigEndian.Uint64(key[0:8])] = true

				ts := keyTimestamp(key)
				if oldest.IsZero() || ts.Before(oldest) {
					oldest = ts
				}
				if newest.IsZero() || ts.After(newest) {
					newest = ts
				}
			}

			stats.TotalEntities = uint64(len(entities))
			stats.OldestEvent = oldest
			stats.NewestEvent = newest

			return nil
		})

		if res.err == nil {
			lsmSize, vlogSize := s.db.Size()
			stats.SizeBytes = uint64(lsmSize + vlogSize)
		}

		res.stats = stats
		done <- res
	}()

	select {
	case res := <-done:
		return res.stats, res.err
	case <-ctx.Done():
		return nil, fmt.Errorf("stats operation cancelled: %w", ctx.Err())
	}
}

// makeKey creates a sortable key: entity_hash + timestamp
// Format: [entity_hash (8 bytes)][timestamp (8 bytes)]
func makeKey(entityID string, ts time.Time) []byte {
	key := make([]byte, 16)
	binary.BigEndian.PutUint64(key[0:8], xxhash.Sum64String(entityID))
	binary.BigEndian.PutUint64(key[8:16], uint64(ts.UnixNano()))
	return key
}

// entityPrefix returns the 8-byte key prefix for an entity
func entityPrefix(entityID string) []byte {
	prefix := make([]byte, 8)
	binary.BigEndian.PutUint64(prefix, xxhash.Sum64String(entityID))
	return prefix
}

// keyTimestamp extracts the timestamp from a storage key
func keyTimestamp(key []byte) time.Time {
	return time.Unix(0, int64(binary.BigEndian.Uint64(key[8:16])))
}
