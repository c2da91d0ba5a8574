package server

import (
	"context"
	"log"
	"sync"
	"time"

	"homegraph/pkg/config"
	"homegraph/pkg/storage"
	"homegraph/pkg/storage/badger"
)

// RunRetention deletes state changes older than the retention window.
// Runs periodically plus once shortly after startup.
func RunRetention(store storage.Storage, stop chan bool, wg *sync.WaitGroup) {
	defer wg.Done()

	ticker := time.NewTicker(config.RetentionInterval)
	defer ticker.Stop()

	cleanup := func() {
		cutoff := time.Now().Add(-config.RetentionWindow)
		start := time.Now()
		if err := store.Delete(context.Background(), cutoff); err != nil {
			log.Printf("Retention cleanup failed: %v", err)
			return
		}
		log.Printf("Retention cleanup completed in %v (events before %v removed)",
			time.Since(start).Round(time.Millisecond), cutoff.Format(time.RFC3339))
	}

	// Initial cleanup after a short delay so startup stays fast
	select {
	case <-time.After(1 * time.Minute):
		cleanup()
	case <-stop:
		return
	}

	for {
		select {
		case <-ticker.C:
			cleanup()
		case <-stop:
			log.Println("Stopping retention scheduler")
			return
		}
	}
}

// RunBadgerGC runs BadgerDB garbage collection periodically to reclaim disk
// space. Badger's LSM value log accumulates deleted events until GC runs.
func RunBadgerGC(store storage.Storage, stop chan bool, wg *sync.WaitGroup) {
	defer wg.Done()

	ticker := time.NewTicker(config.BadgerGCInterval)
	defer ticker.Stop()

	badgerStore, ok := store.(*badger.Storage)
	if !ok {
		log.Println("Storage is not BadgerDB, skipping GC")
		return
	}

	log.Printf("BadgerDB GC scheduler started (runs every %v)", config.BadgerGCInterval)

	for {
		select {
		case <-ticker.C:
			start := time.Now()
			// One iteration per tick; 0.5 discard ratio reclaims files that
			// are at least half garbage.
			if err := badgerStore.RunGC(0.5); err != nil {
				// Badger returns an error when no GC was needed
				log.Printf("GC completed in %v (no rewrite needed)", time.Since(start).Round(time.Millisecond))
			} else {
				log.Printf("GC completed in %v (disk space reclaimed)", time.Since(start).Round(time.Millisecond))
			}
		case <-stop:
			log.Println("Stopping BadgerDB GC scheduler")
			return
		}
	}
}
