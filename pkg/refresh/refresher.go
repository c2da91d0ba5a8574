package refresh

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"homegraph/pkg/config"
	"homegraph/pkg/downsample"
	"homegraph/pkg/history"
	"homegraph/pkg/ingest"
)

// Broadcaster receives refreshed series. Satisfied by ingest.SeriesHub.
type Broadcaster interface {
	Broadcast(update ingest.SeriesUpdate) error
	HasClients() bool
}

// Refresher recomputes every tracked entity's downsampled series on a timer
// and pushes the results to connected dashboards. Series are transient:
// nothing is cached between cycles, each one recomputes from storage.
type Refresher struct {
	fetcher *history.Fetcher
	hub     Broadcaster
	widget  config.WidgetConfig
	monitor *Monitor

	// now is the clock; replaced in tests for fixed windows
	now func() time.Time
}

// New creates a refresher for the given widget config
func New(fetcher *history.Fetcher, hub Broadcaster, widget config.WidgetConfig) *Refresher {
	return &Refresher{
		fetcher: fetcher,
		hub:     hub,
		widget:  widget,
		monitor: &Monitor{},
		now:     time.Now,
	}
}

// Monitor exposes the health monitor for /v1/health
func (r *Refresher) Monitor() *Monitor {
	return r.monitor
}

// RefreshAll runs one refresh cycle over every tracked entity.
// A failed fetch means the entity's history is absent this cycle: it is
// logged and skipped, never served stale. The cycle itself only counts as
// failed when no entity could be refreshed, which points at the store
// rather than a single flaky sensor.
func (r *Refresher) RefreshAll(ctx context.Context) error {
	now := r.now()
	window := time.Duration(r.widget.WindowHours * float64(time.Hour))

	var failed int
	var lastErr error

	for _, entityID := range r.widget.Entities {
		if err := r.refreshEntity(ctx, entityID, window, now); err != nil {
			failed++
			lastErr = err
			fetchFailures.WithLabelValues(entityID).Inc()
			log.Printf("History absent for %s this cycle: %v", entityID, err)
		}
	}

	if failed == len(r.widget.Entities) {
		return fmt.Errorf("all %d entities failed to refresh: %w", failed, lastErr)
	}
	return nil
}

func (r *Refresher) refreshEntity(ctx context.Context, entityID string, window time.Duration, now time.Time) error {
	fetchCtx, cancel := context.WithTimeout(ctx, config.FetchTimeout)
	defer cancel()

	samples, err := r.fetcher.FetchSamples(fetchCtx, entityID, window, now)
	if err != nil {
		return err
	}

	start := time.Now()
	series := downsample.Downsample(samples, window, r.widget.PointsPerHour, now)
	downsampleDuration.Observe(time.Since(start).Seconds())

	if err := r.hub.Broadcast(ingest.SeriesUpdate{
		Type:      "series_update",
		EntityID:  entityID,
		Timestamp: now.Unix(),
		Series:    series,
	}); err != nil {
		return fmt.Errorf("failed to broadcast series for %s: %w", entityID, err)
	}
	seriesBroadcasts.Inc()

	return nil
}

// Run refreshes on a timer until stop is closed. A cycle that fails outright
// is retried with an explicit attempt counter and exponential backoff; retry
// state lives here in the loop, never in package globals.
func (r *Refresher) Run(stop chan bool, wg *sync.WaitGroup) {
	defer wg.Done()

	ticker := time.NewTicker(config.RefreshInterval)
	defer ticker.Stop()

	runWithRetry := func(ctx context.Context) {
		maxRetries := 3
		baseDelay := 10 * time.Second

		for attempt := 0; attempt <= maxRetries; attempt++ {
			if attempt > 0 {
				delay := baseDelay * time.Duration(1<<(attempt-1)) // 10s, 20s, 40s
				log.Printf("Retrying refresh in %v (attempt %d/%d)...", delay, attempt+1, maxRetries+1)
				select {
				case <-time.After(delay):
				case <-stop:
					return
				}
			}

			start := time.Now()
			err := r.RefreshAll(ctx)

			if err == nil {
				r.monitor.RecordSuccess()
				cyclesTotal.WithLabelValues("success").Inc()
				log.Printf("Refresh cycle completed in %v (%d entities)",
					time.Since(start).Round(time.Millisecond), len(r.widget.Entities))
				return
			}

			r.monitor.RecordFailure(err)
			cyclesTotal.WithLabelValues("failure").Inc()
			log.Printf("Refresh cycle failed (attempt %d/%d): %v", attempt+1, maxRetries+1, err)

			if status := r.monitor.Status(); status.ConsecutiveErrors > 3 {
				log.Printf("ALERT: refresh has been failing! Consecutive errors: %d", status.ConsecutiveErrors)
			}
		}

		log.Printf("Refresh failed after %d attempts, will retry on next schedule", maxRetries+1)
	}

	// Run once on startup so dashboards get data immediately
	log.Println("Running initial refresh...")
	runWithRetry(context.Background())

	for {
		select {
		case <-ticker.C:
			// No dashboards connected: skip the cycle, HTTP queries compute
			// on demand anyway. Idle cycles count as healthy or /v1/health
			// would degrade on a quiet service.
			if !r.hub.HasClients() {
				r.monitor.RecordSuccess()
				continue
			}
			runWithRetry(context.Background())
		case <-stop:
			log.Println("Stopping refresh scheduler")
			return
		}
	}
}
