package history

import (
	"context"
	"fmt"
	"time"

	"homegraph/pkg/downsample"
	"homegraph/pkg/entity"
	"homegraph/pkg/storage"
)

// Fetcher turns stored state changes into chartable history samples.
//
// It is the boundary between the event store and the downsampler: it asks
// the store for the window plus the anchor event (the state in effect when
// the window opened), coerces state strings to numbers, and drops states
// that cannot be charted. On a fetch error callers must treat the entity's
// history as absent for the cycle, never substitute stale or partial data.
type Fetcher struct {
	store storage.Storage
}

// NewFetcher creates a fetcher backed by the given store
func NewFetcher(store storage.Storage) *Fetcher {
	return &Fetcher{store: store}
}

// FetchSamples returns the entity's coerced history samples for
// [now-window, now), ordered by timestamp. The first sample, when present,
// is the anchor: the value already in effect at the window start.
// Unparseable states ("unavailable", free text) are dropped here so the
// downsampler only ever sees finite numbers.
func (f *Fetcher) FetchSamples(ctx context.Context, entityID string, window time.Duration, now time.Time) ([]downsample.Sample, error) {
	changes, err := f.store.Query(ctx, storage.QueryRequest{
		EntityID:     entityID,
		Start:        now.Add(-window),
		End:          now,
		IncludeStart: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query history for %s: %w", entityID, err)
	}

	samples := make([]downsample.Sample, 0, len(changes))
	for _, c := range changes {
		value, ok := entity.ParseState(c.State)
		if !ok {
			continue
		}
		samples = append(samples, downsample.Sample{
			Timestamp: c.Timestamp,
			Value:     value,
		})
	}

	return samples, nil
}
