package history

import (
	"context"
	"errors"
	"testing"
	"time"

	"homegraph/pkg/entity"
	"homegraph/pkg/storage"
	"homegraph/pkg/storage/memory"
)

func TestFetchSamples_AnchorAndCoercion(t *testing.T) {
	store := memory.New()
	defer store.Close()

	ctx := context.Background()
	now := time.Date(2023, 1, 1, 12, 0, 0, 0, time.UTC)

	events := []entity.StateChange{
		// Pre-window state, becomes the anchor
		{EntityID: "switch.porch_light", State: "on", Timestamp: now.Add(-2 * time.Hour)},
		// In-window changes, mixed binary and numeric
		{EntityID: "switch.porch_light", State: "off", Timestamp: now.Add(-40 * time.Minute)},
		{EntityID: "switch.porch_light", State: "unavailable", Timestamp: now.Add(-30 * time.Minute)},
		{EntityID: "switch.porch_light", State: "on", Timestamp: now.Add(-10 * time.Minute)},
	}
	if err := store.Write(ctx, events); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	fetcher := NewFetcher(store)
	samples, err := fetcher.FetchSamples(ctx, "switch.porch_light", 1*time.Hour, now)
	if err != nil {
		t.Fatalf("FetchSamples failed: %v", err)
	}

	// "unavailable" is dropped; anchor + 2 coerced changes remain
	if len(samples) != 3 {
		t.Fatalf("Expected 3 samples, got %d: %v", len(samples), samples)
	}
	if samples[0].Value != 1 {
		t.Errorf("Anchor should carry the pre-window on state (1), got %v", samples[0].Value)
	}
	if samples[1].Value != 0 || samples[2].Value != 1 {
		t.Errorf("Coerced values wrong: %v", samples)
	}
	if !samples[0].Timestamp.Before(samples[1].Timestamp) {
		t.Errorf("Samples not ordered: %v", samples)
	}
}

func TestFetchSamples_NoHistory(t *testing.T) {
	store := memory.New()
	defer store.Close()

	fetcher := NewFetcher(store)
	samples, err := fetcher.FetchSamples(context.Background(), "sensor.nothing", time.Hour, time.Now())
	if err != nil {
		t.Fatalf("FetchSamples failed: %v", err)
	}
	if len(samples) != 0 {
		t.Errorf("Expected no samples, got %v", samples)
	}
}

// failingStorage simulates a broken backend
type failingStorage struct {
	storage.Storage
}

func (f *failingStorage) Query(ctx context.Context, req storage.QueryRequest) ([]entity.StateChange, error) {
	return nil, errors.New("disk on fire")
}

func TestFetchSamples_StorageErrorPropagates(t *testing.T) {
	fetcher := NewFetcher(&failingStorage{})

	samples, err := fetcher.FetchSamples(context.Background(), "sensor.a", time.Hour, time.Now())
	if err == nil {
		t.Fatal("Expected error from failing storage")
	}
	if samples != nil {
		t.Errorf("No samples should come back with an error, got %v", samples)
	}
}
