/*
Package storage provides the pluggable event store abstraction for homegraph.

# Storage Interface

homegraph uses an interface-based design to support multiple backends:
  - memory: In-memory storage for testing and development
  - badger: BadgerDB (LSM tree + Snappy compression) for persistent storage

All backends implement the Storage interface:

	type Storage interface {
	    Write(ctx context.Context, changes []entity.StateChange) error
	    Query(ctx context.Context, req QueryRequest) ([]entity.StateChange, error)
	    Delete(ctx context.Context, before time.Time) error
	    Stats(ctx context.Context) (*Stats, error)
	    Close() error
	}

# Query Semantics

Queries are per entity over a half-open range [Start, End). History charts
also need the state that was already in effect when the window opened, so
QueryRequest.IncludeStart asks the backend to prepend the newest event
strictly before Start. The downsampler treats that event as its anchor
sample.

Events are returned in timestamp order regardless of write order; MQTT and
batched HTTP ingestion are free to interleave.
*/
package storage
