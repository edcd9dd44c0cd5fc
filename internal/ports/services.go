// Package ports defines interfaces for external dependencies.
// Ports are contracts that adapters implement, allowing the application layer
// to depend on abstractions rather than concrete implementations.
//
// Port Design Principles:
//   - Context as first parameter for cancellation and deadlines
//   - Return domain types, never external DTOs or infrastructure types
//   - Error returns use domain error types (ErrUnavailable, ErrStorage, etc.)
//   - Keep interfaces small and focused
package ports

import (
	"context"

	"github.com/jsamuelsen/quote-keeper/internal/domain"
)

// SlotStore persists opaque values under string keys. The quote collection,
// the selected filter and the last shown quote each occupy one slot.
//
// Set must replace the whole value in one step: a concurrent or later Get
// sees either the previous value or the new one, never a mix.
type SlotStore interface {
	// Get returns the stored value, or (nil, nil) when the slot is empty.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key string, value []byte) error

	// Delete clears the slot. Clearing an empty slot is not an error.
	Delete(ctx context.Context, key string) error
}

// QuoteSource supplies candidate records from outside the process.
// Implementations translate their wire format into domain quotes before
// returning; callers never see external DTOs.
type QuoteSource interface {
	// Name identifies the source in logs, metrics and sync results.
	Name() string

	// FetchCandidates returns the source's current records in source order.
	// Returns domain.ErrUnavailable when the source cannot be reached.
	FetchCandidates(ctx context.Context) ([]domain.Quote, error)
}

// ExportSink publishes an exported collection somewhere durable.
type ExportSink interface {
	// Publish writes data under name and returns where it ended up
	// (a file path or an object URL).
	Publish(ctx context.Context, name string, data []byte) (string, error)
}
