// Package source wraps the five external event sources behind one adapter
// interface. Each adapter pushes raw records into the engine's single inbound
// channel; the engine drains it deterministically, so no adapter ever mutates
// shared state directly.
package source

import (
	"context"

	"opswatch/internal/event"
)

// Record is one raw, source-specific document plus its identifier.
// Fields is unvalidated; the normalizer deals with whatever shape arrives.
type Record struct {
	ID     string         `json:"id"`
	Fields map[string]any `json:"fields"`
}

// Envelope is one delivery from a source. Sources operate in one of two
// modes: full-collection snapshots on every change (Snapshot set, Change
// empty) or incremental added/modified/removed records (Record and Change
// set). Real deployments use a mixture, so both are supported per source.
type Envelope struct {
	Change   event.ChangeType `json:"change,omitempty"`
	Record   *Record          `json:"record,omitempty"`
	Snapshot []Record         `json:"snapshot,omitempty"`
}

// IsSnapshot reports whether the envelope carries a full-collection snapshot.
func (e Envelope) IsSnapshot() bool {
	return e.Snapshot != nil && e.Change == ""
}

// Message is one envelope tagged with the source it came from.
type Message struct {
	Source   event.Source
	Envelope Envelope
}

// Adapter is one subscribed event source. Run blocks until ctx is cancelled,
// pushing every delivery into out.
type Adapter interface {
	// Source returns the identity of the wrapped source.
	Source() event.Source

	// Run consumes the source until ctx is cancelled. Implementations must
	// tolerate malformed deliveries (skip, never fail the subscription) and
	// return nil on context cancellation.
	Run(ctx context.Context, out chan<- Message) error

	// Close releases the subscription's resources.
	Close() error
}
