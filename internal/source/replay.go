package source

import (
	"context"

	"opswatch/internal/event"
)

// ReplayAdapter delivers a fixed sequence of envelopes and then blocks until
// cancellation. Used by tests and the demo mode of the CLI.
type ReplayAdapter struct {
	source    event.Source
	envelopes []Envelope
}

// NewReplayAdapter creates an adapter that replays the given envelopes once.
func NewReplayAdapter(source event.Source, envelopes []Envelope) *ReplayAdapter {
	return &ReplayAdapter{source: source, envelopes: envelopes}
}

// Source returns the identity of the wrapped source.
func (a *ReplayAdapter) Source() event.Source {
	return a.source
}

// Run pushes every envelope in order, then waits for cancellation.
func (a *ReplayAdapter) Run(ctx context.Context, out chan<- Message) error {
	for _, env := range a.envelopes {
		select {
		case out <- Message{Source: a.source, Envelope: env}:
		case <-ctx.Done():
			return nil
		}
	}
	<-ctx.Done()
	return nil
}

// Close is a no-op.
func (a *ReplayAdapter) Close() error {
	return nil
}
