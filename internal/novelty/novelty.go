// Package novelty suppresses backlog replay. Real-time document-store
// subscriptions commonly deliver their full history as a burst of "added"
// records on first subscribe; without this filter every engine start would
// re-fire every alert and side effect ever recorded.
package novelty

import (
	"time"

	"opswatch/internal/event"
)

// Filter decides whether an event is truly new relative to engine start.
// The baseline is captured once and deliberately not persisted: each fresh
// engine instance re-baselines to "now", so pre-existing events are never
// treated as novel, even on reconnect.
type Filter struct {
	baseline time.Time
}

// New creates a filter with the given baseline, typically time.Now() at
// engine construction.
func New(baseline time.Time) *Filter {
	return &Filter{baseline: baseline}
}

// Baseline returns the engine-start timestamp the filter compares against.
func (f *Filter) Baseline() time.Time {
	return f.baseline
}

// IsNovel reports whether the event occurred strictly after the baseline.
// Events without a timestamp are never novel: novelty cannot be proven, and
// an unprovable event must not trigger side effects.
func (f *Filter) IsNovel(ev event.NormalizedEvent) bool {
	if !ev.HasTimestamp() {
		return false
	}
	return ev.OccurredAt.After(f.baseline)
}
