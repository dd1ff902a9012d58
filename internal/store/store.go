// Package store holds the latest known set of normalized events per source
// and derives a merged, globally-ordered view on demand.
//
// Sources deliver either authoritative full snapshots (merge discipline:
// last write per source wins) or true deltas (per-record upsert/remove).
// Both strategies are supported per source.
package store

import (
	"sort"
	"sync"

	"opswatch/internal/event"
)

// MergeStrategy names how a source's updates are folded into its slice.
type MergeStrategy string

const (
	// SnapshotReplace wholesale replaces the source's slice on every delivery.
	SnapshotReplace MergeStrategy = "snapshot-replace"
	// DeltaUpsert applies individual added/modified/removed records.
	DeltaUpsert MergeStrategy = "delta-upsert"
)

// Store owns the per-source event slices. All reads return copies; callers
// never observe a partially-replaced slice.
type Store struct {
	mu     sync.RWMutex
	slices map[event.Source][]event.NormalizedEvent
}

// New creates an empty store. A source that has never delivered contributes
// zero events; absence is not an error.
func New() *Store {
	return &Store{
		slices: make(map[event.Source][]event.NormalizedEvent),
	}
}

// ReplaceSlice atomically replaces the full slice for one source.
func (s *Store) ReplaceSlice(source event.Source, events []event.NormalizedEvent) {
	copied := make([]event.NormalizedEvent, len(events))
	copy(copied, events)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.slices[source] = copied
}

// ApplyDelta folds a single record change into the source's slice.
// Added and modified records upsert by (source, id); removed records drop it.
func (s *Store) ApplyDelta(change event.ChangeType, ev event.NormalizedEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	slice := s.slices[ev.Source]
	idx := -1
	for i := range slice {
		if slice[i].ID == ev.ID {
			idx = i
			break
		}
	}

	switch change {
	case event.ChangeRemoved:
		if idx >= 0 {
			s.slices[ev.Source] = append(slice[:idx], slice[idx+1:]...)
		}
	default:
		if idx >= 0 {
			slice[idx] = ev
		} else {
			s.slices[ev.Source] = append(slice, ev)
		}
	}
}

// SourceCount returns the number of events currently held for one source.
func (s *Store) SourceCount(source event.Source) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.slices[source])
}

// MergedView returns a stable snapshot across all sources, sorted descending
// by occurrence time. Events without a timestamp sort last; ties break by
// (source, id) so the order is deterministic regardless of delivery order.
func (s *Store) MergedView() []event.NormalizedEvent {
	s.mu.RLock()
	total := 0
	for _, slice := range s.slices {
		total += len(slice)
	}
	merged := make([]event.NormalizedEvent, 0, total)
	for _, slice := range s.slices {
		merged = append(merged, slice...)
	}
	s.mu.RUnlock()

	sort.Slice(merged, func(i, j int) bool {
		a, b := merged[i], merged[j]
		switch {
		case a.HasTimestamp() && !b.HasTimestamp():
			return true
		case !a.HasTimestamp() && b.HasTimestamp():
			return false
		case a.HasTimestamp() && b.HasTimestamp() && !a.OccurredAt.Equal(b.OccurredAt):
			return a.OccurredAt.After(b.OccurredAt)
		}
		if a.Source != b.Source {
			return a.Source < b.Source
		}
		return a.ID < b.ID
	})

	return merged
}
