// Package event defines the canonical event model shared by every component
// of the engine: source identities, change tags, normalized events and
// severity tiers.
package event

import (
	"fmt"
	"time"
)

// Source identifies one of the five external event sources.
// The set is fixed; adding a source means adding a field mapping and a topic.
type Source string

const (
	SourceFacilities    Source = "facilities"
	SourceBuildings     Source = "buildings"
	SourceVehiclePlants Source = "vehicle-plants"
	SourceNeighborhoods Source = "neighborhoods"
	SourceOther         Source = "other"
)

// Sources lists all known sources in a stable order.
var Sources = []Source{
	SourceFacilities,
	SourceBuildings,
	SourceVehiclePlants,
	SourceNeighborhoods,
	SourceOther,
}

// Valid reports whether s is one of the five known sources.
func (s Source) Valid() bool {
	switch s {
	case SourceFacilities, SourceBuildings, SourceVehiclePlants, SourceNeighborhoods, SourceOther:
		return true
	}
	return false
}

// ChangeType tags how a source record changed relative to the source's
// previous state.
type ChangeType string

const (
	ChangeAdded    ChangeType = "added"
	ChangeModified ChangeType = "modified"
	ChangeRemoved  ChangeType = "removed"
)

// Severity is the tier assigned to an event kind by the classifier.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityWarning  Severity = "warning"
	SeverityInfo     Severity = "info"
	SeverityOK       Severity = "ok"
)

// Severities lists all severity tiers in descending order of urgency.
var Severities = []Severity{SeverityCritical, SeverityWarning, SeverityInfo, SeverityOK}

// Sentinel values used when a source record is missing fields.
// The normalizer degrades to these rather than failing: a monitoring
// dashboard must keep showing best-available data.
const (
	UnknownKind = "unknown-event"
	NoLocation  = "no-location"
)

// NormalizedEvent is the canonical internal representation of a raw source
// record. (Source, ID) is unique; LocationKey is never empty.
type NormalizedEvent struct {
	ID          string    `json:"id"`
	Source      Source    `json:"source"`
	Kind        string    `json:"kind"`
	LocationKey string    `json:"location_key"`
	OccurredAt  time.Time `json:"occurred_at"` // zero value means the timestamp is unknown
	Observation string    `json:"observation,omitempty"`
}

// HasTimestamp reports whether the event carries a usable occurrence time.
// Events without one are excluded from time-ordered incident logic but still
// appear in listings.
func (e NormalizedEvent) HasTimestamp() bool {
	return !e.OccurredAt.IsZero()
}

// Key returns the globally unique identity of the event.
func (e NormalizedEvent) Key() string {
	return fmt.Sprintf("%s/%s", e.Source, e.ID)
}
