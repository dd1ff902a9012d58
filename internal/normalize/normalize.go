// Package normalize maps raw, source-specific records into the canonical
// NormalizedEvent shape. Normalization is a pure function and never fails:
// missing or malformed fields degrade to sentinel values so that one bad
// record can never blank an operator's screen.
package normalize

import (
	"fmt"
	"strings"
	"time"

	"opswatch/internal/event"
)

// FieldMap describes where a source keeps the canonical fields inside its raw
// records. Each of the five sources ships a different shape; the engine only
// ever sees the normalized result.
type FieldMap struct {
	// KindField holds the event-type string.
	KindField string
	// LocationFields are joined with " - " to build the physical location.
	// Later fields are optional refinements (e.g. building unit).
	LocationFields []string
	// TimeField holds the occurrence timestamp. Accepted encodings: RFC 3339
	// string, unix seconds (number), or an object with a "seconds" member.
	TimeField string
	// ObservationField holds the free-text annotation, if any.
	ObservationField string
}

// DefaultFieldMaps is the per-source field configuration for the five known
// sources.
var DefaultFieldMaps = map[event.Source]FieldMap{
	event.SourceFacilities: {
		KindField:        "facility_event",
		LocationFields:   []string{"site"},
		TimeField:        "sent_at",
		ObservationField: "observations",
	},
	event.SourceBuildings: {
		KindField:        "building_event",
		LocationFields:   []string{"building", "unit"},
		TimeField:        "sent_at",
		ObservationField: "observations",
	},
	event.SourceVehiclePlants: {
		KindField:        "plant_event",
		LocationFields:   []string{"plant"},
		TimeField:        "sent_at",
		ObservationField: "observations",
	},
	event.SourceNeighborhoods: {
		KindField:        "neighborhood_event",
		LocationFields:   []string{"neighborhood"},
		TimeField:        "sent_at",
		ObservationField: "observations",
	},
	event.SourceOther: {
		KindField:        "event",
		LocationFields:   []string{"place"},
		TimeField:        "sent_at",
		ObservationField: "observations",
	},
}

// Normalizer converts raw source records into NormalizedEvents using a
// per-source field map.
type Normalizer struct {
	fields map[event.Source]FieldMap
}

// New creates a normalizer. If fields is nil the default per-source maps are
// used.
func New(fields map[event.Source]FieldMap) *Normalizer {
	if fields == nil {
		fields = DefaultFieldMaps
	}
	return &Normalizer{fields: fields}
}

// Normalize builds a NormalizedEvent from a raw record and the identity of
// the source it came from. It never returns an error; absent fields fall
// back to sentinels and malformed timestamps are treated as unknown.
func (n *Normalizer) Normalize(source event.Source, id string, raw map[string]any) event.NormalizedEvent {
	fm, ok := n.fields[source]
	if !ok {
		fm = FieldMap{}
	}

	kind := stringField(raw, fm.KindField)
	if kind == "" {
		kind = event.UnknownKind
	}

	return event.NormalizedEvent{
		ID:          id,
		Source:      source,
		Kind:        kind,
		LocationKey: locationKey(source, raw, fm.LocationFields),
		OccurredAt:  timeField(raw, fm.TimeField),
		Observation: stringField(raw, fm.ObservationField),
	}
}

// locationKey derives the composite location identifier. The source name is
// always the prefix so keys never collide across sources.
func locationKey(source event.Source, raw map[string]any, fields []string) string {
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		if v := stringField(raw, f); v != "" {
			parts = append(parts, v)
		}
	}
	loc := strings.Join(parts, " - ")
	if loc == "" {
		loc = event.NoLocation
	}
	return fmt.Sprintf("%s/%s", source, loc)
}

// stringField extracts a trimmed string value, tolerating missing keys and
// non-string values.
func stringField(raw map[string]any, field string) string {
	if field == "" || raw == nil {
		return ""
	}
	v, ok := raw[field]
	if !ok {
		return ""
	}
	switch s := v.(type) {
	case string:
		return strings.TrimSpace(s)
	case fmt.Stringer:
		return strings.TrimSpace(s.String())
	default:
		return ""
	}
}

// timeField extracts the occurrence timestamp. Returns the zero time when the
// field is missing or unparseable; callers treat that as "order unknown".
func timeField(raw map[string]any, field string) time.Time {
	if field == "" || raw == nil {
		return time.Time{}
	}
	v, ok := raw[field]
	if !ok {
		return time.Time{}
	}
	switch t := v.(type) {
	case string:
		if parsed, err := time.Parse(time.RFC3339, t); err == nil {
			return parsed.UTC()
		}
		return time.Time{}
	case float64:
		// JSON numbers decode as float64; interpret as unix seconds.
		if t <= 0 {
			return time.Time{}
		}
		return time.Unix(int64(t), 0).UTC()
	case int64:
		if t <= 0 {
			return time.Time{}
		}
		return time.Unix(t, 0).UTC()
	case map[string]any:
		// Document-store export shape: {"seconds": 1712345678}.
		if secs, ok := t["seconds"].(float64); ok && secs > 0 {
			return time.Unix(int64(secs), 0).UTC()
		}
		return time.Time{}
	default:
		return time.Time{}
	}
}
