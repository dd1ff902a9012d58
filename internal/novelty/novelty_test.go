package novelty

import (
	"testing"
	"time"

	"opswatch/internal/event"
)

func TestIsNovel(t *testing.T) {
	baseline := time.Date(2024, 4, 5, 12, 0, 0, 0, time.UTC)
	f := New(baseline)

	tests := []struct {
		name       string
		occurredAt time.Time
		want       bool
	}{
		{name: "after baseline", occurredAt: baseline.Add(time.Second), want: true},
		{name: "exactly at baseline", occurredAt: baseline, want: false},
		{name: "before baseline", occurredAt: baseline.Add(-time.Hour), want: false},
		{name: "absent timestamp", occurredAt: time.Time{}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := event.NormalizedEvent{
				ID:          "ev-1",
				Source:      event.SourceFacilities,
				Kind:        "power-cut",
				LocationKey: "facilities/loc",
				OccurredAt:  tt.occurredAt,
			}
			if got := f.IsNovel(ev); got != tt.want {
				t.Errorf("IsNovel(%v) = %v, want %v", tt.occurredAt, got, tt.want)
			}
		})
	}
}

// Backlog delivered late is still suppressed: only the event's own timestamp
// matters, never its arrival time.
func TestIsNovel_IgnoresDeliveryTime(t *testing.T) {
	baseline := time.Now().UTC()
	f := New(baseline)

	old := event.NormalizedEvent{
		ID:          "backlog-1",
		Source:      event.SourceBuildings,
		Kind:        "power-cut",
		LocationKey: "buildings/Bldg-7",
		OccurredAt:  baseline.Add(-24 * time.Hour),
	}

	// No matter how many times or how late it is delivered.
	for i := 0; i < 3; i++ {
		if f.IsNovel(old) {
			t.Fatal("backlog event classified as novel")
		}
	}
}

func TestBaseline(t *testing.T) {
	baseline := time.Date(2024, 4, 5, 12, 0, 0, 0, time.UTC)
	if got := New(baseline).Baseline(); !got.Equal(baseline) {
		t.Errorf("Baseline() = %v, want %v", got, baseline)
	}
}
