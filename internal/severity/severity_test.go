package severity

import (
	"testing"

	"opswatch/internal/event"
)

func TestClassify(t *testing.T) {
	c := New(nil)

	tests := []struct {
		kind string
		want event.Severity
	}{
		{kind: "intrusion-detected", want: event.SeverityCritical},
		{kind: "door-forced", want: event.SeverityCritical},
		{kind: "power-cut", want: event.SeverityWarning},
		{kind: "power-restored", want: event.SeverityOK},
		{kind: "door-held-open", want: event.SeverityWarning},
		{kind: "door-closed", want: event.SeverityOK},
		{kind: "cctv-offline", want: event.SeverityWarning},
		{kind: "internet-outage", want: event.SeverityWarning},
		{kind: "false-positive", want: event.SeverityOK},
		{kind: "personnel-entry", want: event.SeverityInfo},
		{kind: event.UnknownKind, want: event.SeverityInfo},
		{kind: "", want: event.SeverityInfo},
	}

	for _, tt := range tests {
		t.Run(tt.kind, func(t *testing.T) {
			if got := c.Classify(tt.kind); got != tt.want {
				t.Errorf("Classify(%q) = %q, want %q", tt.kind, got, tt.want)
			}
		})
	}
}

func TestClassify_CaseInsensitive(t *testing.T) {
	c := New(nil)
	if got := c.Classify("INTRUSION-Detected"); got != event.SeverityCritical {
		t.Errorf("Classify = %q, want critical", got)
	}
}

// First match wins: "power-restored" contains "restored" (ok) which is
// ordered before "power-cut" (warning) in the default table.
func TestClassify_FirstMatchWins(t *testing.T) {
	c := New([]Rule{
		{Keyword: "restored", Severity: event.SeverityOK},
		{Keyword: "power", Severity: event.SeverityWarning},
	})
	if got := c.Classify("power-restored"); got != event.SeverityOK {
		t.Errorf("Classify = %q, want ok (first matching rule)", got)
	}
	if got := c.Classify("power-cut"); got != event.SeverityWarning {
		t.Errorf("Classify = %q, want warning", got)
	}
}

// Classification must be a pure function of the kind: repeated calls always
// agree, so historical events re-classify consistently for display.
func TestClassify_Deterministic(t *testing.T) {
	c := New(nil)
	first := c.Classify("power-cut")
	for i := 0; i < 100; i++ {
		if got := c.Classify("power-cut"); got != first {
			t.Fatalf("Classify changed between calls: %q then %q", first, got)
		}
	}
}
