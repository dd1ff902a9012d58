package surface

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"opswatch/internal/event"
	"opswatch/internal/prefs"
)

// fakeSink records notifications and signals arrival so tests can wait for
// the fire-and-forget goroutines without sleeping.
type fakeSink struct {
	mu    sync.Mutex
	calls []string
	fired chan struct{}
}

func newFakeSink() *fakeSink {
	return &fakeSink{fired: make(chan struct{}, 16)}
}

func (f *fakeSink) Notify(ctx context.Context, title, body string) error {
	f.mu.Lock()
	f.calls = append(f.calls, title+"|"+body)
	f.mu.Unlock()
	f.fired <- struct{}{}
	return nil
}

func (f *fakeSink) waitForCall(t *testing.T) {
	t.Helper()
	select {
	case <-f.fired:
	case <-time.After(2 * time.Second):
		t.Fatal("sink was not fired")
	}
}

func (f *fakeSink) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// fakeDismissals records persisted dismissals.
type fakeDismissals struct {
	mu  sync.Mutex
	ids []string
	err error
}

func (f *fakeDismissals) AddDismissed(ctx context.Context, alertID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.ids = append(f.ids, alertID)
	return nil
}

func testEvent(id string) event.NormalizedEvent {
	return event.NormalizedEvent{
		ID:          id,
		Source:      event.SourceBuildings,
		Kind:        "door-held-open",
		LocationKey: "buildings/Bldg-7",
		OccurredAt:  time.Now().UTC(),
	}
}

func testAlert(id string) event.Alert {
	return event.Alert{
		ID:          id,
		LocationKey: "buildings/Bldg-7",
		Message:     "power-cut at buildings/Bldg-7",
		Severity:    event.SeverityCritical,
		CreatedAt:   time.Now().UTC(),
	}
}

func TestRecordNotification_RingBufferBound(t *testing.T) {
	s := New(3, prefs.Default(), nil, nil)

	for i := 0; i < 5; i++ {
		s.RecordNotification(testEvent(fmt.Sprintf("ev-%d", i)), event.SeverityInfo)
	}

	got := s.RecentNotifications()
	if len(got) != 3 {
		t.Fatalf("buffer holds %d records, want 3", len(got))
	}
	// Newest first, oldest evicted.
	wantIDs := []string{"buildings/ev-4", "buildings/ev-3", "buildings/ev-2"}
	for i, want := range wantIDs {
		if got[i].ID != want {
			t.Errorf("notification[%d].ID = %q, want %q", i, got[i].ID, want)
		}
	}
}

func TestUnreadCounter(t *testing.T) {
	s := New(10, prefs.Default(), nil, nil)

	s.RecordNotification(testEvent("a"), event.SeverityInfo)
	s.RecordNotification(testEvent("b"), event.SeverityInfo)
	if got := s.UnreadCount(); got != 2 {
		t.Fatalf("UnreadCount = %d, want 2", got)
	}

	s.MarkAllRead()
	if got := s.UnreadCount(); got != 0 {
		t.Errorf("UnreadCount = %d after MarkAllRead, want 0", got)
	}
	for _, n := range s.RecentNotifications() {
		if !n.Read {
			t.Errorf("notification %s still unread", n.ID)
		}
	}

	// Counter keeps increasing for new arrivals after the reset.
	s.RecordNotification(testEvent("c"), event.SeverityInfo)
	if got := s.UnreadCount(); got != 1 {
		t.Errorf("UnreadCount = %d, want 1", got)
	}
}

func TestRecordNotification_SinkGatedByPreferences(t *testing.T) {
	sink := newFakeSink()
	p := prefs.Preferences{Notify: map[event.Severity]bool{
		event.SeverityWarning: true,
		event.SeverityInfo:    false,
	}}
	s := New(10, p, nil, nil, sink)

	s.RecordNotification(testEvent("quiet"), event.SeverityInfo)
	s.RecordNotification(testEvent("loud"), event.SeverityWarning)

	sink.waitForCall(t)
	if got := sink.callCount(); got != 1 {
		t.Errorf("sink fired %d times, want 1 (info disabled)", got)
	}
	// The suppressed event is still buffered and counted.
	if got := len(s.RecentNotifications()); got != 2 {
		t.Errorf("buffer holds %d, want 2", got)
	}
}

func TestRaiseAlert_AndLifecycle(t *testing.T) {
	s := New(10, prefs.Default(), nil, nil)

	s.RaiseAlert(testAlert("al-1"))
	s.RaiseAlert(testAlert("al-2"))

	alerts := s.ActiveAlerts()
	if len(alerts) != 2 {
		t.Fatalf("ActiveAlerts = %d, want 2", len(alerts))
	}

	if !s.Acknowledge("al-1") {
		t.Fatal("Acknowledge(al-1) = false, want true")
	}
	for _, a := range s.ActiveAlerts() {
		if a.ID == "al-1" && !a.Acknowledged {
			t.Error("al-1 not marked acknowledged")
		}
	}
	// Acknowledged alerts stay active until dismissed; they never auto-expire.
	if got := len(s.ActiveAlerts()); got != 2 {
		t.Errorf("ActiveAlerts = %d after acknowledge, want 2", got)
	}

	if s.Acknowledge("missing") {
		t.Error("Acknowledge(missing) = true, want false")
	}
}

func TestResolveAlert_RemovesIt(t *testing.T) {
	s := New(10, prefs.Default(), nil, nil)

	s.RaiseAlert(testAlert("al-1"))
	s.ResolveAlert("al-1")

	if got := len(s.ActiveAlerts()); got != 0 {
		t.Errorf("ActiveAlerts = %d after resolve, want 0", got)
	}
}

func TestDismiss_PersistsAndSkipsReRaise(t *testing.T) {
	dismissals := &fakeDismissals{}
	s := New(10, prefs.Default(), nil, dismissals)

	s.RaiseAlert(testAlert("al-1"))
	if !s.Dismiss("al-1") {
		t.Fatal("Dismiss(al-1) = false, want true")
	}
	if got := len(s.ActiveAlerts()); got != 0 {
		t.Fatalf("ActiveAlerts = %d after dismiss, want 0", got)
	}
	if len(dismissals.ids) != 1 || dismissals.ids[0] != "al-1" {
		t.Errorf("persisted dismissals = %v, want [al-1]", dismissals.ids)
	}

	// A redelivered alert with a dismissed ID is skipped.
	s.RaiseAlert(testAlert("al-1"))
	if got := len(s.ActiveAlerts()); got != 0 {
		t.Errorf("ActiveAlerts = %d, dismissed alert was re-raised", got)
	}
}

func TestDismissedSeedFromStartup(t *testing.T) {
	s := New(10, prefs.Default(), []string{"al-old"}, nil)

	s.RaiseAlert(testAlert("al-old"))
	if got := len(s.ActiveAlerts()); got != 0 {
		t.Errorf("ActiveAlerts = %d, want 0 for alert dismissed in a previous session", got)
	}
}

func TestDismissNotification(t *testing.T) {
	s := New(10, prefs.Default(), nil, nil)

	s.RecordNotification(testEvent("a"), event.SeverityInfo)
	s.RecordNotification(testEvent("b"), event.SeverityInfo)

	if !s.DismissNotification("buildings/a") {
		t.Fatal("DismissNotification = false, want true")
	}
	if got := len(s.RecentNotifications()); got != 1 {
		t.Errorf("buffer holds %d, want 1", got)
	}
	if got := s.UnreadCount(); got != 1 {
		t.Errorf("UnreadCount = %d, want 1 (dismissed unread record decrements)", got)
	}

	if s.DismissNotification("missing") {
		t.Error("DismissNotification(missing) = true, want false")
	}
}

func TestSetPreferences(t *testing.T) {
	s := New(10, prefs.Default(), nil, nil)

	p := prefs.Preferences{Notify: map[event.Severity]bool{event.SeverityCritical: false}}
	s.SetPreferences(p)

	if s.Preferences().Enabled(event.SeverityCritical) {
		t.Error("critical notifications still enabled after SetPreferences")
	}
}
