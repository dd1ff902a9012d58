package engine

import (
	"context"
	"sync"
	"time"

	"opswatch/internal/correlator"
	"opswatch/internal/event"
	"opswatch/internal/prefs"
)

// fakeClock drives correlator timers manually so expiry tests never sleep.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

type fakeTimer struct {
	deadline time.Time
	fn       func()
	stopped  bool
	fired    bool
}

func newFakeClock(start time.Time) *fakeClock {
	return &fakeClock{now: start}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, fn func()) correlator.Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{deadline: c.now.Add(d), fn: fn}
	c.timers = append(c.timers, t)
	return t
}

func (t *fakeTimer) Stop() bool {
	t.stopped = true
	return !t.fired
}

// Advance moves the clock forward and fires every due, unstopped timer.
// Callbacks run outside the clock lock.
func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	var due []*fakeTimer
	for _, t := range c.timers {
		if !t.stopped && !t.fired && !t.deadline.After(c.now) {
			t.fired = true
			due = append(due, t)
		}
	}
	c.mu.Unlock()

	for _, t := range due {
		t.fn()
	}
}

// fakeHistory records durable-log calls.
type fakeHistory struct {
	mu       sync.Mutex
	inserted []event.Alert
	acked    []string
	err      error
}

func (f *fakeHistory) InsertAlertIdempotent(ctx context.Context, alert event.Alert) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return false, f.err
	}
	f.inserted = append(f.inserted, alert)
	return true, nil
}

func (f *fakeHistory) MarkAcknowledged(ctx context.Context, alertID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return false, f.err
	}
	f.acked = append(f.acked, alertID)
	return true, nil
}

func (f *fakeHistory) Inserted() []event.Alert {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]event.Alert, len(f.inserted))
	copy(out, f.inserted)
	return out
}

func (f *fakeHistory) Acked() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.acked))
	copy(out, f.acked)
	return out
}

// fakePrefWriter records persisted preference snapshots.
type fakePrefWriter struct {
	mu    sync.Mutex
	saved []prefs.Preferences
}

func (f *fakePrefWriter) SavePreferences(ctx context.Context, p prefs.Preferences) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saved = append(f.saved, p)
	return nil
}

func (f *fakePrefWriter) Saved() []prefs.Preferences {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]prefs.Preferences, len(f.saved))
	copy(out, f.saved)
	return out
}
