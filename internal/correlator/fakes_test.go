package correlator

import (
	"sync"
	"time"

	"opswatch/internal/event"
)

// fakeClock is a manually advanced clock. Timers fire synchronously inside
// Advance, which makes the cancel-vs-fire ordering fully deterministic in
// tests.
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

func (c *fakeClock) AfterFunc(d time.Duration, fn func()) Timer {
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
// Callbacks run outside the clock lock so they may call Now.
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

// fakeSink records raised and resolved alerts.
type fakeSink struct {
	mu       sync.Mutex
	raised   []event.Alert
	resolved []string
}

func (s *fakeSink) RaiseAlert(alert event.Alert) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.raised = append(s.raised, alert)
}

func (s *fakeSink) ResolveAlert(alertID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resolved = append(s.resolved, alertID)
}

func (s *fakeSink) Raised() []event.Alert {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]event.Alert, len(s.raised))
	copy(out, s.raised)
	return out
}

func (s *fakeSink) Resolved() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.resolved))
	copy(out, s.resolved)
	return out
}
