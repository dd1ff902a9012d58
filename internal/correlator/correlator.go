// Package correlator tracks paired trigger/resolving events per location.
//
// A trigger event (e.g. "power-cut") arms a timer for its location; if the
// matching resolving event ("power-restored") arrives before the deadline the
// timer is cancelled, otherwise it fires and escalates the incident to a
// critical alert. At most one armed timer exists per (locationKey, triggerKind)
// at any instant.
package correlator

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"opswatch/internal/event"
)

// TimerStatus is the lifecycle state of an incident timer.
type TimerStatus string

const (
	StatusArmed     TimerStatus = "armed"
	StatusCancelled TimerStatus = "cancelled"
	StatusFired     TimerStatus = "fired"
)

// Pairing configures one trigger/resolving kind pair and its escalation
// window. Multiple pairings operate on independent timer namespaces.
type Pairing struct {
	TriggerKind   string
	ResolvingKind string
	Window        time.Duration
}

// DefaultPairings covers the incident pairs present in the source vocabulary.
var DefaultPairings = []Pairing{
	{TriggerKind: "power-cut", ResolvingKind: "power-restored", Window: time.Hour},
	{TriggerKind: "door-held-open", ResolvingKind: "door-closed", Window: 30 * time.Minute},
}

// IncidentTimer tracks one open trigger window. The timer object is discarded
// once it reaches a terminal state; a fresh trigger later creates a new one.
type IncidentTimer struct {
	LocationKey string
	TriggerKind string
	ArmedAt     time.Time
	DeadlineAt  time.Time
	Status      TimerStatus

	handle Timer
}

// AlertSink receives escalations from the correlator. The surface implements
// it; tests substitute a fake.
type AlertSink interface {
	// RaiseAlert publishes a new critical alert.
	RaiseAlert(alert event.Alert)
	// ResolveAlert removes a previously raised alert, used when a resolving
	// event arrives after the timer already fired.
	ResolveAlert(alertID string)
}

// corrKey identifies one incident's timer namespace.
type corrKey struct {
	locationKey string
	triggerKind string
}

// Correlator owns the timer table. All state transitions happen under one
// mutex: the cancel call site and the expiry callback both claim the timer by
// checking and setting its status, so a cancellation racing an expiry
// deterministically reaches exactly one of cancelled or fired.
type Correlator struct {
	mu        sync.Mutex
	byTrigger map[string]Pairing // trigger kind -> pairing
	byResolve map[string]Pairing // resolving kind -> pairing
	timers    map[corrKey]*IncidentTimer
	fired     map[corrKey]string // correlation key -> alert ID awaiting late resolution
	sink      AlertSink
	clock     Clock
	tornDown  bool

	// Counters exposed for metrics reporting.
	armedTotal     uint64
	cancelledTotal uint64
	firedTotal     uint64
}

// New creates a correlator with the given pairing table. If pairings is nil
// the default table is used; if clock is nil wall time is used.
func New(pairings []Pairing, sink AlertSink, clock Clock) *Correlator {
	if pairings == nil {
		pairings = DefaultPairings
	}
	if clock == nil {
		clock = RealClock()
	}
	c := &Correlator{
		byTrigger: make(map[string]Pairing, len(pairings)),
		byResolve: make(map[string]Pairing, len(pairings)),
		timers:    make(map[corrKey]*IncidentTimer),
		fired:     make(map[corrKey]string),
		sink:      sink,
		clock:     clock,
	}
	for _, p := range pairings {
		c.byTrigger[p.TriggerKind] = p
		c.byResolve[p.ResolvingKind] = p
	}
	return c
}

// OnEvent feeds one normalized event through the pairing table. Events whose
// kind is neither a trigger nor a resolving kind have no correlator effect.
// Events without a timestamp are excluded from incident logic entirely.
func (c *Correlator) OnEvent(ev event.NormalizedEvent) {
	if !ev.HasTimestamp() {
		return
	}

	if p, ok := c.byTrigger[ev.Kind]; ok {
		c.arm(ev, p)
		return
	}
	if p, ok := c.byResolve[ev.Kind]; ok {
		c.resolve(ev, p)
	}
}

// arm creates and arms a timer for the event's location unless one is already
// armed there. Re-arming is a no-op: only the first trigger in a still-open
// window counts, timers are never reset or stacked.
func (c *Correlator) arm(ev event.NormalizedEvent, p Pairing) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.tornDown {
		return
	}

	key := corrKey{locationKey: ev.LocationKey, triggerKind: p.TriggerKind}
	if _, exists := c.timers[key]; exists {
		slog.Debug("Timer already armed, ignoring repeat trigger",
			"location_key", ev.LocationKey,
			"trigger_kind", p.TriggerKind,
		)
		return
	}

	now := c.clock.Now()
	tm := &IncidentTimer{
		LocationKey: ev.LocationKey,
		TriggerKind: p.TriggerKind,
		ArmedAt:     now,
		DeadlineAt:  now.Add(p.Window),
		Status:      StatusArmed,
	}
	tm.handle = c.clock.AfterFunc(p.Window, func() {
		c.expire(key, p)
	})
	c.timers[key] = tm
	c.armedTotal++

	slog.Info("Armed incident timer",
		"location_key", ev.LocationKey,
		"trigger_kind", p.TriggerKind,
		"deadline_at", tm.DeadlineAt,
	)
}

// resolve cancels the armed timer for the event's location, if any. If the
// timer had already fired before this late resolution arrived, the alert it
// raised is resolved as well.
//
// Resolution is cancel-on-next-resolving-event regardless of timestamp order,
// a documented simplification: a resolving event that is logically older than
// the trigger still cancels the window.
func (c *Correlator) resolve(ev event.NormalizedEvent, p Pairing) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := corrKey{locationKey: ev.LocationKey, triggerKind: p.TriggerKind}

	if tm, ok := c.timers[key]; ok && tm.Status == StatusArmed {
		// Claim the timer before the side effect; expire() checks the same
		// status under the same mutex, so exactly one of the two wins.
		tm.Status = StatusCancelled
		tm.handle.Stop()
		delete(c.timers, key)
		c.cancelledTotal++

		slog.Info("Cancelled incident timer",
			"location_key", ev.LocationKey,
			"trigger_kind", p.TriggerKind,
			"resolving_kind", p.ResolvingKind,
		)
	}

	if alertID, ok := c.fired[key]; ok {
		delete(c.fired, key)
		c.sink.ResolveAlert(alertID)
		slog.Info("Resolved fired alert on late resolution",
			"location_key", ev.LocationKey,
			"alert_id", alertID,
		)
	}
}

// expire runs when a timer's deadline elapses. If the timer is still armed it
// transitions to fired and a critical alert is emitted; if a cancellation won
// the claim first, this is a no-op.
func (c *Correlator) expire(key corrKey, p Pairing) {
	c.mu.Lock()
	defer c.mu.Unlock()

	tm, ok := c.timers[key]
	if !ok || tm.Status != StatusArmed || c.tornDown {
		return
	}

	tm.Status = StatusFired
	delete(c.timers, key)
	c.firedTotal++

	alert := event.Alert{
		ID:          uuid.NewString(),
		LocationKey: tm.LocationKey,
		Message:     fmt.Sprintf("%s at %s: no %s within %s", p.TriggerKind, tm.LocationKey, p.ResolvingKind, p.Window),
		Severity:    event.SeverityCritical,
		CreatedAt:   c.clock.Now(),
	}
	c.fired[key] = alert.ID
	c.sink.RaiseAlert(alert)

	slog.Warn("Incident escalated",
		"location_key", tm.LocationKey,
		"trigger_kind", tm.TriggerKind,
		"alert_id", alert.ID,
		"window", p.Window,
	)
}

// IsTrigger reports whether kind arms an incident timer. Callers use this to
// distinguish timer-paired kinds from inherently-critical ones that escalate
// immediately.
func (c *Correlator) IsTrigger(kind string) bool {
	_, ok := c.byTrigger[kind]
	return ok
}

// ArmedCount returns the number of currently armed timers.
func (c *Correlator) ArmedCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.timers)
}

// Counts returns the lifetime armed/cancelled/fired totals.
func (c *Correlator) Counts() (armed, cancelled, fired uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.armedTotal, c.cancelledTotal, c.firedTotal
}

// Teardown stops every armed timer and rejects further arming. In-flight
// incident tracking is lost by design; armed timers are not persisted across
// engine restarts.
func (c *Correlator) Teardown() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.tornDown = true
	for key, tm := range c.timers {
		tm.Status = StatusCancelled
		tm.handle.Stop()
		delete(c.timers, key)
	}
	c.fired = make(map[corrKey]string)

	slog.Info("Correlator torn down, all armed timers cleared")
}
