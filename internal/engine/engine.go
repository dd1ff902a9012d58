// Package engine wires the pipeline together: source adapters push envelopes
// into one inbound channel, and a single goroutine drains it through the
// normalizer, aggregate store, novelty filter, severity classifier, incident
// correlator and operator surface. One engine instance exists per dashboard
// session and is torn down explicitly with it.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"opswatch/internal/correlator"
	"opswatch/internal/event"
	"opswatch/internal/metrics"
	"opswatch/internal/normalize"
	"opswatch/internal/novelty"
	"opswatch/internal/prefs"
	"opswatch/internal/severity"
	"opswatch/internal/source"
	"opswatch/internal/store"
	"opswatch/internal/surface"
)

// defaultInboxSize bounds the inbound channel. Sources that outrun the drain
// loop block, which is the correct backpressure for a single consumer.
const defaultInboxSize = 256

// writeTimeout bounds best-effort writes (history, preferences).
const writeTimeout = 5 * time.Second

// AlertLog is the durable alert log. Optional: a nil log disables history.
type AlertLog interface {
	InsertAlertIdempotent(ctx context.Context, alert event.Alert) (bool, error)
	MarkAcknowledged(ctx context.Context, alertID string) (bool, error)
}

// PreferenceWriter persists operator preferences. Optional.
type PreferenceWriter interface {
	SavePreferences(ctx context.Context, p prefs.Preferences) error
}

// Options configures an engine instance.
type Options struct {
	Normalizer *normalize.Normalizer
	Classifier *severity.Classifier
	Pairings   []correlator.Pairing
	Clock      correlator.Clock
	Surface    *surface.Surface
	Metrics    *metrics.Collector
	History    AlertLog
	PrefWriter PreferenceWriter
	Adapters   []source.Adapter
	InboxSize  int
	// Baseline overrides the novelty baseline; zero means "now".
	Baseline time.Time
}

// Engine is one dashboard session's aggregation and escalation state.
type Engine struct {
	normalizer *normalize.Normalizer
	store      *store.Store
	novelty    *novelty.Filter
	classifier *severity.Classifier
	correlator *correlator.Correlator
	surface    *surface.Surface
	metrics    *metrics.Collector
	history    AlertLog
	prefWriter PreferenceWriter
	adapters   []source.Adapter
	inbox      chan source.Message

	healthMu     sync.Mutex
	lastDelivery map[event.Source]time.Time
}

// New constructs an engine. The novelty baseline is captured here, once:
// events that occurred before this instant are never treated as novel.
func New(opts Options) *Engine {
	if opts.Normalizer == nil {
		opts.Normalizer = normalize.New(nil)
	}
	if opts.Classifier == nil {
		opts.Classifier = severity.New(nil)
	}
	if opts.Surface == nil {
		opts.Surface = surface.New(0, prefs.Default(), nil, nil)
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.NewCollector(nil)
	}
	if opts.InboxSize <= 0 {
		opts.InboxSize = defaultInboxSize
	}
	baseline := opts.Baseline
	if baseline.IsZero() {
		baseline = time.Now().UTC()
	}

	e := &Engine{
		normalizer:   opts.Normalizer,
		store:        store.New(),
		novelty:      novelty.New(baseline),
		classifier:   opts.Classifier,
		surface:      opts.Surface,
		metrics:      opts.Metrics,
		history:      opts.History,
		prefWriter:   opts.PrefWriter,
		adapters:     opts.Adapters,
		inbox:        make(chan source.Message, opts.InboxSize),
		lastDelivery: make(map[event.Source]time.Time),
	}
	// The engine is the correlator's alert sink so escalations also reach
	// metrics and the durable log, not just the surface.
	e.correlator = correlator.New(opts.Pairings, e, opts.Clock)
	return e
}

// Run starts every source adapter and drains the inbox until ctx is
// cancelled, then tears the session down: adapters closed, armed timers
// cleared. In-flight incident tracking is lost on teardown by design.
func (e *Engine) Run(ctx context.Context) error {
	slog.Info("Engine starting",
		"baseline", e.novelty.Baseline(),
		"adapters", len(e.adapters),
	)

	var wg sync.WaitGroup
	for _, a := range e.adapters {
		wg.Add(1)
		go func(a source.Adapter) {
			defer wg.Done()
			if err := a.Run(ctx, e.inbox); err != nil {
				slog.Error("Source adapter stopped with error",
					"source", a.Source(),
					"error", err,
				)
			}
		}(a)
	}

	for {
		select {
		case <-ctx.Done():
			e.teardown()
			wg.Wait()
			slog.Info("Engine stopped")
			return nil
		case msg := <-e.inbox:
			e.handle(msg)
		}
	}
}

// HandleMessage processes one source delivery synchronously. Exposed for
// tests and embedded use; Run is the normal entry point.
func (e *Engine) HandleMessage(msg source.Message) {
	e.handle(msg)
}

func (e *Engine) handle(msg source.Message) {
	e.healthMu.Lock()
	e.lastDelivery[msg.Source] = time.Now().UTC()
	e.healthMu.Unlock()

	env := msg.Envelope
	if env.IsSnapshot() {
		e.handleSnapshot(msg.Source, env.Snapshot)
		return
	}
	if env.Record == nil {
		slog.Warn("Ignoring envelope with no record", "source", msg.Source)
		return
	}
	e.handleDelta(msg.Source, env.Change, *env.Record)
}

// handleSnapshot replaces the source's slice wholesale: sources in snapshot
// mode deliver authoritative full state, so last write per source wins.
// Snapshots feed the merged view only; the notification and incident paths
// run off incremental deltas.
func (e *Engine) handleSnapshot(src event.Source, records []source.Record) {
	events := make([]event.NormalizedEvent, 0, len(records))
	for _, rec := range records {
		events = append(events, e.normalizer.Normalize(src, rec.ID, rec.Fields))
	}
	e.store.ReplaceSlice(src, events)

	slog.Debug("Replaced source slice", "source", src, "events", len(events))
}

// handleDelta applies one incremental record change and, for truly new
// added records, runs the notification and incident-correlation paths.
func (e *Engine) handleDelta(src event.Source, change event.ChangeType, rec source.Record) {
	e.metrics.RecordEvent()

	ev := e.normalizer.Normalize(src, rec.ID, rec.Fields)
	e.store.ApplyDelta(change, ev)

	if change != event.ChangeAdded {
		return
	}
	if !e.novelty.IsNovel(ev) {
		// Backlog replay or an event with unprovable order: keep it in the
		// merged view but never fire side effects for it.
		e.metrics.RecordSuppressed()
		return
	}

	sev := e.classifier.Classify(ev.Kind)

	if sev == event.SeverityCritical && !e.correlator.IsTrigger(ev.Kind) {
		// Inherently-critical kinds with no resolution pairing escalate
		// immediately instead of waiting on a timer.
		e.RaiseAlert(event.Alert{
			ID:          uuid.NewString(),
			LocationKey: ev.LocationKey,
			Message:     fmt.Sprintf("%s at %s", ev.Kind, ev.LocationKey),
			Severity:    event.SeverityCritical,
			CreatedAt:   time.Now().UTC(),
		})
	} else {
		e.surface.RecordNotification(ev, sev)
		e.metrics.RecordNotification()
	}

	e.correlator.OnEvent(ev)
}

// RaiseAlert implements correlator.AlertSink: escalations reach the surface,
// the metrics collector, and (when configured) the durable log.
func (e *Engine) RaiseAlert(alert event.Alert) {
	e.surface.RaiseAlert(alert)
	e.metrics.RecordAlertRaised()

	if e.history != nil {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		defer cancel()
		if _, err := e.history.InsertAlertIdempotent(ctx, alert); err != nil {
			slog.Warn("Failed to log alert", "alert_id", alert.ID, "error", err)
		}
	}
}

// ResolveAlert implements correlator.AlertSink.
func (e *Engine) ResolveAlert(alertID string) {
	e.surface.ResolveAlert(alertID)
	e.metrics.RecordAlertResolved()
}

// MergedView returns the globally-ordered snapshot across all sources.
func (e *Engine) MergedView() []event.NormalizedEvent {
	return e.store.MergedView()
}

// RecentNotifications returns the bounded recent-activity buffer.
func (e *Engine) RecentNotifications() []surface.NotificationRecord {
	return e.surface.RecentNotifications()
}

// ActiveAlerts returns the current critical alert list.
func (e *Engine) ActiveAlerts() []event.Alert {
	return e.surface.ActiveAlerts()
}

// UnreadCount returns the unread notification counter.
func (e *Engine) UnreadCount() int {
	return e.surface.UnreadCount()
}

// MarkAllRead resets the unread counter, called when the operator opens the
// notification view.
func (e *Engine) MarkAllRead() {
	e.surface.MarkAllRead()
}

// Acknowledge marks an alert acknowledged, locally and in the durable log.
func (e *Engine) Acknowledge(alertID string) bool {
	ok := e.surface.Acknowledge(alertID)
	if ok && e.history != nil {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		defer cancel()
		if _, err := e.history.MarkAcknowledged(ctx, alertID); err != nil {
			slog.Warn("Failed to record acknowledgement", "alert_id", alertID, "error", err)
		}
	}
	return ok
}

// Dismiss removes an alert locally. Source data is never mutated.
func (e *Engine) Dismiss(alertID string) bool {
	return e.surface.Dismiss(alertID)
}

// DismissNotification drops one record from the notification buffer.
func (e *Engine) DismissNotification(notificationID string) bool {
	return e.surface.DismissNotification(notificationID)
}

// SetPreferences updates and persists the per-severity notification toggles.
func (e *Engine) SetPreferences(p prefs.Preferences) {
	e.surface.SetPreferences(p)

	if e.prefWriter != nil {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		defer cancel()
		if err := e.prefWriter.SavePreferences(ctx, p); err != nil {
			slog.Warn("Failed to persist preferences", "error", err)
		}
	}
}

// ArmedTimers returns the number of currently armed incident timers.
func (e *Engine) ArmedTimers() int {
	return e.correlator.ArmedCount()
}

// SourceHealth returns the last delivery time per source. Sources missing
// from the map have never delivered; stale entries indicate a degraded feed
// whose last-known slice is still being shown.
func (e *Engine) SourceHealth() map[event.Source]time.Time {
	e.healthMu.Lock()
	defer e.healthMu.Unlock()

	out := make(map[event.Source]time.Time, len(e.lastDelivery))
	for src, t := range e.lastDelivery {
		out[src] = t
	}
	return out
}

// ReportTimerCounts samples correlator totals into the metrics collector.
func (e *Engine) ReportTimerCounts() {
	armed, cancelled, fired := e.correlator.Counts()
	e.metrics.SetTimerCounts(armed, cancelled, fired)
}

// teardown closes adapters and clears every armed timer so nothing outlives
// the session.
func (e *Engine) teardown() {
	for _, a := range e.adapters {
		if err := a.Close(); err != nil {
			slog.Error("Failed to close source adapter", "source", a.Source(), "error", err)
		}
	}
	e.correlator.Teardown()
}
