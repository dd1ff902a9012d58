// Package surface owns what operators actually see: the bounded
// recent-notification buffer with its unread counter, and the critical alert
// list with acknowledge/dismiss semantics. Side-effect sinks (the Go
// rendition of sound and OS notifications) are fire-and-forget and gated by
// per-severity preferences.
package surface

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"opswatch/internal/event"
	"opswatch/internal/prefs"
)

// DefaultNotificationLimit bounds the recent-notification ring buffer.
const DefaultNotificationLimit = 10

// sinkTimeout bounds each fire-and-forget sink call.
const sinkTimeout = 10 * time.Second

// NotificationRecord is one entry in the recent-activity buffer.
type NotificationRecord struct {
	ID         string                `json:"id"`
	Event      event.NormalizedEvent `json:"event"`
	Severity   event.Severity        `json:"severity"`
	ReceivedAt time.Time             `json:"received_at"`
	Read       bool                  `json:"read"`
}

// Notifier is an outbound side-effect sink. Failures are the sink's problem:
// the surface never surfaces them to operators.
type Notifier interface {
	Notify(ctx context.Context, title, body string) error
}

// DismissalWriter persists locally-dismissed alert IDs. The prefs store
// implements it; a nil writer disables persistence.
type DismissalWriter interface {
	AddDismissed(ctx context.Context, alertID string) error
}

// Surface is the operator-facing alert and notification state. All state is
// guarded by one mutex; reads return copies, never internal slices.
type Surface struct {
	mu            sync.Mutex
	limit         int
	notifications []NotificationRecord
	unread        int
	alerts        []event.Alert
	dismissed     map[string]bool
	preferences   prefs.Preferences
	sinks         []Notifier
	dismissals    DismissalWriter
}

// New creates a surface. limit <= 0 falls back to DefaultNotificationLimit;
// dismissed seeds the locally-dismissed set loaded at startup.
func New(limit int, preferences prefs.Preferences, dismissed []string, dismissals DismissalWriter, sinks ...Notifier) *Surface {
	if limit <= 0 {
		limit = DefaultNotificationLimit
	}
	dm := make(map[string]bool, len(dismissed))
	for _, id := range dismissed {
		dm[id] = true
	}
	return &Surface{
		limit:       limit,
		dismissed:   dm,
		preferences: preferences,
		sinks:       sinks,
		dismissals:  dismissals,
	}
}

// RecordNotification appends a non-critical event to the ring buffer, bumps
// the unread counter, and fires the sinks when preferences allow.
func (s *Surface) RecordNotification(ev event.NormalizedEvent, sev event.Severity) {
	rec := NotificationRecord{
		ID:         ev.Key(),
		Event:      ev,
		Severity:   sev,
		ReceivedAt: time.Now().UTC(),
	}

	s.mu.Lock()
	s.notifications = append([]NotificationRecord{rec}, s.notifications...)
	if len(s.notifications) > s.limit {
		s.notifications = s.notifications[:s.limit]
	}
	s.unread++
	enabled := s.preferences.Enabled(sev)
	s.mu.Unlock()

	slog.Info("Recorded notification",
		"source", ev.Source,
		"kind", ev.Kind,
		"location_key", ev.LocationKey,
		"severity", sev,
	)

	if enabled {
		s.fireSinks(ev.Kind, ev.Kind+" | "+ev.LocationKey)
	}
}

// RaiseAlert adds a critical alert to the active list. Alerts the operator
// already dismissed locally are skipped. Sinks fire regardless of the
// per-severity preference for notifications below critical.
func (s *Surface) RaiseAlert(alert event.Alert) {
	s.mu.Lock()
	if s.dismissed[alert.ID] {
		s.mu.Unlock()
		slog.Debug("Skipping locally dismissed alert", "alert_id", alert.ID)
		return
	}
	s.alerts = append(s.alerts, alert)
	enabled := s.preferences.Enabled(event.SeverityCritical)
	s.mu.Unlock()

	slog.Warn("Raised critical alert",
		"alert_id", alert.ID,
		"location_key", alert.LocationKey,
		"message", alert.Message,
	)

	if enabled {
		s.fireSinks("Critical alert", alert.Message)
	}
}

// ResolveAlert removes an alert from the active list, driven by the
// correlator when a late resolving event arrives.
func (s *Surface) ResolveAlert(alertID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeAlertLocked(alertID)
}

// Acknowledge marks an alert as acknowledged. Local-only: the underlying
// incident may still be unresolved upstream.
func (s *Surface) Acknowledge(alertID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.alerts {
		if s.alerts[i].ID == alertID {
			s.alerts[i].Acknowledged = true
			return true
		}
	}
	return false
}

// Dismiss removes an alert and records the dismissal so it is not re-raised
// on this operator's station.
func (s *Surface) Dismiss(alertID string) bool {
	s.mu.Lock()
	removed := s.removeAlertLocked(alertID)
	s.dismissed[alertID] = true
	s.mu.Unlock()

	if s.dismissals != nil {
		ctx, cancel := context.WithTimeout(context.Background(), sinkTimeout)
		defer cancel()
		if err := s.dismissals.AddDismissed(ctx, alertID); err != nil {
			slog.Warn("Failed to persist dismissed alert", "alert_id", alertID, "error", err)
		}
	}
	return removed
}

// DismissNotification drops one record from the recent-notification buffer.
func (s *Surface) DismissNotification(notificationID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.notifications {
		if s.notifications[i].ID == notificationID {
			if !s.notifications[i].Read && s.unread > 0 {
				s.unread--
			}
			s.notifications = append(s.notifications[:i], s.notifications[i+1:]...)
			return true
		}
	}
	return false
}

// MarkAllRead marks every buffered notification read and resets the unread
// counter, invoked when the operator opens the notification view.
func (s *Surface) MarkAllRead() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.notifications {
		s.notifications[i].Read = true
	}
	s.unread = 0
}

// RecentNotifications returns a copy of the buffered notifications, newest
// first.
func (s *Surface) RecentNotifications() []NotificationRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]NotificationRecord, len(s.notifications))
	copy(out, s.notifications)
	return out
}

// ActiveAlerts returns a copy of the active alert list.
func (s *Surface) ActiveAlerts() []event.Alert {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]event.Alert, len(s.alerts))
	copy(out, s.alerts)
	return out
}

// UnreadCount returns the number of notifications arrived since the operator
// last opened the notification view.
func (s *Surface) UnreadCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unread
}

// SetPreferences swaps the per-severity notification toggles.
func (s *Surface) SetPreferences(p prefs.Preferences) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.preferences = p
}

// Preferences returns the current notification toggles.
func (s *Surface) Preferences() prefs.Preferences {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.preferences
}

// removeAlertLocked drops an alert by ID. Caller holds the mutex.
func (s *Surface) removeAlertLocked(alertID string) bool {
	for i := range s.alerts {
		if s.alerts[i].ID == alertID {
			s.alerts = append(s.alerts[:i], s.alerts[i+1:]...)
			return true
		}
	}
	return false
}

// fireSinks invokes every sink in its own goroutine. Sink failures (blocked
// delivery, denied permission) are swallowed; they are diagnostics, never
// operator-facing errors.
func (s *Surface) fireSinks(title, body string) {
	for _, sink := range s.sinks {
		go func(n Notifier) {
			ctx, cancel := context.WithTimeout(context.Background(), sinkTimeout)
			defer cancel()
			if err := n.Notify(ctx, title, body); err != nil {
				slog.Debug("Notification sink failed", "error", err)
			}
		}(sink)
	}
}
