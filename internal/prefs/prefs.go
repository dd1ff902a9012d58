// Package prefs persists operator notification preferences and the set of
// locally-dismissed alert IDs in a key-value store. Absence of the store (or
// any read failure) degrades gracefully to all-defaults; preferences are a
// convenience, never a point of failure.
package prefs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"opswatch/internal/event"
)

const (
	// PreferencesKey is the key where notification preferences are stored.
	PreferencesKey = "opswatch:prefs:notify"
	// DismissedKey is the key where dismissed alert IDs are stored.
	DismissedKey = "opswatch:prefs:dismissed"
)

// Preferences holds the per-severity notification toggles.
type Preferences struct {
	Notify map[event.Severity]bool `json:"notify"`
}

// Default returns the out-of-the-box preferences: notify on everything except
// ok-tier events.
func Default() Preferences {
	return Preferences{
		Notify: map[event.Severity]bool{
			event.SeverityCritical: true,
			event.SeverityWarning:  true,
			event.SeverityInfo:     true,
			event.SeverityOK:       false,
		},
	}
}

// Enabled reports whether notifications are enabled for the given severity.
// Severities missing from the map fall back to the default table.
func (p Preferences) Enabled(sev event.Severity) bool {
	if p.Notify != nil {
		if v, ok := p.Notify[sev]; ok {
			return v
		}
	}
	return Default().Notify[sev]
}

// Store reads and writes preferences in Redis. A nil client is valid and
// makes every read return defaults and every write a logged no-op.
type Store struct {
	client *redis.Client
}

// NewStore creates a preference store. client may be nil.
func NewStore(client *redis.Client) *Store {
	return &Store{client: client}
}

// LoadPreferences reads the saved preferences, falling back to defaults when
// the store is absent, the key is missing, or the payload is malformed.
func (s *Store) LoadPreferences(ctx context.Context) Preferences {
	if s.client == nil {
		return Default()
	}

	data, err := s.client.Get(ctx, PreferencesKey).Bytes()
	if err == redis.Nil {
		return Default()
	}
	if err != nil {
		slog.Warn("Failed to read notification preferences, using defaults", "error", err)
		return Default()
	}

	var p Preferences
	if err := json.Unmarshal(data, &p); err != nil {
		slog.Warn("Malformed notification preferences, using defaults", "error", err)
		return Default()
	}
	return p
}

// SavePreferences writes the preferences. Returns an error for callers that
// care; the engine logs and continues.
func (s *Store) SavePreferences(ctx context.Context, p Preferences) error {
	if s.client == nil {
		return nil
	}

	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to marshal preferences: %w", err)
	}
	if err := s.client.Set(ctx, PreferencesKey, data, 0).Err(); err != nil {
		return fmt.Errorf("failed to write preferences: %w", err)
	}
	return nil
}

// LoadDismissed reads the set of locally-dismissed alert IDs.
func (s *Store) LoadDismissed(ctx context.Context) []string {
	if s.client == nil {
		return nil
	}

	ids, err := s.client.SMembers(ctx, DismissedKey).Result()
	if err != nil && err != redis.Nil {
		slog.Warn("Failed to read dismissed alert IDs", "error", err)
		return nil
	}
	return ids
}

// AddDismissed records one alert ID as locally dismissed.
func (s *Store) AddDismissed(ctx context.Context, alertID string) error {
	if s.client == nil {
		return nil
	}
	if err := s.client.SAdd(ctx, DismissedKey, alertID).Err(); err != nil {
		return fmt.Errorf("failed to record dismissed alert: %w", err)
	}
	return nil
}
