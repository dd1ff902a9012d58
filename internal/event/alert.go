package event

import "time"

// Alert is a critical, operator-visible escalation. Alerts are produced when
// an incident timer fires, or immediately for inherently-critical event kinds
// that have no resolution pairing. They never auto-expire; only operator
// acknowledgement or dismissal mutates them.
type Alert struct {
	ID           string    `json:"id"`
	LocationKey  string    `json:"location_key"`
	Message      string    `json:"message"`
	Severity     Severity  `json:"severity"`
	CreatedAt    time.Time `json:"created_at"`
	Acknowledged bool      `json:"acknowledged"`
}
