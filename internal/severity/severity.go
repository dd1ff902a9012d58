// Package severity maps event kinds to severity tiers via ordered keyword
// matching. Classification is a pure function of the kind string alone, so
// re-classifying historical events for display always agrees with how they
// were classified on arrival.
package severity

import (
	"strings"

	"opswatch/internal/event"
)

// Rule matches a keyword (case-insensitive substring) to a severity tier.
type Rule struct {
	Keyword  string
	Severity event.Severity
}

// DefaultRules is the static classification table. Order matters: the first
// matching rule wins, so more specific keywords come first ("power-restored"
// must match before "power").
var DefaultRules = []Rule{
	{Keyword: "intrusion", Severity: event.SeverityCritical},
	{Keyword: "forced", Severity: event.SeverityCritical},
	{Keyword: "restored", Severity: event.SeverityOK},
	{Keyword: "false-positive", Severity: event.SeverityOK},
	{Keyword: "door-closed", Severity: event.SeverityOK},
	{Keyword: "power-cut", Severity: event.SeverityWarning},
	{Keyword: "door-held", Severity: event.SeverityWarning},
	{Keyword: "offline", Severity: event.SeverityWarning},
	{Keyword: "outage", Severity: event.SeverityWarning},
	{Keyword: "fault", Severity: event.SeverityWarning},
}

// Classifier performs first-match-wins keyword classification.
type Classifier struct {
	rules []Rule
}

// New creates a classifier. If rules is nil the default table is used.
func New(rules []Rule) *Classifier {
	if rules == nil {
		rules = DefaultRules
	}
	return &Classifier{rules: rules}
}

// Classify returns the severity tier for an event kind. Unmatched kinds
// default to info.
func (c *Classifier) Classify(kind string) event.Severity {
	lower := strings.ToLower(kind)
	for _, r := range c.rules {
		if strings.Contains(lower, strings.ToLower(r.Keyword)) {
			return r.Severity
		}
	}
	return event.SeverityInfo
}
