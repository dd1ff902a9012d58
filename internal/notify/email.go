package notify

import (
	"context"
	"fmt"
	"log/slog"
	"os"
)

// EmailProvider is the backend behind the email sink. Two implementations
// exist: Resend and AWS SES.
type EmailProvider interface {
	// Name returns the provider name (e.g. "resend", "ses").
	Name() string
	// Send sends a plain-text email.
	Send(ctx context.Context, from string, to []string, subject, body string) error
	// IsConfigured reports whether the provider has usable credentials.
	IsConfigured() bool
}

// EmailSink delivers notifications by email through the first configured
// provider, trying the rest in order when the preferred one fails.
type EmailSink struct {
	providers []EmailProvider
	from      string
	to        []string
}

// NewEmailSink creates an email sink over the given providers, tried in
// order.
func NewEmailSink(from string, to []string, providers ...EmailProvider) *EmailSink {
	return &EmailSink{
		providers: providers,
		from:      from,
		to:        to,
	}
}

// Notify sends the message as an email. Returns the last provider error when
// every configured provider fails.
func (s *EmailSink) Notify(ctx context.Context, title, body string) error {
	if len(s.to) == 0 {
		return fmt.Errorf("no recipients configured")
	}

	var lastErr error
	for _, p := range s.providers {
		if !p.IsConfigured() {
			continue
		}
		if err := p.Send(ctx, s.from, s.to, title, body); err != nil {
			slog.Warn("Email provider failed, trying next",
				"provider", p.Name(),
				"error", err,
			)
			lastErr = err
			continue
		}
		return nil
	}

	if lastErr != nil {
		return lastErr
	}
	return fmt.Errorf("no configured email provider available")
}

// getEnvOrDefault returns the environment variable value or a default if not set.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
