// Package config provides configuration parsing and validation for the
// opswatch engine.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// Config holds all configuration parameters for the engine.
type Config struct {
	KafkaBrokers    string
	TopicPrefix     string
	ConsumerGroupID string
	RedisAddr       string
	PostgresDSN     string
	WebhookURL      string
	EmailFrom       string
	EmailTo         string

	NotificationLimit int
	PowerCutWindow    time.Duration
	DoorHeldWindow    time.Duration
}

// Validate checks that all required configuration fields are set and have
// valid values. Redis, Postgres, webhook and email are optional integrations
// and may be left empty.
func (c *Config) Validate() error {
	if c.KafkaBrokers == "" {
		return fmt.Errorf("kafka-brokers cannot be empty")
	}
	if c.TopicPrefix == "" {
		return fmt.Errorf("topic-prefix cannot be empty")
	}
	if c.ConsumerGroupID == "" {
		return fmt.Errorf("consumer-group-id cannot be empty")
	}
	if c.NotificationLimit <= 0 {
		return fmt.Errorf("notification-limit must be > 0")
	}
	if c.PowerCutWindow <= 0 {
		return fmt.Errorf("power-cut-window must be > 0")
	}
	if c.DoorHeldWindow <= 0 {
		return fmt.Errorf("door-held-window must be > 0")
	}
	if c.EmailTo != "" && c.EmailFrom == "" {
		return fmt.Errorf("email-from cannot be empty when email-to is set")
	}
	return nil
}

// EmailRecipients splits the comma-separated recipient list.
func (c *Config) EmailRecipients() []string {
	if c.EmailTo == "" {
		return nil
	}
	parts := strings.Split(c.EmailTo, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// GetEnvOrDefault returns the environment variable value or a default if not set.
func GetEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// MaskDSN masks sensitive information in a DSN for logging.
func MaskDSN(dsn string) string {
	if len(dsn) > 50 {
		return dsn[:20] + "***" + dsn[len(dsn)-20:]
	}
	return "***"
}
