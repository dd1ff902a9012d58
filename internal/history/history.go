// Package history keeps a durable log of raised alerts in PostgreSQL.
// The engine runs fine without it: when no DSN is configured the log is
// simply skipped, and write failures never block alerting.
//
// Expected schema:
//
//	CREATE TABLE alerts (
//	    alert_id     TEXT PRIMARY KEY,
//	    location_key TEXT NOT NULL,
//	    message      TEXT NOT NULL,
//	    severity     TEXT NOT NULL,
//	    created_at   TIMESTAMPTZ NOT NULL,
//	    acknowledged BOOLEAN NOT NULL DEFAULT FALSE
//	);
package history

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/lib/pq"

	"opswatch/internal/event"
)

// DB wraps a database connection and provides alert log operations.
type DB struct {
	conn *sql.DB
}

// NewDB creates a new database connection using the provided DSN.
func NewDB(dsn string) (*DB, error) {
	conn, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	slog.Info("Successfully connected to PostgreSQL database")
	return &DB{conn: conn}, nil
}

// NewDBWithConn wraps an existing connection, used by tests.
func NewDBWithConn(conn *sql.DB) *DB {
	return &DB{conn: conn}
}

// Close closes the database connection.
func (db *DB) Close() error {
	if db.conn != nil {
		slog.Info("Closing database connection")
		return db.conn.Close()
	}
	return nil
}

// InsertAlertIdempotent logs a raised alert. Uses INSERT ... ON CONFLICT DO
// NOTHING so redelivered alerts never duplicate rows. Returns true if a new
// row was inserted.
func (db *DB) InsertAlertIdempotent(ctx context.Context, alert event.Alert) (bool, error) {
	query := `
		INSERT INTO alerts (alert_id, location_key, message, severity, created_at, acknowledged)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (alert_id) DO NOTHING
		RETURNING alert_id
	`

	var id string
	err := db.conn.QueryRowContext(ctx, query,
		alert.ID,
		alert.LocationKey,
		alert.Message,
		string(alert.Severity),
		alert.CreatedAt,
		alert.Acknowledged,
	).Scan(&id)

	if err != nil {
		if err == sql.ErrNoRows {
			slog.Debug("Alert already logged, skipping", "alert_id", alert.ID)
			return false, nil
		}
		return false, fmt.Errorf("failed to insert alert: %w", err)
	}

	slog.Info("Logged alert", "alert_id", id, "location_key", alert.LocationKey)
	return true, nil
}

// MarkAcknowledged records an operator acknowledgement in the log.
// Returns true if a row was updated.
func (db *DB) MarkAcknowledged(ctx context.Context, alertID string) (bool, error) {
	query := `UPDATE alerts SET acknowledged = TRUE WHERE alert_id = $1`

	res, err := db.conn.ExecContext(ctx, query, alertID)
	if err != nil {
		return false, fmt.Errorf("failed to mark alert acknowledged: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return rows > 0, nil
}
