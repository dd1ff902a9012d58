// Package metrics collects engine counters and periodically reports them to
// Redis so an external dashboard can read them. Reporting is best-effort: a
// nil Redis client turns the collector into in-memory counters only.
package metrics

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// MetricsKey is the Redis key where engine metrics are stored.
	MetricsKey = "metrics:opswatch"
	// MetricsTTL is how long metrics stay in Redis if not refreshed.
	MetricsTTL = 2 * time.Minute
	// DefaultReportInterval is the default interval for writing metrics to Redis.
	DefaultReportInterval = 30 * time.Second
)

// EngineMetrics is the snapshot shape written to Redis.
type EngineMetrics struct {
	StartedAt   time.Time `json:"started_at"`
	LastUpdated time.Time `json:"last_updated"`

	EventsReceived        uint64 `json:"events_received"`
	EventsSuppressed      uint64 `json:"events_suppressed"` // backlog filtered by novelty
	NotificationsRecorded uint64 `json:"notifications_recorded"`
	AlertsRaised          uint64 `json:"alerts_raised"`
	AlertsResolved        uint64 `json:"alerts_resolved"`
	TimersArmed           uint64 `json:"timers_armed"`
	TimersCancelled       uint64 `json:"timers_cancelled"`
	TimersFired           uint64 `json:"timers_fired"`
}

// Collector accumulates counters and reports them to Redis.
type Collector struct {
	redis          *redis.Client
	startedAt      time.Time
	reportInterval time.Duration

	eventsReceived        atomic.Uint64
	eventsSuppressed      atomic.Uint64
	notificationsRecorded atomic.Uint64
	alertsRaised          atomic.Uint64
	alertsResolved        atomic.Uint64
	timersArmed           atomic.Uint64
	timersCancelled       atomic.Uint64
	timersFired           atomic.Uint64

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewCollector creates a collector. redisClient may be nil.
func NewCollector(redisClient *redis.Client) *Collector {
	return &Collector{
		redis:          redisClient,
		startedAt:      time.Now().UTC(),
		reportInterval: DefaultReportInterval,
		stopCh:         make(chan struct{}),
	}
}

// SetReportInterval sets the interval for writing metrics to Redis.
func (c *Collector) SetReportInterval(interval time.Duration) {
	c.reportInterval = interval
}

// Start begins the periodic metrics reporting.
func (c *Collector) Start(ctx context.Context) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		ticker := time.NewTicker(c.reportInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				c.writeMetrics(context.Background()) // final write
				return
			case <-c.stopCh:
				c.writeMetrics(context.Background())
				return
			case <-ticker.C:
				c.writeMetrics(ctx)
			}
		}
	}()
}

// Stop stops the metrics reporting.
func (c *Collector) Stop() {
	c.stopOnce.Do(func() { close(c.stopCh) })
	c.wg.Wait()
}

// RecordEvent increments the received-events counter.
func (c *Collector) RecordEvent() { c.eventsReceived.Add(1) }

// RecordSuppressed increments the backlog-suppressed counter.
func (c *Collector) RecordSuppressed() { c.eventsSuppressed.Add(1) }

// RecordNotification increments the notifications counter.
func (c *Collector) RecordNotification() { c.notificationsRecorded.Add(1) }

// RecordAlertRaised increments the raised-alerts counter.
func (c *Collector) RecordAlertRaised() { c.alertsRaised.Add(1) }

// RecordAlertResolved increments the resolved-alerts counter.
func (c *Collector) RecordAlertResolved() { c.alertsResolved.Add(1) }

// SetTimerCounts overwrites the timer lifecycle totals, sampled from the
// correlator at report time.
func (c *Collector) SetTimerCounts(armed, cancelled, fired uint64) {
	c.timersArmed.Store(armed)
	c.timersCancelled.Store(cancelled)
	c.timersFired.Store(fired)
}

// Snapshot returns the current counters without writing to Redis.
func (c *Collector) Snapshot() *EngineMetrics {
	return &EngineMetrics{
		StartedAt:             c.startedAt,
		LastUpdated:           time.Now().UTC(),
		EventsReceived:        c.eventsReceived.Load(),
		EventsSuppressed:      c.eventsSuppressed.Load(),
		NotificationsRecorded: c.notificationsRecorded.Load(),
		AlertsRaised:          c.alertsRaised.Load(),
		AlertsResolved:        c.alertsResolved.Load(),
		TimersArmed:           c.timersArmed.Load(),
		TimersCancelled:       c.timersCancelled.Load(),
		TimersFired:           c.timersFired.Load(),
	}
}

// writeMetrics writes current metrics to Redis.
func (c *Collector) writeMetrics(ctx context.Context) {
	if c.redis == nil {
		return
	}

	data, err := json.Marshal(c.Snapshot())
	if err != nil {
		slog.Error("Failed to marshal metrics", "error", err)
		return
	}

	if err := c.redis.Set(ctx, MetricsKey, data, MetricsTTL).Err(); err != nil {
		slog.Error("Failed to write metrics to Redis", "error", err)
		return
	}

	slog.Debug("Metrics written to Redis", "key", MetricsKey)
}
