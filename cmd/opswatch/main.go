package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"opswatch/internal/config"
	"opswatch/internal/correlator"
	"opswatch/internal/engine"
	"opswatch/internal/event"
	"opswatch/internal/history"
	"opswatch/internal/metrics"
	"opswatch/internal/notify"
	"opswatch/internal/prefs"
	"opswatch/internal/source"
	"opswatch/internal/surface"
)

func main() {
	// Parse command-line flags with environment variable fallbacks
	cfg := &config.Config{}
	flag.StringVar(&cfg.KafkaBrokers, "kafka-brokers", config.GetEnvOrDefault("KAFKA_BROKERS", "localhost:9092"), "Kafka broker addresses (comma-separated)")
	flag.StringVar(&cfg.TopicPrefix, "topic-prefix", config.GetEnvOrDefault("TOPIC_PREFIX", "events."), "Topic prefix for per-source event topics")
	flag.StringVar(&cfg.ConsumerGroupID, "consumer-group-id", config.GetEnvOrDefault("CONSUMER_GROUP_ID", "opswatch-group"), "Kafka consumer group ID")
	flag.StringVar(&cfg.RedisAddr, "redis-addr", config.GetEnvOrDefault("REDIS_ADDR", "localhost:6379"), "Redis server address (empty disables preferences and metrics reporting)")
	flag.StringVar(&cfg.PostgresDSN, "postgres-dsn", config.GetEnvOrDefault("POSTGRES_DSN", ""), "PostgreSQL connection string for the alert log (empty disables history)")
	flag.StringVar(&cfg.WebhookURL, "webhook-url", config.GetEnvOrDefault("WEBHOOK_URL", ""), "Webhook URL for notification side effects (empty disables)")
	flag.StringVar(&cfg.EmailFrom, "email-from", config.GetEnvOrDefault("EMAIL_FROM", ""), "From address for email notifications")
	flag.StringVar(&cfg.EmailTo, "email-to", config.GetEnvOrDefault("EMAIL_TO", ""), "Recipient addresses for email notifications (comma-separated, empty disables)")
	flag.IntVar(&cfg.NotificationLimit, "notification-limit", 10, "Number of recent notifications kept in the buffer")
	flag.DurationVar(&cfg.PowerCutWindow, "power-cut-window", time.Hour, "Escalation window for unresolved power cuts")
	flag.DurationVar(&cfg.DoorHeldWindow, "door-held-window", 30*time.Minute, "Escalation window for doors held open")
	flag.Parse()

	// Set up structured logging
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	slog.Info("Starting opswatch engine",
		"kafka_brokers", cfg.KafkaBrokers,
		"topic_prefix", cfg.TopicPrefix,
		"consumer_group_id", cfg.ConsumerGroupID,
		"redis_addr", cfg.RedisAddr,
		"postgres_dsn", config.MaskDSN(cfg.PostgresDSN),
		"notification_limit", cfg.NotificationLimit,
	)

	if err := cfg.Validate(); err != nil {
		slog.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		slog.Info("Received shutdown signal, shutting down gracefully...")
		cancel()
	}()

	// Redis backs preferences and metrics reporting; both degrade to
	// defaults when it is absent.
	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := client.Ping(ctx).Err(); err != nil {
			slog.Warn("Redis unavailable, preferences and metrics reporting disabled",
				"addr", cfg.RedisAddr,
				"error", err,
			)
			client.Close()
		} else {
			redisClient = client
			defer redisClient.Close()
			slog.Info("Successfully connected to Redis", "addr", cfg.RedisAddr)
		}
	}

	prefStore := prefs.NewStore(redisClient)
	preferences := prefStore.LoadPreferences(ctx)
	dismissed := prefStore.LoadDismissed(ctx)

	// Optional durable alert log.
	var alertLog engine.AlertLog
	if cfg.PostgresDSN != "" {
		db, err := history.NewDB(cfg.PostgresDSN)
		if err != nil {
			slog.Warn("Alert history unavailable, continuing without it", "error", err)
		} else {
			defer db.Close()
			alertLog = db
		}
	}

	// Side-effect sinks.
	var sinks []surface.Notifier
	if cfg.WebhookURL != "" {
		sink, err := notify.NewWebhookSink(cfg.WebhookURL)
		if err != nil {
			slog.Error("Invalid webhook configuration", "error", err)
			os.Exit(1)
		}
		sinks = append(sinks, sink)
	}
	if recipients := cfg.EmailRecipients(); len(recipients) > 0 {
		sinks = append(sinks, notify.NewEmailSink(
			cfg.EmailFrom,
			recipients,
			notify.NewResendProvider(),
			notify.NewSESProvider(),
		))
	}

	// One Kafka subscription per source.
	adapters := make([]source.Adapter, 0, len(event.Sources))
	for _, src := range event.Sources {
		adapter, err := source.NewKafkaAdapter(src, cfg.KafkaBrokers, cfg.TopicPrefix+string(src), cfg.ConsumerGroupID)
		if err != nil {
			slog.Error("Failed to create source adapter", "source", src, "error", err)
			os.Exit(1)
		}
		adapters = append(adapters, adapter)
	}

	// Metrics collector.
	collector := metrics.NewCollector(redisClient)
	collector.Start(ctx)
	defer collector.Stop()

	eng := engine.New(engine.Options{
		Pairings: []correlator.Pairing{
			{TriggerKind: "power-cut", ResolvingKind: "power-restored", Window: cfg.PowerCutWindow},
			{TriggerKind: "door-held-open", ResolvingKind: "door-closed", Window: cfg.DoorHeldWindow},
		},
		Surface:    surface.New(cfg.NotificationLimit, preferences, dismissed, prefStore, sinks...),
		Metrics:    collector,
		History:    alertLog,
		PrefWriter: prefStore,
		Adapters:   adapters,
	})

	// Sample correlator totals into the metrics snapshot periodically.
	go func() {
		ticker := time.NewTicker(metrics.DefaultReportInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				eng.ReportTimerCounts()
			}
		}
	}()

	if err := eng.Run(ctx); err != nil {
		slog.Error("Engine failed", "error", err)
		os.Exit(1)
	}

	slog.Info("opswatch stopped")
}
