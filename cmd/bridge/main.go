package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"nearbridge/internal/alert"
	"nearbridge/internal/config"
	"nearbridge/internal/model"
	"nearbridge/internal/pagerduty"
	"nearbridge/internal/router"
	"nearbridge/internal/storage"
	"nearbridge/internal/storage/postgres"
	"nearbridge/internal/stream"
)

func main() {
	root := &cobra.Command{
		Use:          "bridge",
		Short:        "NEAR action to PagerDuty alert bridge",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run the bridge",
		RunE:  runBridge,
	}

	runCmd.Flags().String("ws-url", config.DefaultStreamURL, "action stream WebSocket URL")
	runCmd.Flags().String("events-url", config.DefaultEventsURL, "PagerDuty Events API URL")
	runCmd.Flags().String("routing-key", "", "PagerDuty routing key")
	runCmd.Flags().Duration("reconnect-delay", 5*time.Second, "delay between reconnect attempts")
	runCmd.Flags().Int("delivery-workers", 4, "concurrent alert deliveries")
	runCmd.Flags().Int("delivery-queue-size", 64, "pending delivery queue size")
	runCmd.Flags().Int("delivery-max-retries", 4, "delivery retry attempts after the first")
	runCmd.Flags().Duration("delivery-retry-backoff", 500*time.Millisecond, "initial delivery retry backoff")
	runCmd.Flags().Duration("shutdown-grace", 10*time.Second, "grace period for in-flight deliveries")
	runCmd.Flags().String("journal", "./data/deliveries.jsonl", "delivery journal JSONL path")
	runCmd.Flags().String("pg-dsn", "", "Postgres DSN for the delivery journal")
	runCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(runCmd)

	checkCmd := &cobra.Command{
		Use:   "check",
		Short: "Validate the configuration and print the subscription set",
		RunE:  runCheck,
	}

	checkCmd.Flags().String("routing-key", "", "PagerDuty routing key")

	root.AddCommand(checkCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func runBridge(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	subs, err := router.CompileAll(cfg.Subscriptions)
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	subRouter := router.New(subs)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var journal storage.Journal
	if cfg.PostgresDSN != "" {
		pgJournal, err := postgres.NewJournal(ctx, cfg.PostgresDSN)
		if err != nil {
			return fmt.Errorf("connect journal db: %w", err)
		}
		defer pgJournal.Close()
		journal = pgJournal
	} else {
		journal = storage.NewJsonlJournal(cfg.JournalPath)
	}

	client := pagerduty.NewClient(cfg.RoutingKey, pagerduty.Options{
		EventsURL:  cfg.EventsURL,
		MaxRetries: cfg.DeliveryMaxRetries,
		Backoff:    cfg.DeliveryRetryBackoff,
	}, logger)

	builder := alert.NewBuilder(cfg.RoutingKey)
	dispatcher := alert.NewDispatcher(client, journal, cfg.DeliveryWorkers, cfg.DeliveryQueueSize, logger)
	dispatcher.Start()

	consumer := stream.NewConsumer(stream.Config{
		URL:            cfg.StreamURL,
		ReconnectDelay: cfg.ReconnectDelay,
		Accounts:       subRouter.Accounts(),
	}, stream.NewWebSocketTransport(), func(record model.Record) {
		for _, match := range subRouter.Route(record) {
			built := builder.Build(match.Subscription, match.Record)
			task := alert.Task{
				Alert:        built,
				Subscription: match.Subscription.Name,
				AccountID:    match.Record.AccountID(),
				TxHash:       match.Record.TxHash(),
			}
			if err := dispatcher.Enqueue(ctx, task); err != nil {
				logger.Warn("enqueue cancelled", zap.Error(err))
				return
			}
		}
	}, logger)

	logger.Info("bridge start",
		zap.String("stream_url", cfg.StreamURL),
		zap.Int("subscriptions", len(subs)),
		zap.Int("accounts", len(subRouter.Accounts())),
		zap.Duration("reconnect_delay", cfg.ReconnectDelay),
		zap.Int("delivery_workers", cfg.DeliveryWorkers),
	)

	runErr := consumer.Run(ctx)

	logger.Info("draining deliveries", zap.Duration("grace", cfg.ShutdownGrace))
	dispatcher.Shutdown(cfg.ShutdownGrace)

	return runErr
}

func runCheck(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	subs, err := router.CompileAll(cfg.Subscriptions)
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	fmt.Printf("configuration ok: %d subscription(s)\n", len(subs))
	for _, sub := range subs {
		fmt.Printf("  %-32s severity=%-8s account=%s\n", sub.Name, sub.Severity, sub.AccountID)
	}
	return nil
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}
