package main

import (
	"os"
	"time"

	"abonnements/internal/amqp"
	"abonnements/internal/cli"
	applog "abonnements/internal/log"
	"abonnements/internal/services"
)

const (
	connectAttempts = 5
	stopTimeout     = 30 * time.Second
)

func main() {
	cli.LoadEnvFile()

	cfg, err := cli.LoadAndValidateConfig()
	if err != nil {
		cli.SetupLogger("info", applog.ComponentReminder).Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}
	logger := cli.SetupLogger(cfg.LogLevel, applog.ComponentReminder)
	logger.Info("Starting abonnements-reminder")

	ctx, stop := cli.GracefulShutdown()
	defer stop()

	// The reminder never mutates the ledger, so the store runtime does not
	// need its own publisher.
	storeCfg := *cfg
	storeCfg.AMQPURL = ""
	rt, err := cli.NewRuntime(ctx, &storeCfg, logger.Logger)
	if err != nil {
		logger.Error("Failed to initialize ledger", "error", err, applog.FieldBackend, cfg.DataBackend)
		os.Exit(1)
	}
	defer rt.Close()

	var events services.EventPublisher
	if cfg.AMQPURL != "" {
		client, err := amqp.Connect(ctx, cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, connectAttempts)
		if err != nil {
			logger.Error("Failed to connect to AMQP broker", "error", err)
			os.Exit(1)
		}
		defer client.Close()
		events = client
		logger.Info("AMQP client initialized", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
	} else {
		logger.Warn("AMQP disabled - due-soon subscriptions will only be logged")
	}

	processor := services.NewReminderProcessor(rt.Ledger, events, cfg.ReminderInterval)
	if err := processor.Start(ctx); err != nil {
		logger.Error("Failed to start reminder processor", "error", err)
		os.Exit(1)
	}
	logger.Info("Reminder processor configured",
		"interval", cfg.ReminderInterval,
		"due_soon_days", cfg.DueSoonDays,
		applog.FieldBackend, cfg.DataBackend)

	<-ctx.Done()
	logger.Info("Shutdown signal received")

	stopCtx, cancel := cli.ShutdownContext(stopTimeout)
	defer cancel()
	if err := processor.Stop(stopCtx); err != nil {
		logger.Error("Reminder processor did not stop cleanly", "error", err)
	}
	logger.Info("Reminder stopped")
}
