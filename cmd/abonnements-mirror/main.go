package main

import (
	"context"
	"errors"
	"os"
	"time"

	"abonnements/internal/amqp"
	"abonnements/internal/backend"
	"abonnements/internal/cli"
	applog "abonnements/internal/log"
	"abonnements/internal/worker"
)

const (
	connectAttempts = 5
	restartDelay    = 5 * time.Second
)

func main() {
	cli.LoadEnvFile()

	cfg, err := cli.LoadAndValidateConfig()
	if err != nil {
		cli.SetupLogger("info", applog.ComponentApp).Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}
	logger := cli.SetupLogger(cfg.LogLevel, applog.ComponentMirror)
	if cfg.MirrorBackend == "" {
		logger.Error("MIRROR_BACKEND is not set, nothing to mirror")
		os.Exit(1)
	}
	logger.Info("Starting abonnements-mirror",
		applog.FieldBackend, cfg.DataBackend,
		"mirror_backend", cfg.MirrorBackend)

	ctx, stop := cli.GracefulShutdown()
	defer stop()

	// The mirror only reads the ledger, so it does not publish events.
	ledgerCfg := *cfg
	ledgerCfg.AMQPURL = ""
	rt, err := cli.NewRuntime(ctx, &ledgerCfg, logger.Logger)
	if err != nil {
		logger.Error("Failed to initialize ledger", "error", err)
		os.Exit(1)
	}
	defer rt.Close()

	mcfg, err := backend.MirrorFromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid mirror configuration", "error", err)
		os.Exit(1)
	}
	mirror, err := backend.NewFactory(logger.Logger).CreateBackend(ctx, mcfg)
	if err != nil {
		logger.Error("Failed to initialize mirror store", "error", err)
		os.Exit(1)
	}
	if mirror.Cleanup != nil {
		defer mirror.Cleanup()
	}

	w := worker.NewMirrorWorker(rt.Store, mirror.Store)

	syncCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	if _, err := w.StartupSync(syncCtx); err != nil {
		logger.Error("Startup sync failed", "error", err)
	}
	cancel()

	client, err := amqp.Connect(ctx, cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, connectAttempts)
	if err != nil {
		logger.Error("Failed to connect to AMQP broker", "error", err)
		os.Exit(1)
	}
	defer func() { client.Close() }()

	// Consume until shutdown; a dropped channel is re-dialed after a pause.
	for {
		err := client.ConsumeLedgerEvents(ctx, w.HandleEvent)
		if ctx.Err() != nil || errors.Is(err, context.Canceled) {
			break
		}
		logger.Error("Ledger event consumption stopped, reconnecting", "error", err, "delay", restartDelay)
		select {
		case <-ctx.Done():
		case <-time.After(restartDelay):
		}
		if ctx.Err() != nil {
			break
		}
		client.Close()
		if client, err = amqp.Connect(ctx, cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, connectAttempts); err != nil {
			logger.Error("Failed to reconnect to AMQP broker", "error", err)
			os.Exit(1)
		}
	}

	logger.Info("Mirror stopped")
}
