package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"abonnements/internal/cli"
	"abonnements/internal/core"
	apphttp "abonnements/internal/http"
	applog "abonnements/internal/log"
)

const shutdownTimeout = 30 * time.Second

func main() {
	cli.LoadEnvFile()

	cfg, err := cli.LoadAndValidateConfig()
	if err != nil {
		cli.SetupLogger("info", applog.ComponentApp).Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}
	logger := cli.SetupLogger(cfg.LogLevel, applog.ComponentApp)

	ctx, stop := cli.GracefulShutdown()
	defer stop()

	rt, err := cli.NewRuntime(ctx, cfg, logger.Logger)
	if err != nil {
		logger.Error("Failed to initialize ledger", "error", err, applog.FieldBackend, cfg.DataBackend)
		os.Exit(1)
	}
	defer func() {
		if err := rt.Close(); err != nil {
			logger.Error("Failed to release resources", "error", err)
		}
	}()

	srv := apphttp.NewServer(":"+cfg.Port, rt.Ledger, apphttp.Options{
		Money:        core.NewMoney(cfg.Currency, cfg.Locale),
		StoreTimeout: cfg.StoreTimeout,
		Logger:       logger.WithComponent(applog.ComponentHTTP),
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting abonnements server",
			"port", cfg.Port,
			applog.FieldBackend, cfg.DataBackend,
			"events", rt.Events != nil)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down server")
		shutdownCtx, cancel := cli.ShutdownContext(shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}
