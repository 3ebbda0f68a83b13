package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/fidde/codesnip/internal/analytics"
	"github.com/fidde/codesnip/internal/api"
	"github.com/fidde/codesnip/internal/auth"
	"github.com/fidde/codesnip/internal/config"
	"github.com/fidde/codesnip/internal/grpcapi"
	"github.com/fidde/codesnip/internal/snippets"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the REST API (and gRPC, when configured)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve(cmd.Context())
	},
}

func serve(ctx context.Context) error {
	logger.Info("starting codesnip", "version", Version)

	store, err := openStore()
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("error closing storage", "error", err)
		}
	}()

	languages, err := config.LanguagesOrDefault(cfg.LanguagesFile)
	if err != nil {
		return err
	}

	recorder := analytics.NewRecorder(openSink(ctx), logger)
	loadViewers(recorder.Viewers())

	authSvc := auth.NewService(store, auth.Config{
		BcryptCost: cfg.Auth.BcryptCost,
		SessionTTL: cfg.Auth.SessionTTL,
	}, logger)
	snippetSvc := snippets.NewService(store, languages, recorder, logger)

	backups, err := openBackups(store, recorder.Viewers())
	if err != nil {
		return err
	}

	apiServer := api.NewServer(api.Config{
		Addr:          cfg.Server.Addr,
		BaseURL:       cfg.Server.BaseURL,
		ReadTimeout:   cfg.Server.ReadTimeout,
		WriteTimeout:  cfg.Server.WriteTimeout,
		AdminToken:    cfg.Admin.Token,
		RateLimit:     cfg.Auth.RateLimit,
		RateBurst:     cfg.Auth.RateBurst,
		SessionTTL:    cfg.Auth.SessionTTL,
		SecureCookies: cfg.Auth.SecureCookies,
	}, snippetSvc, authSvc, backups, logger)

	var grpcServer *grpcapi.Server
	if cfg.GRPC.Addr != "" {
		grpcServer = grpcapi.NewServer(cfg.GRPC.Addr, snippetSvc, logger)
	}

	sweepCtx, stopSweeper := context.WithCancel(ctx)
	defer stopSweeper()
	go authSvc.RunSweeper(sweepCtx, cfg.Auth.SweepInterval)

	// Start servers in goroutines
	errChan := make(chan error, 2)

	go func() {
		logger.Info("starting REST API server", "addr", cfg.Server.Addr)
		if err := apiServer.Start(); err != nil {
			errChan <- fmt.Errorf("API server error: %w", err)
		}
	}()

	if grpcServer != nil {
		go func() {
			if err := grpcServer.Start(); err != nil {
				errChan <- fmt.Errorf("gRPC server error: %w", err)
			}
		}()
	}

	if cfg.Admin.Token == "" {
		logger.Info("admin endpoints disabled (admin.token not set)")
	}

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	var runErr error
	select {
	case runErr = <-errChan:
		logger.Error("server error", "error", runErr)
	case sig := <-sigChan:
		logger.Info("received signal, shutting down", "signal", sig.String())
	case <-ctx.Done():
	}

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	stopSweeper()
	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("error shutting down API server", "error", err)
	}
	if grpcServer != nil {
		if err := grpcServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("error shutting down gRPC server", "error", err)
		}
	}
	if err := recorder.Close(shutdownCtx); err != nil {
		logger.Error("error flushing analytics", "error", err)
	}
	if err := saveViewers(recorder.Viewers()); err != nil {
		logger.Error("error saving viewer sketches", "error", err)
	}

	logger.Info("shutdown complete")
	return runErr
}

// openSink connects the ClickHouse view sink when configured. Analytics are
// optional, so a failed connection falls back to discarding events.
func openSink(ctx context.Context) analytics.Sink {
	if cfg.Analytics.ClickHouseAddr == "" {
		return analytics.NopSink{}
	}

	chCfg := analytics.DefaultClickHouseConfig()
	chCfg.Addr = cfg.Analytics.ClickHouseAddr
	chCfg.Database = cfg.Analytics.ClickHouseDatabase
	chCfg.Username = cfg.Analytics.ClickHouseUsername
	chCfg.Password = cfg.Analytics.ClickHousePassword
	chCfg.BatchSize = cfg.Analytics.BatchSize
	chCfg.FlushInterval = cfg.Analytics.FlushInterval

	sink, err := analytics.NewClickHouseSink(ctx, chCfg, logger)
	if err != nil {
		logger.Warn("ClickHouse unavailable, view events will not be exported", "addr", chCfg.Addr, "error", err)
		return analytics.NopSink{}
	}
	logger.Info("exporting view events to ClickHouse", "addr", chCfg.Addr, "database", chCfg.Database)
	return sink
}
