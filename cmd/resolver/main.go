// Package main is the entry point of the order resolver.
//
// The resolver LISTENs on new_order and new_bom_entry, turns every new order
// into a numbered BOM batch and serves ops endpoints (health, metrics, log
// level) over HTTP.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"shopfloor.io/mes/internal/app"
	"shopfloor.io/mes/internal/config"
	"shopfloor.io/mes/internal/events"
	"shopfloor.io/mes/internal/pkg/logger"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if err := logger.Init(cfg.Log.Level, cfg.Log.Format); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync()

	logger.Info("Starting order resolver",
		zap.Int("port", cfg.Server.Port),
		zap.String("log_level", cfg.Log.Level),
		zap.String("path_strategy", cfg.Resolver.PathStrategy),
		zap.Bool("strict_mode", cfg.Resolver.StrictMode),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	application, err := app.Bootstrap(ctx, cfg)
	if err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}
	defer application.Shutdown()

	if err := application.Start(ctx); err != nil {
		return fmt.Errorf("start background services: %w", err)
	}

	// Before LISTEN: anything announced earlier and never handled is lost.
	if err := application.Infra.Store.MarkListening(ctx); err != nil {
		return fmt.Errorf("mark listening: %w", err)
	}
	listener, err := events.Listen(ctx, cfg.Database.DSN(), events.Subscribed...)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	defer listener.Close(context.Background())

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      application.Router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	httpErr := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			httpErr <- err
		}
		close(httpErr)
	}()
	logger.Info("Ops server started", zap.String("addr", srv.Addr))

	loopErr := make(chan error, 1)
	go func() {
		loopErr <- application.Resolver.Run(ctx, listener)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	var runErr error
	select {
	case <-quit:
		logger.Info("Shutdown signal received")
	case err := <-httpErr:
		if err != nil {
			runErr = fmt.Errorf("server error: %w", err)
		}
	case err := <-loopErr:
		if err != nil {
			runErr = fmt.Errorf("resolution loop: %w", err)
		}
	}

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	logger.Info("Shutting down ops server...")
	if err := srv.Shutdown(shutdownCtx); err != nil && runErr == nil {
		runErr = fmt.Errorf("server shutdown: %w", err)
	}

	if runErr == nil {
		logger.Info("Resolver stopped gracefully")
	}
	return runErr
}
