// Package main is the entry point of the UDP order intake.
//
// Usage: intake [addr]. The optional argument overrides intake.addr.
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
	"shopfloor.io/mes/internal/pkg/logger"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if len(args) > 0 {
		cfg.Intake.Addr = args[0]
	}

	if err := logger.Init(cfg.Log.Level, cfg.Log.Format); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync()

	logger.Info("Starting order intake",
		zap.String("addr", cfg.Intake.Addr),
		zap.Int("buffer_size", cfg.Intake.BufferSize),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	application, err := app.BootstrapIntake(ctx, cfg)
	if err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}
	defer application.Shutdown()

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

	udpErr := make(chan error, 1)
	go func() {
		udpErr <- application.Intake.ListenAndServe(ctx)
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
	case err := <-udpErr:
		if err != nil {
			runErr = fmt.Errorf("intake: %w", err)
		}
	}

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && runErr == nil {
		runErr = fmt.Errorf("server shutdown: %w", err)
	}
	return runErr
}
