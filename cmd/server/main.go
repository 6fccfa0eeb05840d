package main

import (
	"CamKeeper/internal/bootstrap"
	"CamKeeper/internal/config"
	"CamKeeper/internal/handlers"
	"CamKeeper/internal/middleware"
	"CamKeeper/internal/worker"
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg := config.NewConfig()

	// регистратор zap с уровнем из конфигурации
	sugar, syncLogger, err := bootstrap.NewLogger(cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer syncLogger()
	middleware.SetLogger(sugar) // передаём логгер в middleware

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	app, closeDB, err := bootstrap.Open(ctx, cfg, sugar)
	if err != nil {
		sugar.Fatalw("failed to initialize dependencies", "error", err)
	}
	defer func() {
		if err := closeDB(); err != nil {
			sugar.Errorw("failed to close database", "error", err)
		}
	}()

	if cfg.ReconcileInterval > 0 {
		loop := worker.NewSweepLoop(app.Cameras, cfg.ReconcileInterval, sugar)
		loop.Start(ctx)
		defer loop.Stop()
	}

	h := handlers.NewHandler(app.Users, app.Cameras, sugar, cfg)
	srv := &http.Server{
		Addr:              cfg.BaseURL,
		Handler:           h.Router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	sugar.Infow("Starting server",
		"addr", cfg.BaseURL,
		"EnableHTTPS", cfg.EnableHTTPS,
		"SearchBackend", cfg.SearchBackend,
		"ReconcileInterval", cfg.ReconcileInterval,
	)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			sugar.Errorw("Server failed", "error", err)
		}
	case <-ctx.Done():
		sugar.Infow("Shutting down")
		sctx, scancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer scancel()
		if err := srv.Shutdown(sctx); err != nil {
			sugar.Errorw("Graceful shutdown failed", "error", err)
		}
	}
}
