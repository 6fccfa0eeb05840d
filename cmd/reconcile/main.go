// Команда reconcile выполняет разовую сверку поискового индекса с БД:
// полный проход или одну камеру (-id).
package main

import (
	"CamKeeper/internal/bootstrap"
	"CamKeeper/internal/config"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
)

func main() {
	id := flag.Int64("id", 0, "сверить только камеру с этим id")
	cfg := config.NewConfig()

	sugar, syncLogger, err := bootstrap.NewLogger(cfg.LogLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	code := run(ctx, cfg, sugar, *id)
	cancel()
	syncLogger()
	os.Exit(code)
}

func run(ctx context.Context, cfg *config.Config, sugar *zap.SugaredLogger, id int64) int {
	app, closeDB, err := bootstrap.Open(ctx, cfg, sugar)
	if err != nil {
		sugar.Errorw("failed to initialize dependencies", "error", err)
		return 1
	}
	defer func() { _ = closeDB() }()

	if id > 0 {
		action, err := app.Cameras.Reconcile(ctx, id)
		if err != nil {
			sugar.Errorw("reconcile failed", "camera_id", id, "error", err)
			return 1
		}
		fmt.Printf("camera %d: %s\n", id, action)
		return 0
	}

	stats, err := app.Cameras.Sweep(ctx)
	fmt.Printf("rows=%d indexed=%d removed=%d orphans=%d failed=%d\n",
		stats.Rows, stats.Indexed, stats.Removed, stats.Orphans, stats.Failed)
	if err != nil {
		sugar.Errorw("sweep interrupted", "error", err)
		return 1
	}
	if stats.Failed > 0 {
		return 1
	}
	return 0
}
