// Package worker содержит фоновые задачи сервера.
package worker

import (
	"CamKeeper/internal/service"
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Sweeper — то, что умеет полностью сверить индекс с БД.
type Sweeper interface {
	Sweep(ctx context.Context) (service.SweepStats, error)
}

// SweepLoop периодически запускает полную сверку индекса.
// Проходы не перекрываются: следующий тик ждёт окончания текущего.
type SweepLoop struct {
	sweeper  Sweeper
	interval time.Duration
	logger   *zap.SugaredLogger

	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewSweepLoop создаёт цикл сверки. interval должен быть > 0.
func NewSweepLoop(s Sweeper, interval time.Duration, logger *zap.SugaredLogger) *SweepLoop {
	return &SweepLoop{
		sweeper:  s,
		interval: interval,
		logger:   logger,
		done:     make(chan struct{}),
	}
}

// Start запускает цикл в отдельной горутине.
func (l *SweepLoop) Start(ctx context.Context) {
	l.wg.Add(1)
	go l.run(ctx)
}

// Stop останавливает цикл и ждёт завершения текущего прохода. Повторный вызов безопасен.
func (l *SweepLoop) Stop() {
	l.stopOnce.Do(func() {
		close(l.done)
		l.wg.Wait()
	})
}

func (l *SweepLoop) run(ctx context.Context) {
	defer l.wg.Done()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-l.done:
			cancel()
		case <-ctx.Done():
		}
	}()

	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.sweepOnce(ctx)
		}
	}
}

func (l *SweepLoop) sweepOnce(ctx context.Context) {
	start := time.Now()
	stats, err := l.sweeper.Sweep(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		l.logger.Warnw("periodic sweep failed", "error", err, "failed", stats.Failed)
		return
	}
	l.logger.Debugw("periodic sweep done", "duration", time.Since(start), "orphans", stats.Orphans)
}
