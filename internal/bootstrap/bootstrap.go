// Package bootstrap собирает зависимости сервера и утилиты сверки из конфигурации.
package bootstrap

import (
	"CamKeeper/internal/config"
	"CamKeeper/internal/repo"
	"CamKeeper/internal/search"
	"CamKeeper/internal/service"
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// App — собранные сервисы.
type App struct {
	DB      *gorm.DB
	Index   search.Index
	Users   *service.UserService
	Cameras *service.CameraService
}

// NewLogger создаёт development-логгер zap с уровнем из конфигурации.
// Возвращаемую функцию нужно вызвать перед выходом, чтобы сбросить буфер.
func NewLogger(level string) (*zap.SugaredLogger, func(), error) {
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, nil, fmt.Errorf("log level %q: %w", level, err)
	}
	zcfg := zap.NewDevelopmentConfig()
	zcfg.Level = lvl
	logger, err := zcfg.Build()
	if err != nil {
		return nil, nil, err
	}
	sugar := logger.Sugar()
	return sugar, func() { _ = logger.Sync() }, nil
}

// ensureRetryInterval — период повторных попыток создать индекс, если
// Elasticsearch был недоступен при старте.
var ensureRetryInterval = 10 * time.Second

type indexEnsurer interface {
	EnsureIndex(ctx context.Context) error
}

// NewIndex выбирает поисковый бэкенд. Сетевых запросов не делает.
func NewIndex(cfg *config.Config) (search.Index, error) {
	if cfg.SearchBackend == config.SearchMemory {
		return search.NewMemoryIndex(), nil
	}
	return search.NewElasticIndex(search.ElasticConfig{
		Addresses: cfg.ElasticURLs,
		Username:  cfg.ElasticUsername,
		Password:  cfg.ElasticPassword,
		Index:     cfg.ElasticIndex,
		Refresh:   cfg.ElasticRefresh,
	})
}

// OpenIndex создаёт бэкенд и, для Elasticsearch, сам индекс, если его ещё нет.
func OpenIndex(ctx context.Context, cfg *config.Config) (search.Index, error) {
	idx, err := NewIndex(cfg)
	if err != nil {
		return nil, err
	}
	if err := ensureIndex(ctx, cfg, idx); err != nil {
		return nil, err
	}
	return idx, nil
}

func ensureIndex(ctx context.Context, cfg *config.Config, idx search.Index) error {
	ens, ok := idx.(indexEnsurer)
	if !ok {
		return nil
	}
	timeout := cfg.IndexTimeout
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	ictx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := ens.EnsureIndex(ictx); err != nil {
		return fmt.Errorf("ensure index %q: %w", cfg.ElasticIndex, err)
	}
	return nil
}

// keepEnsuring повторяет ensureIndex, пока индекс не появится или ctx не отменят.
func keepEnsuring(ctx context.Context, cfg *config.Config, idx search.Index, logger *zap.SugaredLogger, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := ensureIndex(ctx, cfg, idx); err != nil {
				logger.Debugw("search index still not ready", "error", err)
				continue
			}
			logger.Infow("search index ready", "elastic_index", cfg.ElasticIndex)
			return
		}
	}
}

// Open открывает БД (с миграциями) и индекс, собирает сервисы и
// возвращает (app, cleanup, error). cleanup закрывает соединение с БД.
// Фоновые попытки создать индекс живут, пока не отменён ctx.
func Open(ctx context.Context, cfg *config.Config, logger *zap.SugaredLogger) (*App, func() error, error) {
	db, err := repo.InitDB(cfg.DatabaseDSN)
	if err != nil {
		return nil, nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() error { return sqlDB.Close() }

	idx, err := NewIndex(cfg)
	if err != nil {
		_ = cleanup()
		return nil, nil, err
	}
	// недоступный индекс не мешает старту: записи деградируют, сверка потом догонит
	if err := ensureIndex(ctx, cfg, idx); err != nil {
		logger.Warnw("search index not ready, retrying in background", "error", err)
		go keepEnsuring(ctx, cfg, idx, logger, ensureRetryInterval)
	}

	users := service.NewUserService(repo.NewUserRepository(db), cfg.AdminLogins...)
	cameras := service.NewCameraService(repo.NewCameraRepository(db), idx, logger, service.Options{
		StoreTimeout: cfg.StoreTimeout,
		IndexTimeout: cfg.IndexTimeout,
		SweepBatch:   cfg.ReconcileBatch,
		SweepWorkers: cfg.ReconcileWorkers,
	})

	logger.Infow("dependencies ready",
		"search_backend", cfg.SearchBackend,
		"elastic_index", cfg.ElasticIndex,
		"store_timeout", cfg.StoreTimeout,
		"index_timeout", cfg.IndexTimeout,
	)
	return &App{DB: db, Index: idx, Users: users, Cameras: cameras}, cleanup, nil
}
