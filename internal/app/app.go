// Package app собирает компоненты StockScanner по config.Config:
// хранилище истории, блокировку, стадии и Runner.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/shaiso/StockScanner/internal/config"
	"github.com/shaiso/StockScanner/internal/domain"
	"github.com/shaiso/StockScanner/internal/engine"
	"github.com/shaiso/StockScanner/internal/lock"
	"github.com/shaiso/StockScanner/internal/pipeline"
	"github.com/shaiso/StockScanner/internal/repo"
	"github.com/shaiso/StockScanner/internal/stages"
	"github.com/shaiso/StockScanner/internal/trigger"
)

// Store — хранилище истории для Runner и API.
type Store interface {
	pipeline.Store
	GetRun(ctx context.Context, id uuid.UUID) (*domain.Run, error)
	ListRuns(ctx context.Context, filter repo.RunFilter) ([]domain.Run, error)
	ListStages(ctx context.Context, runID uuid.UUID) ([]domain.Stage, error)
}

// App — собранные зависимости процесса.
type App struct {
	Config     config.Config
	Definition *domain.Definition
	Schedule   *trigger.Schedule
	Store      Store
	Gate       lock.Gate
	Policy     lock.Policy
	Logger     *slog.Logger

	pool  *pgxpool.Pool
	redis *redis.Client
}

// New загружает определение pipeline и подключает инфраструктуру.
// Без DB_URL история хранится в памяти.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	a := &App{Config: cfg, Logger: logger}

	def := engine.DefaultDefinition()
	if cfg.PipelineFile != "" {
		loaded, err := engine.LoadFile(cfg.PipelineFile)
		if err != nil {
			return nil, err
		}
		def = loaded
	}
	a.Definition = def

	sched, err := trigger.ParseCronIn(def.Schedule.Cron, def.Schedule.Timezone)
	if err != nil {
		return nil, err
	}
	a.Schedule = sched

	if a.Policy, err = lock.ParsePolicy(cfg.OverlapPolicy); err != nil {
		return nil, err
	}

	if cfg.DatabaseURL != "" {
		pool, err := repo.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("connect database: %w", err)
		}
		a.pool = pool
		if err := repo.EnsureSchema(ctx, pool); err != nil {
			a.Close()
			return nil, err
		}
		a.Store = repo.NewStore(pool)
		logger.Info("connected to database")
	} else {
		a.Store = repo.NewMemoryStore()
		logger.Warn("DB_URL is empty, run history is kept in memory")
	}

	if a.Gate, err = a.newGate(ctx); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) newGate(ctx context.Context) (lock.Gate, error) {
	switch a.Config.LockBackend {
	case "", "memory":
		return lock.NewMemoryGate(), nil
	case "postgres":
		if a.pool == nil {
			return nil, errors.New("postgres lock backend requires DB_URL")
		}
		return lock.NewPostgresGate(a.pool), nil
	case "redis":
		if a.Config.RedisURL == "" {
			return nil, errors.New("redis lock backend requires REDIS_URL")
		}
		opts, err := redis.ParseURL(a.Config.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("parse REDIS_URL: %w", err)
		}
		a.redis = redis.NewClient(opts)
		if err := a.redis.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("ping redis: %w", err)
		}
		return lock.NewRedisGate(lock.RedisConfig{Client: a.redis, Logger: a.Logger}), nil
	default:
		return nil, fmt.Errorf("%w: %q", lock.ErrUnknownBackend, a.Config.LockBackend)
	}
}

// Registry создаёт стадии quota_check и scanner.
func (a *App) Registry(runner stages.ProcessRunner) *stages.Registry {
	cfg := a.Config
	return stages.NewRegistry(
		stages.NewQuotaCheck(stages.QuotaConfig{
			BaseURL:      cfg.QuotaBaseURL,
			Timeout:      cfg.QuotaTimeout,
			MinRemaining: cfg.QuotaMinRemaining,
		}),
		stages.NewScannerExecution(stages.ScannerConfig{
			Runner:         runner,
			SourceDir:      cfg.ScannerSourceDir,
			RepoURL:        cfg.ScannerRepoURL,
			Ref:            cfg.ScannerRef,
			Script:         cfg.ScannerScript,
			InheritEnv:     cfg.ScannerInheritEnv,
			ScriptTimeout:  cfg.ScannerTimeout,
			InstallTimeout: cfg.InstallTimeout,
			KeepWorkspace:  cfg.KeepWorkspace,
		}),
	)
}

// NewRunner создаёт Runner. notifier может быть nil.
func (a *App) NewRunner(notifier pipeline.Notifier) (*pipeline.Runner, error) {
	return pipeline.New(pipeline.Config{
		Definition: a.Definition,
		Registry:   a.Registry(nil),
		Store:      a.Store,
		Gate:       a.Gate,
		Policy:     a.Policy,
		Poll:       a.Config.LockPoll,
		Secrets:    a.Config.Secrets,
		WorkDir:    a.Config.WorkDir,
		Notifier:   notifier,
		Logger:     a.Logger,
	})
}

// Pool возвращает пул БД или nil в режиме без БД.
func (a *App) Pool() *pgxpool.Pool {
	return a.pool
}

// Close закрывает соединения.
func (a *App) Close() {
	if a.redis != nil {
		a.redis.Close()
	}
	if a.pool != nil {
		a.pool.Close()
	}
}
