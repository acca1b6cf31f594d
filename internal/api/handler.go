package api

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/StockScanner/internal/domain"
	"github.com/shaiso/StockScanner/internal/repo"
	"github.com/shaiso/StockScanner/internal/trigger"
)

// RunReader — чтение истории runs. Реализуют repo.Store и repo.MemoryStore.
type RunReader interface {
	GetRun(ctx context.Context, id uuid.UUID) (*domain.Run, error)
	GetRunByIdempotencyKey(ctx context.Context, key string) (*domain.Run, error)
	ListRuns(ctx context.Context, filter repo.RunFilter) ([]domain.Run, error)
	ListStages(ctx context.Context, runID uuid.UUID) ([]domain.Stage, error)
}

// Dispatcher ставит ручной запуск.
// Реализуют mq.Publisher (через брокер) и trigger.Dispatcher (в процессе).
type Dispatcher interface {
	Dispatch(ctx context.Context, actor string) (domain.Trigger, error)
}

// Handler — главный обработчик API с зависимостями.
type Handler struct {
	runs       RunReader
	dispatcher Dispatcher
	schedule   *trigger.Schedule
	startedAt  time.Time
	logger     *slog.Logger
}

// Config — конфигурация для создания Handler.
type Config struct {
	Runs       RunReader
	Dispatcher Dispatcher // nil — POST /runs отвечает 503
	Schedule   *trigger.Schedule
	Logger     *slog.Logger
}

// NewHandler создаёт новый Handler.
func NewHandler(cfg Config) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		runs:       cfg.Runs,
		dispatcher: cfg.Dispatcher,
		schedule:   cfg.Schedule,
		startedAt:  time.Now(),
		logger:     logger,
	}
}
