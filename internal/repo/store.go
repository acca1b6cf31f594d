package repo

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shaiso/StockScanner/internal/domain"
)

// Store объединяет RunRepo и StageRepo поверх одного пула.
type Store struct {
	Runs   *RunRepo
	Stages *StageRepo
}

// NewStore создаёт Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{
		Runs:   NewRunRepo(pool),
		Stages: NewStageRepo(pool),
	}
}

func (s *Store) CreateRun(ctx context.Context, run *domain.Run) error {
	return s.Runs.Create(ctx, run)
}

func (s *Store) UpdateRun(ctx context.Context, run *domain.Run) error {
	return s.Runs.Update(ctx, run)
}

func (s *Store) GetRun(ctx context.Context, id uuid.UUID) (*domain.Run, error) {
	return s.Runs.GetByID(ctx, id)
}

func (s *Store) GetRunByIdempotencyKey(ctx context.Context, key string) (*domain.Run, error) {
	return s.Runs.GetByIdempotencyKey(ctx, key)
}

func (s *Store) ListRuns(ctx context.Context, filter RunFilter) ([]domain.Run, error) {
	return s.Runs.List(ctx, filter)
}

func (s *Store) CreateStage(ctx context.Context, stage *domain.Stage) error {
	return s.Stages.Create(ctx, stage)
}

func (s *Store) UpdateStage(ctx context.Context, stage *domain.Stage) error {
	return s.Stages.Update(ctx, stage)
}

func (s *Store) ListStages(ctx context.Context, runID uuid.UUID) ([]domain.Stage, error) {
	return s.Stages.ListByRunID(ctx, runID)
}
