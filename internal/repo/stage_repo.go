package repo

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shaiso/StockScanner/internal/domain"
)

const stageColumns = `id, run_id, name, type, position, status, outputs,
	started_at, finished_at, error, created_at`

// StageRepo — репозиторий стадий run.
type StageRepo struct {
	pool *pgxpool.Pool
}

// NewStageRepo создаёт новый StageRepo.
func NewStageRepo(pool *pgxpool.Pool) *StageRepo {
	return &StageRepo{pool: pool}
}

// Create создаёт запись стадии.
func (r *StageRepo) Create(ctx context.Context, stage *domain.Stage) error {
	outputsJSON, err := marshalOutputs(stage.Outputs)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO stages (` + stageColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err = r.pool.Exec(ctx, query,
		stage.ID,
		stage.RunID,
		stage.Name,
		stage.Type,
		stage.Position,
		stage.Status,
		outputsJSON,
		stage.StartedAt,
		stage.FinishedAt,
		nullString(stage.Error),
		stage.CreatedAt,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("insert stage: %w", ErrAlreadyExists)
	}
	if err != nil {
		return fmt.Errorf("insert stage: %w", err)
	}
	return nil
}

// Update обновляет статус, outputs и время стадии.
func (r *StageRepo) Update(ctx context.Context, stage *domain.Stage) error {
	outputsJSON, err := marshalOutputs(stage.Outputs)
	if err != nil {
		return err
	}

	query := `
		UPDATE stages
		SET status = $2, outputs = $3, started_at = $4, finished_at = $5, error = $6
		WHERE id = $1
	`
	result, err := r.pool.Exec(ctx, query,
		stage.ID,
		stage.Status,
		outputsJSON,
		stage.StartedAt,
		stage.FinishedAt,
		nullString(stage.Error),
	)
	if err != nil {
		return fmt.Errorf("update stage: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListByRunID возвращает стадии run в порядке выполнения.
func (r *StageRepo) ListByRunID(ctx context.Context, runID uuid.UUID) ([]domain.Stage, error) {
	query := `
		SELECT ` + stageColumns + `
		FROM stages
		WHERE run_id = $1
		ORDER BY position ASC
	`
	rows, err := r.pool.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("list stages by run_id: %w", err)
	}
	defer rows.Close()

	var stages []domain.Stage
	for rows.Next() {
		stage, err := scanStage(rows)
		if err != nil {
			return nil, err
		}
		stages = append(stages, *stage)
	}
	return stages, rows.Err()
}

func scanStage(row pgx.Row) (*domain.Stage, error) {
	var stage domain.Stage
	var outputsJSON []byte
	var stageError *string

	err := row.Scan(
		&stage.ID,
		&stage.RunID,
		&stage.Name,
		&stage.Type,
		&stage.Position,
		&stage.Status,
		&outputsJSON,
		&stage.StartedAt,
		&stage.FinishedAt,
		&stageError,
		&stage.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("scan stage: %w", err)
	}

	if outputsJSON != nil {
		if err := json.Unmarshal(outputsJSON, &stage.Outputs); err != nil {
			return nil, fmt.Errorf("unmarshal outputs: %w", err)
		}
	}
	stage.Error = derefString(stageError)

	return &stage, nil
}

func marshalOutputs(outputs map[string]any) ([]byte, error) {
	if outputs == nil {
		return nil, nil
	}
	data, err := json.Marshal(outputs)
	if err != nil {
		return nil, fmt.Errorf("marshal outputs: %w", err)
	}
	return data, nil
}
