package repo

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// schema — DDL истории запусков. Выполняется идемпотентно при старте.
// Состояние самого сканера здесь не хранится.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS runs (
		id              UUID PRIMARY KEY,
		trigger         TEXT NOT NULL CHECK (trigger IN ('schedule', 'manual')),
		scheduled_at    TIMESTAMPTZ,
		actor           TEXT,
		status          TEXT NOT NULL CHECK (status IN ('PENDING', 'RUNNING', 'SUCCEEDED', 'FAILED', 'SKIPPED')),
		started_at      TIMESTAMPTZ,
		finished_at     TIMESTAMPTZ,
		error           TEXT,
		idempotency_key TEXT,
		manifest_digest TEXT,
		created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_runs_idempotency_key ON runs(idempotency_key)`,
	`CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at DESC)`,
	`CREATE TABLE IF NOT EXISTS stages (
		id          UUID PRIMARY KEY,
		run_id      UUID NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		name        TEXT NOT NULL,
		type        TEXT NOT NULL,
		position    INT NOT NULL,
		status      TEXT NOT NULL CHECK (status IN ('PENDING', 'RUNNING', 'SUCCEEDED', 'FAILED', 'NOT_RUN')),
		outputs     JSONB,
		started_at  TIMESTAMPTZ,
		finished_at TIMESTAMPTZ,
		error       TEXT,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_stages_run_name ON stages(run_id, name)`,
}

// EnsureSchema создаёт таблицы, если их нет.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	for _, q := range schema {
		if _, err := pool.Exec(ctx, q); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}
