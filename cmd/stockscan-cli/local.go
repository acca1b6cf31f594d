package main

import (
	"context"
	"fmt"
	"time"

	"github.com/shaiso/StockScanner/internal/app"
	"github.com/shaiso/StockScanner/internal/cli"
	"github.com/shaiso/StockScanner/internal/config"
	"github.com/shaiso/StockScanner/internal/domain"
	"github.com/shaiso/StockScanner/internal/telemetry"
)

// runLocal выполняет один ручной run в процессе CLI.
// Используется как сама задача на машине без scheduler.
func runLocal(ctx context.Context, actor string) (*cli.LocalResult, error) {
	logger := telemetry.SetupLogger("stockscan-cli")

	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	defer a.Close()

	runner, err := a.NewRunner(nil)
	if err != nil {
		return nil, err
	}

	run, err := runner.Execute(ctx, domain.NewManualTrigger(actor, time.Now()))
	if err != nil {
		return nil, fmt.Errorf("execute run: %w", err)
	}

	stages, err := a.Store.ListStages(ctx, run.ID)
	if err != nil {
		return nil, fmt.Errorf("list stages: %w", err)
	}

	res := &cli.LocalResult{Run: runResponse(*run)}
	for _, s := range stages {
		res.Stages = append(res.Stages, stageResponse(s))
	}
	return res, nil
}

func runResponse(r domain.Run) cli.RunResponse {
	return cli.RunResponse{
		ID:             r.ID.String(),
		Trigger:        string(r.Trigger),
		Actor:          r.Actor,
		Status:         string(r.Status),
		StartedAt:      formatTime(r.StartedAt),
		FinishedAt:     formatTime(r.FinishedAt),
		DurationMs:     r.Duration().Milliseconds(),
		Error:          r.Error,
		IdempotencyKey: r.IdempotencyKey,
		ManifestDigest: r.ManifestDigest,
		CreatedAt:      r.CreatedAt.Format(time.RFC3339),
	}
}

func stageResponse(s domain.Stage) cli.StageResponse {
	return cli.StageResponse{
		ID:         s.ID.String(),
		RunID:      s.RunID.String(),
		Name:       s.Name,
		Type:       s.Type,
		Position:   s.Position,
		Status:     string(s.Status),
		Outputs:    s.Outputs,
		StartedAt:  formatTime(s.StartedAt),
		FinishedAt: formatTime(s.FinishedAt),
		Error:      s.Error,
		CreatedAt:  s.CreatedAt.Format(time.RFC3339),
	}
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(time.RFC3339)
}
