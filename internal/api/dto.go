package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/StockScanner/internal/domain"
)

// Run DTOs

// DispatchRunRequest — запрос на ручной запуск. Тело необязательно.
type DispatchRunRequest struct {
	Actor string `json:"actor,omitempty"`
}

// DispatchResponse — принятый ручной запуск.
// Run появится в истории под IdempotencyKey.
type DispatchResponse struct {
	Kind           string    `json:"kind"`
	Actor          string    `json:"actor,omitempty"`
	IdempotencyKey string    `json:"idempotency_key"`
	FiredAt        time.Time `json:"fired_at"`
}

// DispatchFromTrigger конвертирует domain.Trigger в DispatchResponse.
func DispatchFromTrigger(t domain.Trigger) DispatchResponse {
	return DispatchResponse{
		Kind:           string(t.Kind),
		Actor:          t.Actor,
		IdempotencyKey: t.IdempotencyKey,
		FiredAt:        t.FiredAt,
	}
}

// RunResponse — ответ с run.
type RunResponse struct {
	ID             uuid.UUID  `json:"id"`
	Trigger        string     `json:"trigger"`
	ScheduledAt    *time.Time `json:"scheduled_at,omitempty"`
	Actor          string     `json:"actor,omitempty"`
	Status         string     `json:"status"`
	StartedAt      *time.Time `json:"started_at,omitempty"`
	FinishedAt     *time.Time `json:"finished_at,omitempty"`
	DurationMs     int64      `json:"duration_ms,omitempty"`
	Error          string     `json:"error,omitempty"`
	IdempotencyKey string     `json:"idempotency_key,omitempty"`
	ManifestDigest string     `json:"manifest_digest,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

// RunFromDomain конвертирует domain.Run в RunResponse.
func RunFromDomain(r domain.Run) RunResponse {
	return RunResponse{
		ID:             r.ID,
		Trigger:        string(r.Trigger),
		ScheduledAt:    r.ScheduledAt,
		Actor:          r.Actor,
		Status:         string(r.Status),
		StartedAt:      r.StartedAt,
		FinishedAt:     r.FinishedAt,
		DurationMs:     r.Duration().Milliseconds(),
		Error:          r.Error,
		IdempotencyKey: r.IdempotencyKey,
		ManifestDigest: r.ManifestDigest,
		CreatedAt:      r.CreatedAt,
	}
}

// Stage DTOs

// StageResponse — ответ со стадией.
type StageResponse struct {
	ID         uuid.UUID      `json:"id"`
	RunID      uuid.UUID      `json:"run_id"`
	Name       string         `json:"name"`
	Type       string         `json:"type"`
	Position   int            `json:"position"`
	Status     string         `json:"status"`
	Outputs    map[string]any `json:"outputs,omitempty"`
	StartedAt  *time.Time     `json:"started_at,omitempty"`
	FinishedAt *time.Time     `json:"finished_at,omitempty"`
	Error      string         `json:"error,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

// StageFromDomain конвертирует domain.Stage в StageResponse.
func StageFromDomain(s domain.Stage) StageResponse {
	return StageResponse{
		ID:         s.ID,
		RunID:      s.RunID,
		Name:       s.Name,
		Type:       s.Type,
		Position:   s.Position,
		Status:     string(s.Status),
		Outputs:    s.Outputs,
		StartedAt:  s.StartedAt,
		FinishedAt: s.FinishedAt,
		Error:      s.Error,
		CreatedAt:  s.CreatedAt,
	}
}

// Schedule DTOs

// ScheduleResponse — расписание и ближайшие срабатывания.
type ScheduleResponse struct {
	Cron     string      `json:"cron"`
	Timezone string      `json:"timezone"`
	Next     []time.Time `json:"next"`
}
