package domain

import (
	"time"

	"github.com/google/uuid"
)

// Run — одно полное выполнение pipeline: от trigger до завершения.
//
// Run создаётся когда:
// - Срабатывает cron-расписание
// - Пользователь запускает pipeline вручную (API/CLI/очередь)
//
// Итоговый статус — логическое И результатов всех стадий.
type Run struct {
	// ID — уникальный идентификатор run.
	ID uuid.UUID `json:"id"`

	// Trigger — источник запуска.
	Trigger TriggerKind `json:"trigger"`

	// ScheduledAt — плановое время (для schedule trigger).
	ScheduledAt *time.Time `json:"scheduled_at,omitempty"`

	// Actor — кто запустил вручную.
	Actor string `json:"actor,omitempty"`

	// Status — текущий статус выполнения.
	Status RunStatus `json:"status"`

	// StartedAt — время перехода в RUNNING.
	StartedAt *time.Time `json:"started_at,omitempty"`

	// FinishedAt — время завершения (в любом терминальном статусе).
	FinishedAt *time.Time `json:"finished_at,omitempty"`

	// Error — текст ошибки для FAILED или причина для SKIPPED.
	Error string `json:"error,omitempty"`

	// IdempotencyKey — ключ идемпотентности из Trigger.
	IdempotencyKey string `json:"idempotency_key,omitempty"`

	// ManifestDigest — digest зафиксированного manifest, с которым выполнялся run.
	ManifestDigest string `json:"manifest_digest,omitempty"`

	// CreatedAt — время создания run.
	CreatedAt time.Time `json:"created_at"`
}

// NewRun создаёт run в статусе PENDING из trigger.
func NewRun(t Trigger) *Run {
	return &Run{
		ID:             uuid.New(),
		Trigger:        t.Kind,
		ScheduledAt:    t.ScheduledAt,
		Actor:          t.Actor,
		Status:         RunStatusPending,
		IdempotencyKey: t.IdempotencyKey,
		CreatedAt:      time.Now().UTC(),
	}
}

// Duration возвращает продолжительность выполнения.
// Возвращает 0, если run ещё не завершён.
func (r *Run) Duration() time.Duration {
	if r.StartedAt == nil || r.FinishedAt == nil {
		return 0
	}
	return r.FinishedAt.Sub(*r.StartedAt)
}

// IsFinished возвращает true, если run завершён (в любом статусе).
func (r *Run) IsFinished() bool {
	return r.Status.IsTerminal()
}

// MarkRunning переводит run в статус RUNNING.
func (r *Run) MarkRunning() {
	now := time.Now().UTC()
	r.Status = RunStatusRunning
	r.StartedAt = &now
}

// MarkSucceeded переводит run в статус SUCCEEDED.
func (r *Run) MarkSucceeded() {
	now := time.Now().UTC()
	r.Status = RunStatusSucceeded
	r.FinishedAt = &now
}

// MarkFailed переводит run в статус FAILED с ошибкой.
func (r *Run) MarkFailed(err string) {
	now := time.Now().UTC()
	r.Status = RunStatusFailed
	r.FinishedAt = &now
	r.Error = err
}

// MarkSkipped переводит run в статус SKIPPED.
func (r *Run) MarkSkipped(reason string) {
	now := time.Now().UTC()
	r.Status = RunStatusSkipped
	r.FinishedAt = &now
	r.Error = reason
}
