package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// TriggerKind — источник запуска run.
type TriggerKind string

const (
	// TriggerSchedule — запуск по cron-расписанию.
	TriggerSchedule TriggerKind = "schedule"

	// TriggerManual — ручной запуск (API, CLI, очередь).
	TriggerManual TriggerKind = "manual"
)

// Trigger — событие, которое начинает новый run.
//
// Два источника независимы и объединяются по OR:
// любой из них создаёт run.
type Trigger struct {
	// Kind — источник запуска.
	Kind TriggerKind `json:"kind"`

	// ScheduledAt — плановое время срабатывания (только для schedule).
	ScheduledAt *time.Time `json:"scheduled_at,omitempty"`

	// FiredAt — фактическое время срабатывания.
	FiredAt time.Time `json:"fired_at"`

	// Actor — кто запустил run вручную.
	Actor string `json:"actor,omitempty"`

	// IdempotencyKey — ключ для защиты от повторного создания run.
	//   schedule: "schedule_{unix}"
	//   manual:   "manual_{uuid}"
	IdempotencyKey string `json:"idempotency_key"`
}

// NewScheduleTrigger создаёт trigger для планового срабатывания.
func NewScheduleTrigger(scheduledAt, firedAt time.Time) Trigger {
	at := scheduledAt.UTC()
	return Trigger{
		Kind:           TriggerSchedule,
		ScheduledAt:    &at,
		FiredAt:        firedAt.UTC(),
		IdempotencyKey: fmt.Sprintf("schedule_%d", at.Unix()),
	}
}

// NewManualTrigger создаёт trigger для ручного запуска.
// Каждый ручной запуск уникален.
func NewManualTrigger(actor string, firedAt time.Time) Trigger {
	if actor == "" {
		actor = "anonymous"
	}
	return Trigger{
		Kind:           TriggerManual,
		FiredAt:        firedAt.UTC(),
		Actor:          actor,
		IdempotencyKey: "manual_" + uuid.NewString(),
	}
}
