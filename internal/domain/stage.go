package domain

import (
	"time"

	"github.com/google/uuid"
)

// Stage — последовательная единица работы внутри run
// со своим результатом (quota_check, scanner).
type Stage struct {
	// ID — уникальный идентификатор записи стадии.
	ID uuid.UUID `json:"id"`

	// RunID — ссылка на родительский run.
	RunID uuid.UUID `json:"run_id"`

	// Name — ID стадии из определения pipeline.
	Name string `json:"name"`

	// Type — тип стадии: "quota_check", "scanner".
	Type string `json:"type"`

	// Position — порядковый номер стадии в run.
	Position int `json:"position"`

	// Status — текущий статус стадии.
	Status StageStatus `json:"status"`

	// Outputs — результаты стадии (status_code, remaining_calls, exit_code, ...).
	// Секреты сюда никогда не попадают.
	Outputs map[string]any `json:"outputs,omitempty"`

	// StartedAt — время начала выполнения.
	StartedAt *time.Time `json:"started_at,omitempty"`

	// FinishedAt — время завершения.
	FinishedAt *time.Time `json:"finished_at,omitempty"`

	// Error — текст ошибки при неудаче.
	Error string `json:"error,omitempty"`

	// CreatedAt — время создания записи.
	CreatedAt time.Time `json:"created_at"`
}

// NewStage создаёт стадию в статусе PENDING.
func NewStage(runID uuid.UUID, name, stageType string, position int) *Stage {
	return &Stage{
		ID:        uuid.New(),
		RunID:     runID,
		Name:      name,
		Type:      stageType,
		Position:  position,
		Status:    StageStatusPending,
		CreatedAt: time.Now().UTC(),
	}
}

// Duration возвращает продолжительность выполнения.
func (s *Stage) Duration() time.Duration {
	if s.StartedAt == nil || s.FinishedAt == nil {
		return 0
	}
	return s.FinishedAt.Sub(*s.StartedAt)
}

// MarkRunning переводит стадию в статус RUNNING.
func (s *Stage) MarkRunning() {
	now := time.Now().UTC()
	s.Status = StageStatusRunning
	s.StartedAt = &now
}

// MarkSucceeded переводит стадию в статус SUCCEEDED с результатами.
func (s *Stage) MarkSucceeded(outputs map[string]any) {
	now := time.Now().UTC()
	s.Status = StageStatusSucceeded
	s.FinishedAt = &now
	s.Outputs = outputs
}

// MarkFailed переводит стадию в статус FAILED.
// Outputs сохраняются, если стадия успела их собрать (например, status_code).
func (s *Stage) MarkFailed(err string, outputs map[string]any) {
	now := time.Now().UTC()
	s.Status = StageStatusFailed
	s.FinishedAt = &now
	s.Error = err
	s.Outputs = outputs
}

// MarkNotRun отмечает стадию как не запускавшуюся.
func (s *Stage) MarkNotRun(reason string) {
	now := time.Now().UTC()
	s.Status = StageStatusNotRun
	s.FinishedAt = &now
	s.Error = reason
}
