package engine

import "errors"

// Ошибки валидации Definition.
var (
	// ErrEmptyStages — pipeline не содержит стадий.
	ErrEmptyStages = errors.New("pipeline has no stages")

	// ErrEmptyStageID — стадия не имеет ID.
	ErrEmptyStageID = errors.New("stage has empty ID")

	// ErrDuplicateStageID — несколько стадий с одинаковым ID.
	ErrDuplicateStageID = errors.New("duplicate stage ID")

	// ErrUnknownStageType — неизвестный тип стадии.
	ErrUnknownStageType = errors.New("unknown stage type")

	// ErrMissingDependency — стадия зависит от несуществующей стадии.
	ErrMissingDependency = errors.New("stage needs unknown stage")

	// ErrCyclicDependency — обнаружен цикл в needs.
	ErrCyclicDependency = errors.New("cyclic dependency detected")

	// ErrSelfDependency — стадия зависит от самой себя.
	ErrSelfDependency = errors.New("stage needs itself")

	// ErrEmptySchedule — не задано cron-выражение.
	ErrEmptySchedule = errors.New("schedule cron expression is empty")
)

// ValidationError — ошибка валидации с контекстом.
type ValidationError struct {
	StageID string // ID стадии, где произошла ошибка
	Field   string // поле, вызвавшее ошибку
	Message string // описание ошибки
	Err     error  // базовая ошибка
}

// Error реализует интерфейс error.
func (e *ValidationError) Error() string {
	if e.StageID != "" {
		return "stage " + e.StageID + ": " + e.Message
	}
	return e.Message
}

// Unwrap возвращает базовую ошибку.
func (e *ValidationError) Unwrap() error {
	return e.Err
}

// NewValidationError создаёт новую ошибку валидации.
func NewValidationError(stageID, field, message string, err error) *ValidationError {
	return &ValidationError{
		StageID: stageID,
		Field:   field,
		Message: message,
		Err:     err,
	}
}
