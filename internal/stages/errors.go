package stages

import (
	"errors"
	"fmt"
)

var (
	// ErrStageNotFound — тип стадии не найден в реестре.
	ErrStageNotFound = errors.New("stage type not found")

	// ErrInvalidConfig — невалидная конфигурация стадии.
	ErrInvalidConfig = errors.New("invalid stage config")

	// ErrQuotaRequest — запрос квоты не выполнен (сеть, таймаут).
	ErrQuotaRequest = errors.New("quota request failed")

	// ErrQuotaStatus — поставщик вернул не-2xx статус.
	ErrQuotaStatus = errors.New("quota endpoint returned non-2xx status")

	// ErrQuotaExhausted — остаток квоты ниже порога.
	ErrQuotaExhausted = errors.New("quota below threshold")

	// ErrRuntimeMismatch — версия интерпретатора не совпадает с manifest.
	ErrRuntimeMismatch = errors.New("runtime version mismatch")

	// ErrProcessFailed — внешний процесс завершился с ошибкой.
	ErrProcessFailed = errors.New("process failed")

	// ErrProcessTimeout — внешний процесс превысил таймаут.
	ErrProcessTimeout = errors.New("process timed out")
)

// StatusError — не-2xx ответ эндпоинта квоты.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("quota endpoint returned status %d", e.StatusCode)
}

// Unwrap позволяет errors.Is(err, ErrQuotaStatus).
func (e *StatusError) Unwrap() error {
	return ErrQuotaStatus
}

// SubStepError — ошибка подшага стадии scanner.
type SubStepError struct {
	Step   string
	Output string
	Err    error
}

func (e *SubStepError) Error() string {
	return fmt.Sprintf("%s: %v", e.Step, e.Err)
}

func (e *SubStepError) Unwrap() error {
	return e.Err
}
