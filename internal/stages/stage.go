package stages

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/shaiso/StockScanner/internal/domain"
)

// Stage — интерфейс для типов стадий.
type Stage interface {
	// Name возвращает тип стадии, под которым она регистрируется.
	Name() string

	// Execute выполняет стадию.
	//
	// При ошибке Result может быть не nil: в нём outputs,
	// собранные до отказа (например, status_code).
	Execute(ctx context.Context, req *Request) (*Result, error)
}

// Request — входные данные стадии.
type Request struct {
	// RunID — идентификатор run.
	RunID uuid.UUID

	// StageID — ID стадии из определения pipeline.
	StageID string

	// Config — параметры стадии из определения.
	Config map[string]any

	// Secrets — секреты run. Стадия сама решает, какие из них нужны.
	Secrets domain.SecretBindings

	// Manifest — зафиксированные runtime и библиотеки.
	Manifest domain.Manifest

	// WorkDir — каталог артефактов run (quota.json, логи).
	WorkDir string

	// Logger — логгер с полями run и стадии.
	Logger *slog.Logger
}

// Result — результат стадии.
type Result struct {
	Outputs map[string]any
}

// NewResult создаёт Result с outputs.
func NewResult(outputs map[string]any) *Result {
	if outputs == nil {
		outputs = make(map[string]any)
	}
	return &Result{Outputs: outputs}
}

func (r *Request) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.Default()
}

// configInt извлекает число из конфига стадии.
// JSON числа приходят как float64.
func configInt(config map[string]any, key string) int {
	switch n := config[key].(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	}
	return 0
}
