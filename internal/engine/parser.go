package engine

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/shaiso/StockScanner/internal/domain"
)

// DefaultCron — будни, 12:00.
const DefaultCron = "0 12 * * 1-5"

// Допустимые типы стадий.
var validStageTypes = map[string]bool{
	domain.StageTypeQuotaCheck: true,
	domain.StageTypeScanner:    true,
}

// DefaultDefinition возвращает pipeline сканера:
// проверка квоты, затем запуск скрипта.
func DefaultDefinition() *domain.Definition {
	return &domain.Definition{
		Name: "stock-scanner",
		Schedule: domain.ScheduleDef{
			Cron:     DefaultCron,
			Timezone: "UTC",
		},
		Manifest: domain.DefaultManifest(),
		Stages: []domain.StageDef{
			{ID: "check-quota", Type: domain.StageTypeQuotaCheck},
			{ID: "run-scanner", Type: domain.StageTypeScanner, Needs: []string{"check-quota"}},
		},
	}
}

// Parse парсит Definition из JSON, заполняет значения по умолчанию и валидирует.
func Parse(data []byte) (*domain.Definition, error) {
	var def domain.Definition
	if err := json.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("parse pipeline definition: %w", err)
	}

	applyDefaults(&def)

	if err := Validate(&def); err != nil {
		return nil, err
	}
	return &def, nil
}

// LoadFile читает Definition из файла.
// Пустой путь означает определение по умолчанию.
func LoadFile(path string) (*domain.Definition, error) {
	if path == "" {
		return DefaultDefinition(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read pipeline definition: %w", err)
	}
	return Parse(data)
}

// applyDefaults заполняет пропущенные поля.
func applyDefaults(def *domain.Definition) {
	if def.Name == "" {
		def.Name = "stock-scanner"
	}
	if def.Schedule.Cron == "" {
		def.Schedule.Cron = DefaultCron
	}
	if def.Schedule.Timezone == "" {
		def.Schedule.Timezone = "UTC"
	}
	if def.Manifest.Runtime.Name == "" && len(def.Manifest.Packages) == 0 {
		def.Manifest = domain.DefaultManifest()
	}
}

// Validate выполняет полную валидацию Definition.
//
// Проверяет:
// - Наличие стадий и расписания
// - Уникальность ID стадий
// - Корректность типов
// - Валидность needs и отсутствие циклов
// - Закреплённые версии в manifest
func Validate(def *domain.Definition) error {
	if def == nil || len(def.Stages) == 0 {
		return ErrEmptyStages
	}
	if def.Schedule.Cron == "" {
		return ErrEmptySchedule
	}

	ids := make(map[string]bool, len(def.Stages))
	for i := range def.Stages {
		stage := &def.Stages[i]

		if stage.ID == "" {
			return NewValidationError("", "id", "stage has empty ID", ErrEmptyStageID)
		}
		if ids[stage.ID] {
			return NewValidationError(stage.ID, "id",
				fmt.Sprintf("duplicate stage ID: %s", stage.ID), ErrDuplicateStageID)
		}
		ids[stage.ID] = true

		if !validStageTypes[stage.Type] {
			return NewValidationError(stage.ID, "type",
				fmt.Sprintf("unknown stage type: %q", stage.Type), ErrUnknownStageType)
		}

		for _, need := range stage.Needs {
			if need == stage.ID {
				return NewValidationError(stage.ID, "needs", "stage needs itself", ErrSelfDependency)
			}
		}
	}

	for i := range def.Stages {
		stage := &def.Stages[i]
		for _, need := range stage.Needs {
			if !ids[need] {
				return NewValidationError(stage.ID, "needs",
					fmt.Sprintf("needs unknown stage: %s", need), ErrMissingDependency)
			}
		}
	}

	if _, err := Order(def); err != nil {
		return err
	}

	if err := def.Manifest.Validate(); err != nil {
		return NewValidationError("", "manifest", err.Error(), err)
	}

	return nil
}
