package domain

// Типы стадий.
const (
	StageTypeQuotaCheck = "quota_check"
	StageTypeScanner    = "scanner"
)

// Definition — декларативное определение pipeline:
// когда запускать, что устанавливать и какие стадии выполнять.
type Definition struct {
	// Name — имя pipeline.
	Name string `json:"name"`

	// Schedule — расписание планового запуска.
	Schedule ScheduleDef `json:"schedule"`

	// Manifest — зафиксированные runtime и библиотеки.
	Manifest Manifest `json:"manifest"`

	// Stages — стадии pipeline.
	Stages []StageDef `json:"stages"`
}

// ScheduleDef — cron-выражение и часовой пояс.
type ScheduleDef struct {
	// Cron — выражение "минуты часы дни месяцы дни_недели".
	Cron string `json:"cron"`

	// Timezone — часовой пояс вычисления. По умолчанию "UTC".
	Timezone string `json:"timezone,omitempty"`
}

// StageDef — определение стадии.
type StageDef struct {
	// ID — уникальный идентификатор стадии.
	ID string `json:"id"`

	// Type — тип стадии: "quota_check", "scanner".
	Type string `json:"type"`

	// Needs — стадии, которые должны успешно завершиться до этой.
	Needs []string `json:"needs,omitempty"`

	// TimeoutSec — таймаут стадии. 0 — без ограничения со стороны pipeline.
	TimeoutSec int `json:"timeout_sec,omitempty"`

	// Config — параметры стадии (зависят от типа).
	Config map[string]any `json:"config,omitempty"`
}
