package domain

// RunStatus — статус выполнения run.
//
// Жизненный цикл:
//
//	PENDING → RUNNING → SUCCEEDED
//	                  ↘ FAILED
//	        ↘ SKIPPED (gate занят другим run, политика skip)
type RunStatus string

const (
	// RunStatusPending — run создан, но ещё не начал выполняться.
	RunStatusPending RunStatus = "PENDING"

	// RunStatusRunning — run в процессе выполнения.
	RunStatusRunning RunStatus = "RUNNING"

	// RunStatusSucceeded — все стадии завершились успешно.
	RunStatusSucceeded RunStatus = "SUCCEEDED"

	// RunStatusFailed — хотя бы одна стадия упала.
	RunStatusFailed RunStatus = "FAILED"

	// RunStatusSkipped — run не стартовал, потому что другой run держит lock.
	RunStatusSkipped RunStatus = "SKIPPED"
)

// IsTerminal возвращает true, если статус финальный (run завершён).
func (s RunStatus) IsTerminal() bool {
	switch s {
	case RunStatusSucceeded, RunStatusFailed, RunStatusSkipped:
		return true
	default:
		return false
	}
}

// StageStatus — статус стадии внутри run.
//
// Жизненный цикл:
//
//	PENDING → RUNNING → SUCCEEDED
//	                  ↘ FAILED
//	        ↘ NOT_RUN (зависимость не выполнена)
type StageStatus string

const (
	// StageStatusPending — стадия ожидает своей очереди.
	StageStatusPending StageStatus = "PENDING"

	// StageStatusRunning — стадия выполняется.
	StageStatusRunning StageStatus = "RUNNING"

	// StageStatusSucceeded — стадия завершилась успешно.
	StageStatusSucceeded StageStatus = "SUCCEEDED"

	// StageStatusFailed — стадия завершилась с ошибкой.
	StageStatusFailed StageStatus = "FAILED"

	// StageStatusNotRun — стадия не запускалась, так как needs не выполнены.
	StageStatusNotRun StageStatus = "NOT_RUN"
)

// IsTerminal возвращает true, если статус финальный.
func (s StageStatus) IsTerminal() bool {
	switch s {
	case StageStatusSucceeded, StageStatusFailed, StageStatusNotRun:
		return true
	default:
		return false
	}
}
