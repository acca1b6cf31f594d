package pipeline

import "errors"

var (
	// ErrDuplicateTrigger — run с таким idempotency key уже существует.
	ErrDuplicateTrigger = errors.New("run for this trigger already exists")

	// ErrRunnerStopped — Runner остановлен и не принимает новые run.
	ErrRunnerStopped = errors.New("runner is stopped")

	// ErrLockLost — блокировка потеряна во время run.
	ErrLockLost = errors.New("scanner lock lost during run")
)

// Причины статусов, которые видит пользователь.
const (
	reasonOverlap = "another run holds the scanner lock"
	reasonNeeds   = "needs did not succeed: "
)
