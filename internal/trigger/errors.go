package trigger

import "errors"

var (
	// ErrInvalidCron — cron-выражение не разбирается.
	ErrInvalidCron = errors.New("invalid cron expression")

	// ErrInvalidTimezone — неизвестный часовой пояс.
	ErrInvalidTimezone = errors.New("invalid timezone")

	// ErrNoLauncher — Dispatcher создан без Launcher.
	ErrNoLauncher = errors.New("launcher is not configured")
)
