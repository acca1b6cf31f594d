// Package trigger реализует Trigger Dispatcher.
//
// Два независимых источника запуска объединяются по OR:
//   - cron-расписание (по умолчанию "0 12 * * 1-5", UTC)
//   - ручной dispatch без параметров (API, CLI, очередь)
//
// Dispatcher не выполняет pipeline сам: он формирует domain.Trigger
// и передаёт его Launcher. Каждое срабатывание порождает новый run.
//
// Цикл работы:
//
//	┌─────────────────────────────────────────────────┐
//	│                  Dispatcher.Run                  │
//	│                                                  │
//	│  ticker (1s) ──► Tick(now)                       │
//	│                    │                             │
//	│                    ├─ now < nextDue → ничего     │
//	│                    ├─ пропущено > catch-up → log │
//	│                    └─ Launch(schedule trigger)   │
//	│                                                  │
//	│  Manual(actor) ──► Launch(manual trigger)        │
//	└─────────────────────────────────────────────────┘
package trigger
