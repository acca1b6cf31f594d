// Package repo хранит историю запусков pipeline: runs и их стадии.
//
// Две реализации с одинаковым набором методов:
//   - Store       — PostgreSQL через pgxpool
//   - MemoryStore — в памяти процесса (локальный запуск, тесты)
//
// Хранится только история платформы. Состояние сканера
// (выбранные тикеры, отправленные уведомления) сюда не попадает.
package repo
