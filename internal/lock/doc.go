// Package lock реализует взаимное исключение запусков pipeline.
//
// Одновременно выполняется не более одного run на ресурс
// (ключ "stock-scanner"). Пересекающийся запуск либо пропускается
// (PolicySkip, run получает статус SKIPPED), либо ждёт освобождения
// (PolicyWait).
//
// Реализации Gate:
//   - MemoryGate   — в пределах процесса
//   - PostgresGate — pg_try_advisory_lock на удерживаемом соединении
//   - RedisGate    — SET NX PX + снятие через Lua с проверкой владельца
package lock
