// Package api содержит HTTP API сервер.
//
// Структура:
//   - handler.go          — Handler с DI (история runs, dispatcher, расписание, logger)
//   - routes.go           — регистрация маршрутов
//   - middleware.go       — middleware (logging, recovery, metrics)
//   - response.go         — унифицированные JSON-ответы и обработка ошибок
//   - dto.go              — Data Transfer Objects (request/response)
//   - run_handler.go      — обработчики для /runs
//   - schedule_handler.go — обработчик для /schedule
//
// API только читает историю runs и ставит ручные запуски.
// Сам run выполняет Runner в процессе scheduler.
package api
