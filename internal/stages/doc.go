// Package stages содержит реализации стадий pipeline.
//
// Стадии:
//   - quota_check — запрос остатка квоты у поставщика данных
//   - scanner     — подготовка окружения и запуск скрипта сканера
//
// Каждая стадия реализует интерфейс Stage и регистрируется в Registry.
// Стадия либо успешна, либо нет: частичного успеха и повторов нет.
//
// Внешние процессы (git, python, pip) запускаются через ProcessRunner,
// что позволяет подменять его в тестах.
package stages
