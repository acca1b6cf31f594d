// Package cli реализует инструмент командной строки StockScanner.
//
// # Обзор
//
// CLI — клиентская утилита для StockScanner API. Работает через HTTP
// и не импортирует внутренние пакеты системы. Исключение — "run local",
// которому исполнитель передаётся из main через LocalExecutor.
//
// # Ключевые компоненты
//
// ## Client
//
// HTTP-клиент для API. Инкапсулирует HTTP-запросы,
// парсинг ответов ({data}, {data,total}, {error}) и обработку ошибок.
//
//	client := cli.NewClient("http://localhost:8080")
//	d, err := client.DispatchRun("alice")
//
// ## Output
//
// Форматирование вывода. Поддерживает два режима:
//   - Таблицы (text/tabwriter) — по умолчанию
//   - JSON — с флагом --json
//
// Данные выводятся в stdout, сообщения (Success/Error) — в stderr.
// Это позволяет использовать pipe: stockscan run list --json | jq .
//
// ## Commands
//
//   - run: dispatch, list, show, stages, local
//   - schedule: next
//
// Каждая группа создаётся через фабричную функцию (NewRunCmd и т.д.),
// принимающую clientFn и outputFn — замыкания для ленивого создания
// Client и Output после парсинга PersistentFlags.
package cli
