// Package pipeline выполняет run: от trigger до итогового статуса.
//
// Runner:
//   - создаёт run (PENDING) и записи стадий
//   - захватывает блокировку ресурса (skip или wait)
//   - выполняет стадии в порядке определения
//   - стадия, чьи needs не завершились успешно, получает NOT_RUN
//   - итог run — логическое И результатов стадий
//   - публикует run.finished, если настроен Notifier
package pipeline
