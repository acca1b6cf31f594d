// Package mq — транспорт ручного запуска и событий о завершении run через RabbitMQ.
//
// Структура:
//   - connection.go — соединение с переподключением
//   - topology.go   — exchanges, queues, bindings
//   - publisher.go  — публикация run.requested и run.finished
//   - consumer.go   — потребление с ack/nack и dead-letter
//
// Типы сообщений:
//   - run.requested — ручной запуск pipeline (payload: domain.Trigger)
//   - run.finished  — итог run (статус, длительность, ошибка)
package mq
