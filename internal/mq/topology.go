package mq

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Exchange — имя обменника.
type Exchange string

// Queue — имя очереди.
type Queue string

// RoutingKey — ключ маршрутизации.
type RoutingKey string

const (
	ExchangeRuns Exchange = "stockscan.runs"
	ExchangeDLQ  Exchange = "stockscan.dlq"
)

const (
	QueueRunsRequested Queue = "runs.requested"
	QueueRunsFinished  Queue = "runs.finished"
	QueueDLQRuns       Queue = "dlq.runs"
)

const (
	RoutingKeyRequested RoutingKey = "requested"
	RoutingKeyFinished  RoutingKey = "finished"
	RoutingKeyDLQRuns   RoutingKey = "runs"
)

// binding — очередь, её аргументы и привязка к обменнику.
type binding struct {
	queue    Queue
	exchange Exchange
	key      RoutingKey
	args     amqp.Table
}

var topology = []binding{
	// отклонённые запросы запуска уходят в dlq.runs
	{QueueRunsRequested, ExchangeRuns, RoutingKeyRequested, amqp.Table{
		"x-dead-letter-exchange":    string(ExchangeDLQ),
		"x-dead-letter-routing-key": string(RoutingKeyDLQRuns),
	}},
	{QueueRunsFinished, ExchangeRuns, RoutingKeyFinished, nil},
	{QueueDLQRuns, ExchangeDLQ, RoutingKeyDLQRuns, nil},
}

// SetupTopology объявляет exchanges и очереди. Идемпотентна.
func SetupTopology(ctx context.Context, conn *Connection) error {
	return conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		for _, ex := range []Exchange{ExchangeRuns, ExchangeDLQ} {
			if err := ch.ExchangeDeclare(string(ex), "direct", true, false, false, false, nil); err != nil {
				return fmt.Errorf("declare exchange %s: %w", ex, err)
			}
		}

		for _, b := range topology {
			if _, err := ch.QueueDeclare(string(b.queue), true, false, false, false, b.args); err != nil {
				return fmt.Errorf("declare queue %s: %w", b.queue, err)
			}
			if err := ch.QueueBind(string(b.queue), string(b.key), string(b.exchange), false, nil); err != nil {
				return fmt.Errorf("bind queue %s to %s: %w", b.queue, b.exchange, err)
			}
		}
		return nil
	})
}

// TopologyInfo возвращает описание топологии для логирования.
func TopologyInfo() string {
	return `
  StockScanner RabbitMQ Topology:

    stockscan.runs (direct)
    ├── runs.requested [routing: requested]
    │       Consumer: stockscan-scheduler
    │       DLQ: dlq.runs
    └── runs.finished [routing: finished]
            Consumer: внешние подписчики

    stockscan.dlq (direct)
    └── dlq.runs [routing: runs]
            Ручной разбор
`
}
