package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/shaiso/StockScanner/internal/domain"
)

// Publisher публикует сообщения в RabbitMQ.
type Publisher struct {
	conn   *Connection
	logger *slog.Logger
}

// NewPublisher создаёт новый Publisher.
func NewPublisher(conn *Connection, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{conn: conn, logger: logger}
}

// Publish публикует сообщение в exchange с routing key.
func (p *Publisher) Publish(ctx context.Context, exchange Exchange, key RoutingKey, msg *Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	return p.conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		err := ch.PublishWithContext(ctx, string(exchange), string(key), false, false, amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    msg.ID,
			Type:         string(msg.Type),
			Timestamp:    msg.Timestamp,
			Body:         body,
		})
		if err != nil {
			return fmt.Errorf("publish to %s/%s: %w", exchange, key, err)
		}

		p.logger.Debug("published message",
			"exchange", exchange,
			"routing_key", key,
			"message_id", msg.ID,
			"type", msg.Type,
		)
		return nil
	})
}

// Dispatch формирует ручной trigger и отправляет его в runs.requested.
// Потребитель: stockscan-scheduler.
func (p *Publisher) Dispatch(ctx context.Context, actor string) (domain.Trigger, error) {
	t := domain.NewManualTrigger(actor, time.Now())
	if err := p.PublishRunRequested(ctx, t); err != nil {
		return t, err
	}
	return t, nil
}

// PublishRunRequested публикует готовый trigger в runs.requested.
func (p *Publisher) PublishRunRequested(ctx context.Context, t domain.Trigger) error {
	msg, err := NewMessage(MessageTypeRunRequested, RunRequestedPayload{Trigger: t})
	if err != nil {
		return err
	}
	if err := p.Publish(ctx, ExchangeRuns, RoutingKeyRequested, msg); err != nil {
		return err
	}

	p.logger.Info("run requested",
		"actor", t.Actor,
		"idempotency_key", t.IdempotencyKey,
	)
	return nil
}

// PublishRunFinished публикует итог run.
func (p *Publisher) PublishRunFinished(ctx context.Context, run *domain.Run) error {
	msg, err := NewMessage(MessageTypeRunFinished, NewRunFinishedPayload(run))
	if err != nil {
		return err
	}
	return p.Publish(ctx, ExchangeRuns, RoutingKeyFinished, msg)
}
