package mq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"
)

// ErrPermanent помечает ошибку, после которой сообщение не возвращается
// в очередь, а уходит в dead-letter.
var ErrPermanent = errors.New("permanent message failure")

// Handler обрабатывает одно сообщение.
//
// nil — ack. Ошибка с ErrPermanent — nack без requeue.
// Иная ошибка — одна повторная доставка, затем dead-letter.
type Handler func(ctx context.Context, msg *Message) error

// Consumer потребляет сообщения из очереди.
type Consumer struct {
	conn     *Connection
	logger   *slog.Logger
	queue    Queue
	handler  Handler
	prefetch int
}

// ConsumerConfig — конфигурация Consumer.
type ConsumerConfig struct {
	Queue    Queue
	Handler  Handler
	Prefetch int // default: 1
}

// NewConsumer создаёт новый Consumer.
func NewConsumer(conn *Connection, logger *slog.Logger, cfg ConsumerConfig) *Consumer {
	prefetch := cfg.Prefetch
	if prefetch <= 0 {
		prefetch = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Consumer{
		conn:     conn,
		logger:   logger.With("queue", cfg.Queue),
		queue:    cfg.Queue,
		handler:  cfg.Handler,
		prefetch: prefetch,
	}
}

// Run потребляет сообщения до отмены ctx.
// После разрыва соединения ждёт переподключения и подписывается заново.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		deliveries, err := c.subscribe()
		if err != nil {
			c.logger.Error("failed to subscribe", "error", err)
		} else {
			c.logger.Info("consumer started")
			c.drain(ctx, deliveries)
		}

		if ctx.Err() != nil {
			return nil
		}

		c.logger.Warn("waiting for reconnect")
		select {
		case <-ctx.Done():
			return nil
		case <-c.conn.Reconnected():
		}
	}
}

func (c *Consumer) subscribe() (<-chan amqp.Delivery, error) {
	ch := c.conn.Channel()
	if ch == nil {
		return nil, ErrNoChannel
	}
	if err := ch.Qos(c.prefetch, 0, false); err != nil {
		return nil, fmt.Errorf("set qos: %w", err)
	}
	deliveries, err := ch.Consume(string(c.queue), "", false, false, false, false, nil)
	if err != nil {
		return nil, fmt.Errorf("consume: %w", err)
	}
	return deliveries, nil
}

// drain обрабатывает сообщения, пока канал доставки открыт.
func (c *Consumer) drain(ctx context.Context, deliveries <-chan amqp.Delivery) {
	for {
		select {
		case <-ctx.Done():
			return
		case raw, ok := <-deliveries:
			if !ok {
				return
			}
			c.handle(ctx, raw)
		}
	}
}

func (c *Consumer) handle(ctx context.Context, raw amqp.Delivery) {
	ack, requeue := c.process(ctx, raw.Body, raw.Redelivered)
	if ack {
		raw.Ack(false)
		return
	}
	raw.Nack(false, requeue)
}

// process возвращает решение (ack, requeue) для тела сообщения.
func (c *Consumer) process(ctx context.Context, body []byte, redelivered bool) (ack, requeue bool) {
	var msg Message
	if err := json.Unmarshal(body, &msg); err != nil {
		c.logger.Error("malformed message, dead-lettering", "error", err)
		return false, false
	}

	c.logger.Debug("received message", "message_id", msg.ID, "type", msg.Type)

	err := c.handler(ctx, &msg)
	if err == nil {
		return true, false
	}

	c.logger.Error("handler failed",
		"message_id", msg.ID,
		"type", msg.Type,
		"redelivered", redelivered,
		"error", err,
	)
	if errors.Is(err, ErrPermanent) || redelivered {
		return false, false
	}
	return false, true
}
