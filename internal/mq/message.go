package mq

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/StockScanner/internal/domain"
)

// MessageType — тип сообщения.
type MessageType string

const (
	MessageTypeRunRequested MessageType = "run.requested"
	MessageTypeRunFinished  MessageType = "run.finished"
)

// Message — конверт сообщения.
type Message struct {
	ID        string          `json:"id"`
	Type      MessageType     `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp time.Time       `json:"timestamp"`
}

// NewMessage упаковывает payload в конверт.
func NewMessage(t MessageType, payload any) (*Message, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return &Message{
		ID:        uuid.NewString(),
		Type:      t,
		Payload:   data,
		Timestamp: time.Now().UTC(),
	}, nil
}

// Decode распаковывает payload в T.
func Decode[T any](msg *Message) (T, error) {
	var out T
	if err := json.Unmarshal(msg.Payload, &out); err != nil {
		return out, fmt.Errorf("unmarshal %s payload: %w", msg.Type, err)
	}
	return out, nil
}

// RunRequestedPayload — запрос ручного запуска.
// Trigger сформирован отправителем, поэтому повторная доставка
// несёт тот же IdempotencyKey.
type RunRequestedPayload struct {
	Trigger domain.Trigger `json:"trigger"`
}

// RunFinishedPayload — итог run. Секретов и outputs не содержит.
type RunFinishedPayload struct {
	RunID      uuid.UUID          `json:"run_id"`
	Trigger    domain.TriggerKind `json:"trigger"`
	Status     domain.RunStatus   `json:"status"`
	Error      string             `json:"error,omitempty"`
	DurationMs int64              `json:"duration_ms"`
	FinishedAt *time.Time         `json:"finished_at,omitempty"`
}

// NewRunFinishedPayload собирает payload из run.
func NewRunFinishedPayload(run *domain.Run) RunFinishedPayload {
	return RunFinishedPayload{
		RunID:      run.ID,
		Trigger:    run.Trigger,
		Status:     run.Status,
		Error:      run.Error,
		DurationMs: run.Duration().Milliseconds(),
		FinishedAt: run.FinishedAt,
	}
}
