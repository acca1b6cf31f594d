package mq

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/shaiso/StockScanner/internal/domain"
	"github.com/shaiso/StockScanner/internal/telemetry"
)

type launcherFunc func(ctx context.Context, t domain.Trigger) error

func (f launcherFunc) Launch(ctx context.Context, t domain.Trigger) error { return f(ctx, t) }

func requestBody(t *testing.T, trig domain.Trigger) []byte {
	t.Helper()
	msg, err := NewMessage(MessageTypeRunRequested, RunRequestedPayload{Trigger: trig})
	if err != nil {
		t.Fatal(err)
	}
	body, _ := json.Marshal(msg)
	return body
}

func TestRunRequestedHandler_LaunchesSameTrigger(t *testing.T) {
	want := domain.NewManualTrigger("alice", time.Now())

	var got domain.Trigger
	h := RunRequestedHandler(launcherFunc(func(_ context.Context, t domain.Trigger) error {
		got = t
		return nil
	}))

	var msg Message
	json.Unmarshal(requestBody(t, want), &msg)
	if err := h(context.Background(), &msg); err != nil {
		t.Fatalf("handler: %v", err)
	}
	if got.IdempotencyKey != want.IdempotencyKey || got.Actor != "alice" {
		t.Errorf("launched %+v, want %+v", got, want)
	}
}

func TestRunRequestedHandler_RejectsInvalid(t *testing.T) {
	h := RunRequestedHandler(launcherFunc(func(context.Context, domain.Trigger) error {
		t.Fatal("launcher must not be called")
		return nil
	}))

	msg, _ := NewMessage(MessageTypeRunFinished, map[string]string{})
	if err := h(context.Background(), msg); !errors.Is(err, ErrPermanent) {
		t.Errorf("wrong type: expected ErrPermanent, got %v", err)
	}

	sched := domain.NewScheduleTrigger(time.Now(), time.Now())
	msg, _ = NewMessage(MessageTypeRunRequested, RunRequestedPayload{Trigger: sched})
	if err := h(context.Background(), msg); !errors.Is(err, ErrPermanent) {
		t.Errorf("schedule trigger: expected ErrPermanent, got %v", err)
	}
}

func TestConsumer_AckNackDecisions(t *testing.T) {
	transient := errors.New("store unavailable")

	tests := []struct {
		name        string
		body        []byte
		handlerErr  error
		redelivered bool
		wantAck     bool
		wantRequeue bool
	}{
		{"success", requestBody(t, domain.NewManualTrigger("", time.Now())), nil, false, true, false},
		{"malformed", []byte("{"), nil, false, false, false},
		{"transient first delivery", requestBody(t, domain.NewManualTrigger("", time.Now())), transient, false, false, true},
		{"transient redelivered", requestBody(t, domain.NewManualTrigger("", time.Now())), transient, true, false, false},
		{"permanent", requestBody(t, domain.NewManualTrigger("", time.Now())), ErrPermanent, false, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewConsumer(nil, telemetry.Discard(), ConsumerConfig{
				Queue: QueueRunsRequested,
				Handler: func(context.Context, *Message) error {
					return tt.handlerErr
				},
			})

			ack, requeue := c.process(context.Background(), tt.body, tt.redelivered)
			if ack != tt.wantAck || requeue != tt.wantRequeue {
				t.Errorf("process = (ack=%v, requeue=%v), want (%v, %v)", ack, requeue, tt.wantAck, tt.wantRequeue)
			}
		})
	}
}

func TestRunFinishedPayload(t *testing.T) {
	run := domain.NewRun(domain.NewManualTrigger("bob", time.Now()))
	run.MarkRunning()
	run.MarkFailed("stage check-quota: quota endpoint returned status 429")

	p := NewRunFinishedPayload(run)
	if p.RunID != run.ID || p.Status != domain.RunStatusFailed || p.Trigger != domain.TriggerManual {
		t.Errorf("unexpected payload: %+v", p)
	}

	msg, err := NewMessage(MessageTypeRunFinished, p)
	if err != nil {
		t.Fatal(err)
	}
	back, err := Decode[RunFinishedPayload](msg)
	if err != nil {
		t.Fatal(err)
	}
	if back.Error != run.Error {
		t.Errorf("error = %q", back.Error)
	}
}

func TestPublisher_DisconnectedReturnsNoChannel(t *testing.T) {
	p := NewPublisher(&Connection{}, telemetry.Discard())

	trig := domain.NewManualTrigger("alice", time.Now())
	if err := p.PublishRunRequested(context.Background(), trig); !errors.Is(err, ErrNoChannel) {
		t.Errorf("PublishRunRequested: expected ErrNoChannel, got %v", err)
	}

	got, err := p.Dispatch(context.Background(), "bob")
	if !errors.Is(err, ErrNoChannel) {
		t.Errorf("Dispatch: expected ErrNoChannel, got %v", err)
	}
	if got.Kind != domain.TriggerManual || got.Actor != "bob" {
		t.Errorf("trigger = %+v", got)
	}
}
