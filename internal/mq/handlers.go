package mq

import (
	"context"
	"fmt"

	"github.com/shaiso/StockScanner/internal/domain"
)

// Launcher запускает run по trigger.
type Launcher interface {
	Launch(ctx context.Context, t domain.Trigger) error
}

// RunRequestedHandler передаёт запросы ручного запуска в Launcher.
func RunRequestedHandler(l Launcher) Handler {
	return func(ctx context.Context, msg *Message) error {
		if msg.Type != MessageTypeRunRequested {
			return fmt.Errorf("%w: unexpected type %q", ErrPermanent, msg.Type)
		}

		p, err := Decode[RunRequestedPayload](msg)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrPermanent, err)
		}
		if p.Trigger.Kind != domain.TriggerManual || p.Trigger.IdempotencyKey == "" {
			return fmt.Errorf("%w: invalid trigger", ErrPermanent)
		}

		return l.Launch(ctx, p.Trigger)
	}
}
