package lock

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// DefaultKey — ключ ресурса pipeline сканера.
const DefaultKey = "stock-scanner"

var (
	// ErrBusy — ресурс занят другим run.
	ErrBusy = errors.New("resource is locked by another run")

	// ErrUnknownPolicy — неизвестная политика пересечения.
	ErrUnknownPolicy = errors.New("unknown overlap policy")

	// ErrUnknownBackend — неизвестный backend блокировки.
	ErrUnknownBackend = errors.New("unknown lock backend")
)

// Lease — захваченная блокировка.
type Lease interface {
	// Release освобождает блокировку. Повторный вызов безопасен.
	Release(ctx context.Context) error

	// Lost закрывается, если блокировка потеряна до Release
	// (истёк TTL, разорвана сессия). Release канал не закрывает.
	Lost() <-chan struct{}
}

// Gate — неблокирующий захват ресурса.
type Gate interface {
	// TryAcquire пытается захватить ключ.
	// Возвращает (nil, false, nil), если ключ занят.
	TryAcquire(ctx context.Context, key string) (Lease, bool, error)
}

// Policy — поведение при пересечении запусков.
type Policy string

const (
	// PolicySkip — пересекающийся run пропускается.
	PolicySkip Policy = "skip"

	// PolicyWait — пересекающийся run ждёт освобождения ресурса.
	PolicyWait Policy = "wait"
)

// ParsePolicy разбирает политику. Пустая строка — PolicySkip.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(s) {
	case "", PolicySkip:
		return PolicySkip, nil
	case PolicyWait:
		return PolicyWait, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownPolicy, s)
	}
}

// Acquire захватывает ключ согласно политике.
//
// PolicySkip: одна попытка, при занятом ключе возвращает ErrBusy.
// PolicyWait: опрашивает gate с интервалом poll до захвата или отмены ctx.
func Acquire(ctx context.Context, gate Gate, key string, policy Policy, poll time.Duration) (Lease, error) {
	if poll <= 0 {
		poll = time.Second
	}

	for {
		lease, ok, err := gate.TryAcquire(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("acquire %s: %w", key, err)
		}
		if ok {
			return lease, nil
		}
		if policy != PolicyWait {
			return nil, ErrBusy
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("wait for %s: %w", key, ctx.Err())
		case <-time.After(poll):
		}
	}
}
