package lock

import (
	"context"
	"sync"
)

// MemoryGate — блокировка в пределах одного процесса.
type MemoryGate struct {
	mu   sync.Mutex
	held map[string]bool
}

// NewMemoryGate создаёт MemoryGate.
func NewMemoryGate() *MemoryGate {
	return &MemoryGate{held: make(map[string]bool)}
}

// TryAcquire реализует Gate.
func (g *MemoryGate) TryAcquire(_ context.Context, key string) (Lease, bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.held[key] {
		return nil, false, nil
	}
	g.held[key] = true
	return &memoryLease{gate: g, key: key, lost: make(chan struct{})}, true, nil
}

// Held возвращает true, если ключ сейчас захвачен.
func (g *MemoryGate) Held(key string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.held[key]
}

type memoryLease struct {
	gate *MemoryGate
	key  string
	lost chan struct{}
	once sync.Once
}

// Lost реализует Lease. Блокировка в памяти не теряется.
func (l *memoryLease) Lost() <-chan struct{} {
	return l.lost
}

func (l *memoryLease) Release(_ context.Context) error {
	l.once.Do(func() {
		l.gate.mu.Lock()
		delete(l.gate.held, l.key)
		l.gate.mu.Unlock()
	})
	return nil
}
