package stages

import (
	"fmt"
	"sort"
	"sync"
)

// Registry — реестр типов стадий. Потокобезопасен.
type Registry struct {
	mu     sync.RWMutex
	stages map[string]Stage
}

// NewRegistry создаёт реестр и регистрирует переданные стадии.
func NewRegistry(stages ...Stage) *Registry {
	r := &Registry{stages: make(map[string]Stage)}
	for _, s := range stages {
		r.Register(s)
	}
	return r
}

// Register регистрирует стадию. Стадия того же типа перезаписывается.
func (r *Registry) Register(s Stage) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stages[s.Name()] = s
}

// Get возвращает стадию по типу.
func (r *Registry) Get(stageType string) (Stage, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.stages[stageType]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrStageNotFound, stageType)
	}
	return s, nil
}

// Types возвращает отсортированный список зарегистрированных типов.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]string, 0, len(r.stages))
	for t := range r.stages {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}
