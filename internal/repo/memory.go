package repo

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/shaiso/StockScanner/internal/domain"
)

// MemoryStore — история запусков в памяти.
// Возвращает копии, чтобы вызывающий код не менял хранимые записи.
type MemoryStore struct {
	mu     sync.RWMutex
	runs   map[uuid.UUID]domain.Run
	keys   map[string]uuid.UUID
	stages map[uuid.UUID]domain.Stage
}

// NewMemoryStore создаёт пустой MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		runs:   make(map[uuid.UUID]domain.Run),
		keys:   make(map[string]uuid.UUID),
		stages: make(map[uuid.UUID]domain.Stage),
	}
}

func (m *MemoryStore) CreateRun(_ context.Context, run *domain.Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.runs[run.ID]; ok {
		return fmt.Errorf("insert run: %w", ErrAlreadyExists)
	}
	if run.IdempotencyKey != "" {
		if _, ok := m.keys[run.IdempotencyKey]; ok {
			return fmt.Errorf("insert run: %w", ErrAlreadyExists)
		}
		m.keys[run.IdempotencyKey] = run.ID
	}
	m.runs[run.ID] = *run
	return nil
}

func (m *MemoryStore) UpdateRun(_ context.Context, run *domain.Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.runs[run.ID]; !ok {
		return ErrNotFound
	}
	m.runs[run.ID] = *run
	return nil
}

func (m *MemoryStore) GetRun(_ context.Context, id uuid.UUID) (*domain.Run, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	run, ok := m.runs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &run, nil
}

func (m *MemoryStore) GetRunByIdempotencyKey(_ context.Context, key string) (*domain.Run, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.keys[key]
	if !ok {
		return nil, ErrNotFound
	}
	run := m.runs[id]
	return &run, nil
}

func (m *MemoryStore) ListRuns(_ context.Context, filter RunFilter) ([]domain.Run, error) {
	filter = filter.normalize()

	m.mu.RLock()
	runs := make([]domain.Run, 0, len(m.runs))
	for _, run := range m.runs {
		if filter.match(&run) {
			runs = append(runs, run)
		}
	}
	m.mu.RUnlock()

	sort.Slice(runs, func(i, j int) bool {
		return runs[i].CreatedAt.After(runs[j].CreatedAt)
	})

	if filter.Offset >= len(runs) {
		return nil, nil
	}
	runs = runs[filter.Offset:]
	if len(runs) > filter.Limit {
		runs = runs[:filter.Limit]
	}
	return runs, nil
}

func (m *MemoryStore) CreateStage(_ context.Context, stage *domain.Stage) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.stages[stage.ID]; ok {
		return fmt.Errorf("insert stage: %w", ErrAlreadyExists)
	}
	m.stages[stage.ID] = copyStage(stage)
	return nil
}

func (m *MemoryStore) UpdateStage(_ context.Context, stage *domain.Stage) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.stages[stage.ID]; !ok {
		return ErrNotFound
	}
	m.stages[stage.ID] = copyStage(stage)
	return nil
}

func (m *MemoryStore) ListStages(_ context.Context, runID uuid.UUID) ([]domain.Stage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var stages []domain.Stage
	for _, s := range m.stages {
		if s.RunID == runID {
			stages = append(stages, s)
		}
	}
	sort.Slice(stages, func(i, j int) bool {
		return stages[i].Position < stages[j].Position
	})
	return stages, nil
}

func copyStage(s *domain.Stage) domain.Stage {
	c := *s
	if s.Outputs != nil {
		c.Outputs = make(map[string]any, len(s.Outputs))
		for k, v := range s.Outputs {
			c.Outputs[k] = v
		}
	}
	return c
}
