package repo

import "github.com/shaiso/StockScanner/internal/domain"

// Лимиты выборки runs.
const (
	DefaultListLimit = 20
	MaxListLimit     = 200
)

// RunFilter — параметры фильтрации runs.
type RunFilter struct {
	Status  domain.RunStatus
	Trigger domain.TriggerKind
	Limit   int
	Offset  int
}

func (f RunFilter) normalize() RunFilter {
	if f.Limit <= 0 {
		f.Limit = DefaultListLimit
	}
	if f.Limit > MaxListLimit {
		f.Limit = MaxListLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return f
}

func (f RunFilter) match(run *domain.Run) bool {
	if f.Status != "" && run.Status != f.Status {
		return false
	}
	if f.Trigger != "" && run.Trigger != f.Trigger {
		return false
	}
	return true
}
