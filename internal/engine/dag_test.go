package engine

import (
	"errors"
	"testing"

	"github.com/shaiso/StockScanner/internal/domain"
)

func TestOrder_DefaultDefinition(t *testing.T) {
	def := DefaultDefinition()

	order, err := Order(def)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(order) != 2 {
		t.Fatalf("expected 2 stages, got %d", len(order))
	}
	if order[0].Type != domain.StageTypeQuotaCheck {
		t.Errorf("quota check should run first, got %s", order[0].Type)
	}
	if order[1].Type != domain.StageTypeScanner {
		t.Errorf("scanner should run second, got %s", order[1].Type)
	}
}

func TestOrder_DeclaredOutOfOrder(t *testing.T) {
	// scanner объявлен первым, но зависит от quota
	def := &domain.Definition{
		Stages: []domain.StageDef{
			{ID: "scan", Type: domain.StageTypeScanner, Needs: []string{"quota"}},
			{ID: "quota", Type: domain.StageTypeQuotaCheck},
		},
	}

	order, err := Order(def)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if order[0].ID != "quota" || order[1].ID != "scan" {
		t.Errorf("expected quota → scan, got %s → %s", order[0].ID, order[1].ID)
	}
}

func TestOrder_Cycle(t *testing.T) {
	def := &domain.Definition{
		Stages: []domain.StageDef{
			{ID: "A", Type: domain.StageTypeQuotaCheck, Needs: []string{"B"}},
			{ID: "B", Type: domain.StageTypeScanner, Needs: []string{"A"}},
		},
	}

	_, err := Order(def)
	if !errors.Is(err, ErrCyclicDependency) {
		t.Errorf("expected ErrCyclicDependency, got %v", err)
	}
}

func TestOrder_UnknownNeed(t *testing.T) {
	def := &domain.Definition{
		Stages: []domain.StageDef{
			{ID: "A", Type: domain.StageTypeScanner, Needs: []string{"missing"}},
		},
	}

	_, err := Order(def)
	if !errors.Is(err, ErrMissingDependency) {
		t.Errorf("expected ErrMissingDependency, got %v", err)
	}
}
