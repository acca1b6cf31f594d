package engine

import (
	"github.com/shaiso/StockScanner/internal/domain"
)

// Node — узел графа стадий.
type Node struct {
	// Stage — определение стадии.
	Stage *domain.StageDef

	// InDegree — количество needs.
	InDegree int

	// Dependents — стадии, которые ждут эту.
	Dependents []*Node

	// index — позиция в Definition, задаёт порядок среди равноправных узлов.
	index int
}

// Order возвращает стадии в порядке выполнения (алгоритм Кана).
//
// Среди готовых узлов первым идёт тот, что объявлен раньше,
// поэтому порядок детерминирован. Возвращает ErrCyclicDependency при цикле.
func Order(def *domain.Definition) ([]*domain.StageDef, error) {
	nodes := make(map[string]*Node, len(def.Stages))
	list := make([]*Node, 0, len(def.Stages))

	for i := range def.Stages {
		n := &Node{Stage: &def.Stages[i], index: i}
		nodes[n.Stage.ID] = n
		list = append(list, n)
	}

	for _, n := range list {
		for _, need := range n.Stage.Needs {
			dep, ok := nodes[need]
			if !ok {
				return nil, NewValidationError(n.Stage.ID, "needs",
					"needs unknown stage: "+need, ErrMissingDependency)
			}
			dep.Dependents = append(dep.Dependents, n)
			n.InDegree++
		}
	}

	inDegree := make(map[string]int, len(list))
	var ready []*Node
	for _, n := range list {
		inDegree[n.Stage.ID] = n.InDegree
		if n.InDegree == 0 {
			ready = append(ready, n)
		}
	}

	order := make([]*domain.StageDef, 0, len(list))
	for len(ready) > 0 {
		// Берём узел с минимальным index
		best := 0
		for i := range ready {
			if ready[i].index < ready[best].index {
				best = i
			}
		}
		node := ready[best]
		ready = append(ready[:best], ready[best+1:]...)
		order = append(order, node.Stage)

		for _, dep := range node.Dependents {
			inDegree[dep.Stage.ID]--
			if inDegree[dep.Stage.ID] == 0 {
				ready = append(ready, dep)
			}
		}
	}

	if len(order) != len(list) {
		return nil, ErrCyclicDependency
	}
	return order, nil
}
