package pipeline

import (
	"strings"

	"github.com/shaiso/StockScanner/internal/domain"
)

// runState — результаты стадий текущего run.
type runState struct {
	status   map[string]domain.StageStatus
	firstErr string
}

func newRunState() *runState {
	return &runState{status: make(map[string]domain.StageStatus)}
}

// ready проверяет, что все needs стадии завершились успешно.
// Возвращает список неуспешных needs.
func (s *runState) ready(def *domain.StageDef) (bool, []string) {
	var blocked []string
	for _, need := range def.Needs {
		if s.status[need] != domain.StageStatusSucceeded {
			blocked = append(blocked, need)
		}
	}
	return len(blocked) == 0, blocked
}

func (s *runState) record(stage *domain.Stage) {
	s.status[stage.Name] = stage.Status
	if stage.Status == domain.StageStatusFailed && s.firstErr == "" {
		s.firstErr = "stage " + stage.Name + ": " + stage.Error
	}
}

// succeeded — логическое И по всем стадиям.
func (s *runState) succeeded() bool {
	for _, st := range s.status {
		if st != domain.StageStatusSucceeded {
			return false
		}
	}
	return true
}

// failure возвращает текст первой ошибки или перечень не выполненных стадий.
func (s *runState) failure() string {
	if s.firstErr != "" {
		return s.firstErr
	}
	var notRun []string
	for name, st := range s.status {
		if st != domain.StageStatusSucceeded {
			notRun = append(notRun, name)
		}
	}
	return "stages did not succeed: " + strings.Join(notRun, ", ")
}
