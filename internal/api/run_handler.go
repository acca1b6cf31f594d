package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/shaiso/StockScanner/internal/domain"
	"github.com/shaiso/StockScanner/internal/repo"
)

// DispatchRun ставит ручной запуск pipeline.
// POST /api/v1/runs
//
// Ответ 202: run создаётся асинхронно, его можно найти
// по idempotency_key через GET /api/v1/runs?idempotency_key=...
func (h *Handler) DispatchRun(w http.ResponseWriter, r *http.Request) {
	if h.dispatcher == nil {
		Unavailable(w, "manual dispatch is not configured")
		return
	}

	var req DispatchRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		BadRequest(w, "invalid request body")
		return
	}

	t, err := h.dispatcher.Dispatch(r.Context(), req.Actor)
	if HandleDispatchError(w, h.logger, err) {
		return
	}

	h.logger.Info("manual run dispatched",
		"actor", t.Actor,
		"idempotency_key", t.IdempotencyKey,
	)

	Accepted(w, DispatchFromTrigger(t))
}

// ListRuns возвращает список runs с фильтрацией.
// GET /api/v1/runs?status=...&trigger=...&idempotency_key=...&limit=...&offset=...
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	if key := q.Get("idempotency_key"); key != "" {
		run, err := h.runs.GetRunByIdempotencyKey(r.Context(), key)
		if errors.Is(err, repo.ErrNotFound) {
			List(w, []RunResponse{}, 0)
			return
		}
		if HandleRepoError(w, h.logger, err, "") {
			return
		}
		List(w, []RunResponse{RunFromDomain(*run)}, 1)
		return
	}

	filter := repo.RunFilter{}

	if status := q.Get("status"); status != "" {
		s := domain.RunStatus(status)
		if !validRunStatus(s) {
			BadRequest(w, "invalid status")
			return
		}
		filter.Status = s
	}

	if kind := q.Get("trigger"); kind != "" {
		k := domain.TriggerKind(kind)
		if k != domain.TriggerSchedule && k != domain.TriggerManual {
			BadRequest(w, "invalid trigger")
			return
		}
		filter.Trigger = k
	}

	var ok bool
	if filter.Limit, ok = queryInt(q.Get("limit")); !ok {
		BadRequest(w, "invalid limit")
		return
	}
	if filter.Offset, ok = queryInt(q.Get("offset")); !ok {
		BadRequest(w, "invalid offset")
		return
	}

	runs, err := h.runs.ListRuns(r.Context(), filter)
	if HandleRepoError(w, h.logger, err, "") {
		return
	}

	result := make([]RunResponse, len(runs))
	for i, run := range runs {
		result[i] = RunFromDomain(run)
	}

	List(w, result, len(result))
}

// GetRun возвращает run по ID.
// GET /api/v1/runs/{id}
func (h *Handler) GetRun(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid run id")
		return
	}

	run, err := h.runs.GetRun(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "run not found") {
		return
	}

	Success(w, RunFromDomain(*run))
}

// ListStages возвращает стадии run в порядке выполнения.
// GET /api/v1/runs/{id}/stages
func (h *Handler) ListStages(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid run id")
		return
	}

	// Проверяем, что run существует
	if _, err := h.runs.GetRun(r.Context(), id); HandleRepoError(w, h.logger, err, "run not found") {
		return
	}

	stages, err := h.runs.ListStages(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "") {
		return
	}

	result := make([]StageResponse, len(stages))
	for i, s := range stages {
		result[i] = StageFromDomain(s)
	}

	List(w, result, len(result))
}

func validRunStatus(s domain.RunStatus) bool {
	switch s {
	case domain.RunStatusPending, domain.RunStatusRunning, domain.RunStatusSucceeded,
		domain.RunStatusFailed, domain.RunStatusSkipped:
		return true
	}
	return false
}

// queryInt разбирает неотрицательное число. Пустая строка — 0.
func queryInt(s string) (int, bool) {
	if s == "" {
		return 0, true
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}
