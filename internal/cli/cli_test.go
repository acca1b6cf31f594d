package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/spf13/cobra"
)

func writeData(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{"data": v})
}

func writeList(w http.ResponseWriter, v any, total int) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"data": v, "total": total})
}

// fakeAPI отвечает как StockScanner API. Run по ключу становится
// завершённым со второго запроса.
func fakeAPI(t *testing.T) *httptest.Server {
	t.Helper()
	var polls atomic.Int32

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/runs", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Actor string `json:"actor"`
		}
		json.NewDecoder(r.Body).Decode(&req)
		writeData(w, http.StatusAccepted, DispatchResponse{
			Kind: "manual", Actor: req.Actor, IdempotencyKey: "manual_abc",
			FiredAt: "2026-10-14T12:00:00Z",
		})
	})
	mux.HandleFunc("GET /api/v1/runs", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("idempotency_key") == "manual_abc" {
			status := "RUNNING"
			if polls.Add(1) > 1 {
				status = "FAILED"
			}
			writeList(w, []RunResponse{{ID: "run-1", Trigger: "manual", Status: status, IdempotencyKey: "manual_abc"}}, 1)
			return
		}
		if s := r.URL.Query().Get("status"); s != "" && s != "SUCCEEDED" {
			writeList(w, []RunResponse{}, 0)
			return
		}
		writeList(w, []RunResponse{{ID: "run-2", Trigger: "schedule", Status: "SUCCEEDED"}}, 1)
	})
	mux.HandleFunc("GET /api/v1/runs/{id}", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("id") != "run-2" {
			w.WriteHeader(http.StatusNotFound)
			json.NewEncoder(w).Encode(map[string]any{"error": map[string]string{"code": "NOT_FOUND", "message": "run not found"}})
			return
		}
		writeData(w, http.StatusOK, RunResponse{ID: "run-2", Status: "SUCCEEDED"})
	})
	mux.HandleFunc("GET /api/v1/runs/{id}/stages", func(w http.ResponseWriter, r *http.Request) {
		writeList(w, []StageResponse{
			{Name: "check-quota", Type: "quota_check", Position: 0, Status: "FAILED", Error: "quota status 429"},
			{Name: "run-scanner", Type: "scanner", Position: 1, Status: "NOT_RUN"},
		}, 2)
	})
	mux.HandleFunc("GET /api/v1/schedule", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("count") != "2" {
			t.Errorf("count = %q", r.URL.Query().Get("count"))
		}
		writeData(w, http.StatusOK, ScheduleResponse{
			Cron: "0 12 * * 1-5", Timezone: "UTC",
			Next: []string{"2026-10-16T12:00:00Z", "2026-10-19T12:00:00Z"},
		})
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func execute(t *testing.T, cmd *cobra.Command, args ...string) error {
	t.Helper()
	cmd.SetArgs(args)
	return cmd.ExecuteContext(context.Background())
}

type harness struct {
	stdout bytes.Buffer
	stderr bytes.Buffer
	json   bool
}

func (h *harness) root(t *testing.T, apiURL string, local LocalExecutor) *cobra.Command {
	root := &cobra.Command{Use: "stockscan", SilenceUsage: true, SilenceErrors: true}
	clientFn := func() *Client { return NewClient(apiURL) }
	outputFn := func() *Output { return NewOutputTo(h.json, &h.stdout, &h.stderr) }
	root.AddCommand(
		NewRunCmd(clientFn, outputFn, local),
		NewScheduleCmd(clientFn, outputFn),
	)
	return root
}

func TestRunDispatch(t *testing.T) {
	srv := fakeAPI(t)
	h := &harness{}

	if err := execute(t, h.root(t, srv.URL, nil), "run", "dispatch", "--actor", "alice"); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if !strings.Contains(h.stderr.String(), "manual_abc") {
		t.Errorf("stderr = %q", h.stderr.String())
	}
	if !strings.Contains(h.stdout.String(), "alice") {
		t.Errorf("stdout = %q", h.stdout.String())
	}
}

func TestRunDispatch_WaitReportsFailure(t *testing.T) {
	srv := fakeAPI(t)
	h := &harness{}

	err := execute(t, h.root(t, srv.URL, nil), "run", "dispatch", "--wait", "--timeout", "30s", "--poll", "10ms")
	if err == nil || !strings.Contains(err.Error(), "FAILED") {
		t.Fatalf("err = %v, want failed run error", err)
	}
	if !strings.Contains(h.stdout.String(), "run-1") {
		t.Errorf("stdout = %q", h.stdout.String())
	}
}

func TestRunList_JSON(t *testing.T) {
	srv := fakeAPI(t)
	h := &harness{json: true}

	if err := execute(t, h.root(t, srv.URL, nil), "run", "list", "--status", "SUCCEEDED"); err != nil {
		t.Fatalf("list: %v", err)
	}
	var runs []RunResponse
	if err := json.Unmarshal(h.stdout.Bytes(), &runs); err != nil {
		t.Fatalf("stdout is not JSON: %v\n%s", err, h.stdout.String())
	}
	if len(runs) != 1 || runs[0].ID != "run-2" {
		t.Errorf("runs = %+v", runs)
	}
}

func TestRunShow_NotFound(t *testing.T) {
	srv := fakeAPI(t)
	h := &harness{}

	err := execute(t, h.root(t, srv.URL, nil), "run", "show", "missing")
	if err == nil || !strings.Contains(err.Error(), "NOT_FOUND") {
		t.Fatalf("err = %v", err)
	}
}

func TestRunStages_Table(t *testing.T) {
	srv := fakeAPI(t)
	h := &harness{}

	if err := execute(t, h.root(t, srv.URL, nil), "run", "stages", "run-1"); err != nil {
		t.Fatalf("stages: %v", err)
	}
	out := h.stdout.String()
	for _, want := range []string{"POS", "check-quota", "NOT_RUN", "quota status 429"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestScheduleNext(t *testing.T) {
	srv := fakeAPI(t)
	h := &harness{}

	if err := execute(t, h.root(t, srv.URL, nil), "schedule", "next", "--count", "2"); err != nil {
		t.Fatalf("schedule next: %v", err)
	}
	if !strings.Contains(h.stdout.String(), "2026-10-19T12:00:00Z") {
		t.Errorf("stdout = %q", h.stdout.String())
	}
}

func TestRunLocal(t *testing.T) {
	var gotActor string
	exec := func(_ context.Context, actor string) (*LocalResult, error) {
		gotActor = actor
		return &LocalResult{
			Run:    RunResponse{ID: "local-1", Trigger: "manual", Status: "SUCCEEDED"},
			Stages: []StageResponse{{Name: "check-quota", Status: "SUCCEEDED"}, {Name: "run-scanner", Position: 1, Status: "SUCCEEDED"}},
		}, nil
	}
	h := &harness{}

	if err := execute(t, h.root(t, "http://unused", exec), "run", "local", "--actor", "cron-box"); err != nil {
		t.Fatalf("local: %v", err)
	}
	if gotActor != "cron-box" {
		t.Errorf("actor = %q", gotActor)
	}
	if !strings.Contains(h.stdout.String(), "run-scanner") {
		t.Errorf("stdout = %q", h.stdout.String())
	}
}

func TestRunLocal_FailedRunIsError(t *testing.T) {
	exec := func(context.Context, string) (*LocalResult, error) {
		return &LocalResult{Run: RunResponse{ID: "local-2", Status: "FAILED", Error: "stage check-quota failed"}}, nil
	}
	h := &harness{}

	err := execute(t, h.root(t, "http://unused", exec), "run", "local")
	if err == nil || !strings.Contains(err.Error(), "FAILED") {
		t.Fatalf("err = %v", err)
	}
}

func TestRunLocal_NotRegisteredWithoutExecutor(t *testing.T) {
	h := &harness{}
	cmd := NewRunCmd(func() *Client { return nil }, func() *Output { return NewOutputTo(false, &h.stdout, &h.stderr) }, nil)
	for _, c := range cmd.Commands() {
		if c.Name() == "local" {
			t.Fatal("local command registered without executor")
		}
	}
}

func TestOutput_StageErrorsFitOneLine(t *testing.T) {
	var stdout, stderr bytes.Buffer
	out := NewOutputTo(false, &stdout, &stderr)

	long := "scanner: execute: exit status 1\nTraceback (most recent call last):\n" + strings.Repeat("x", 200)
	out.Stages([]StageResponse{{Name: "run-scanner", Type: "scanner", Status: "FAILED", Error: long}})

	lines := strings.Split(strings.TrimSpace(stdout.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("table has %d lines, want 3:\n%s", len(lines), stdout.String())
	}
	if !strings.Contains(lines[2], "Traceback") || !strings.HasSuffix(lines[2], "...") {
		t.Errorf("row = %q", lines[2])
	}

	stdout.Reset()
	NewOutputTo(true, &stdout, &stderr).Stages([]StageResponse{{Name: "run-scanner", Error: long}})
	var stages []StageResponse
	if err := json.Unmarshal(stdout.Bytes(), &stages); err != nil || stages[0].Error != long {
		t.Errorf("json mode must keep the full error: %v", err)
	}
}

func TestOutput_Outcome(t *testing.T) {
	var stdout, stderr bytes.Buffer
	out := NewOutputTo(false, &stdout, &stderr)

	if err := out.Outcome(RunResponse{ID: "r1", Status: "SUCCEEDED"}); err != nil {
		t.Errorf("succeeded run: %v", err)
	}
	if !strings.Contains(stderr.String(), "r1 succeeded") {
		t.Errorf("stderr = %q", stderr.String())
	}

	err := out.Outcome(RunResponse{ID: "r2", Status: "SKIPPED", Error: "another run holds the scanner lock"})
	if err == nil || !strings.Contains(err.Error(), "SKIPPED") || !strings.Contains(err.Error(), "scanner lock") {
		t.Errorf("err = %v", err)
	}
}
