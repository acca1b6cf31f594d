package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shaiso/StockScanner/internal/domain"
	"github.com/shaiso/StockScanner/internal/mq"
	"github.com/shaiso/StockScanner/internal/pipeline"
	"github.com/shaiso/StockScanner/internal/repo"
	"github.com/shaiso/StockScanner/internal/telemetry"
	"github.com/shaiso/StockScanner/internal/trigger"
)

type fakeDispatcher struct {
	calls []string
	err   error
}

func (f *fakeDispatcher) Dispatch(_ context.Context, actor string) (domain.Trigger, error) {
	f.calls = append(f.calls, actor)
	if f.err != nil {
		return domain.Trigger{}, f.err
	}
	return domain.NewManualTrigger(actor, time.Now()), nil
}

type testServer struct {
	store      *repo.MemoryStore
	dispatcher *fakeDispatcher
	srv        *httptest.Server
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	sched, err := trigger.ParseCron("0 12 * * 1-5")
	if err != nil {
		t.Fatalf("ParseCron: %v", err)
	}

	ts := &testServer{
		store:      repo.NewMemoryStore(),
		dispatcher: &fakeDispatcher{},
	}
	h := NewHandler(Config{
		Runs:       ts.store,
		Dispatcher: ts.dispatcher,
		Schedule:   sched,
		Logger:     telemetry.Discard(),
	})

	mux := http.NewServeMux()
	h.RegisterRoutes(mux)
	ts.srv = httptest.NewServer(mux)
	t.Cleanup(ts.srv.Close)
	return ts
}

func (ts *testServer) seedRun(t *testing.T, status domain.RunStatus) *domain.Run {
	t.Helper()
	ctx := context.Background()

	run := domain.NewRun(domain.NewManualTrigger("alice", time.Now()))
	run.Status = status
	if err := ts.store.CreateRun(ctx, run); err != nil {
		t.Fatalf("CreateRun: %v", err)
	}

	quota := domain.NewStage(run.ID, "check-quota", domain.StageTypeQuotaCheck, 0)
	quota.MarkFailed("quota status 429", map[string]any{"status_code": 429})
	scanner := domain.NewStage(run.ID, "run-scanner", domain.StageTypeScanner, 1)
	scanner.MarkNotRun("dependency check-quota did not succeed")
	for _, s := range []*domain.Stage{scanner, quota} {
		if err := ts.store.CreateStage(ctx, s); err != nil {
			t.Fatalf("CreateStage: %v", err)
		}
	}
	return run
}

func do(t *testing.T, method, url, body string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp, data
}

func TestDispatchRun(t *testing.T) {
	ts := newTestServer(t)

	resp, body := do(t, http.MethodPost, ts.srv.URL+"/api/v1/runs", `{"actor":"alice"}`)
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("status = %d, body = %s", resp.StatusCode, body)
	}

	var got struct {
		Data DispatchResponse `json:"data"`
	}
	if err := json.Unmarshal(body, &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Data.Kind != string(domain.TriggerManual) {
		t.Errorf("kind = %q", got.Data.Kind)
	}
	if !strings.HasPrefix(got.Data.IdempotencyKey, "manual_") {
		t.Errorf("idempotency_key = %q", got.Data.IdempotencyKey)
	}
	if len(ts.dispatcher.calls) != 1 || ts.dispatcher.calls[0] != "alice" {
		t.Errorf("dispatcher calls = %v", ts.dispatcher.calls)
	}
}

func TestDispatchRun_EmptyBody(t *testing.T) {
	ts := newTestServer(t)

	resp, body := do(t, http.MethodPost, ts.srv.URL+"/api/v1/runs", "")
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("manual dispatch takes no parameters, status = %d, body = %s", resp.StatusCode, body)
	}
}

func TestDispatchRun_Errors(t *testing.T) {
	ts := newTestServer(t)

	resp, _ := do(t, http.MethodPost, ts.srv.URL+"/api/v1/runs", `{not json`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("bad body status = %d", resp.StatusCode)
	}

	ts.dispatcher.err = errors.New("broker down")
	resp, body := do(t, http.MethodPost, ts.srv.URL+"/api/v1/runs", `{}`)
	if resp.StatusCode != http.StatusInternalServerError {
		t.Errorf("dispatch failure status = %d", resp.StatusCode)
	}
	if strings.Contains(string(body), "broker down") {
		t.Errorf("internal error details leaked: %s", body)
	}
}

func TestDispatchRun_TransientFailuresAre503(t *testing.T) {
	ts := newTestServer(t)

	for _, err := range []error{
		fmt.Errorf("publish: %w", mq.ErrNoChannel),
		fmt.Errorf("launch manual run: %w", pipeline.ErrRunnerStopped),
		trigger.ErrNoLauncher,
	} {
		ts.dispatcher.err = err
		resp, body := do(t, http.MethodPost, ts.srv.URL+"/api/v1/runs", `{}`)
		if resp.StatusCode != http.StatusServiceUnavailable {
			t.Errorf("%v: status = %d", err, resp.StatusCode)
		}
		if !strings.Contains(string(body), string(ErrCodeUnavailable)) {
			t.Errorf("%v: body = %s", err, body)
		}
	}
}

func TestDispatchRun_NotConfigured(t *testing.T) {
	h := NewHandler(Config{Runs: repo.NewMemoryStore(), Logger: telemetry.Discard()})
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/runs", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestListRuns(t *testing.T) {
	ts := newTestServer(t)
	failed := ts.seedRun(t, domain.RunStatusFailed)
	ts.seedRun(t, domain.RunStatusSucceeded)

	resp, body := do(t, http.MethodGet, ts.srv.URL+"/api/v1/runs?status=FAILED", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, body = %s", resp.StatusCode, body)
	}

	var got struct {
		Data  []RunResponse `json:"data"`
		Total int           `json:"total"`
	}
	if err := json.Unmarshal(body, &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Total != 1 || got.Data[0].ID != failed.ID {
		t.Errorf("got %+v, want only run %s", got, failed.ID)
	}
}

func TestListRuns_ByIdempotencyKey(t *testing.T) {
	ts := newTestServer(t)
	run := ts.seedRun(t, domain.RunStatusSucceeded)

	_, body := do(t, http.MethodGet, ts.srv.URL+"/api/v1/runs?idempotency_key="+run.IdempotencyKey, "")
	var got struct {
		Data  []RunResponse `json:"data"`
		Total int           `json:"total"`
	}
	json.Unmarshal(body, &got)
	if got.Total != 1 || got.Data[0].ID != run.ID {
		t.Errorf("got %+v", got)
	}

	_, body = do(t, http.MethodGet, ts.srv.URL+"/api/v1/runs?idempotency_key=manual_missing", "")
	json.Unmarshal(body, &got)
	if got.Total != 0 {
		t.Errorf("unknown key should give empty list, got %+v", got)
	}
}

func TestListRuns_BadQuery(t *testing.T) {
	ts := newTestServer(t)

	for _, q := range []string{"status=DONE", "trigger=webhook", "limit=-1", "offset=x"} {
		resp, _ := do(t, http.MethodGet, ts.srv.URL+"/api/v1/runs?"+q, "")
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", q, resp.StatusCode)
		}
	}
}

func TestGetRun(t *testing.T) {
	ts := newTestServer(t)
	run := ts.seedRun(t, domain.RunStatusFailed)

	resp, body := do(t, http.MethodGet, ts.srv.URL+"/api/v1/runs/"+run.ID.String(), "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var got struct {
		Data RunResponse `json:"data"`
	}
	json.Unmarshal(body, &got)
	if got.Data.Status != string(domain.RunStatusFailed) || got.Data.Actor != "alice" {
		t.Errorf("got %+v", got.Data)
	}

	resp, body = do(t, http.MethodGet, ts.srv.URL+"/api/v1/runs/00000000-0000-0000-0000-000000000001", "")
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("missing run status = %d", resp.StatusCode)
	}
	var errResp ErrorResponse
	json.Unmarshal(body, &errResp)
	if errResp.Error.Code != ErrCodeNotFound {
		t.Errorf("error code = %q", errResp.Error.Code)
	}

	resp, _ = do(t, http.MethodGet, ts.srv.URL+"/api/v1/runs/not-a-uuid", "")
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("bad id status = %d", resp.StatusCode)
	}
}

func TestListStages_Ordered(t *testing.T) {
	ts := newTestServer(t)
	run := ts.seedRun(t, domain.RunStatusFailed)

	resp, body := do(t, http.MethodGet, ts.srv.URL+"/api/v1/runs/"+run.ID.String()+"/stages", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	var got struct {
		Data []StageResponse `json:"data"`
	}
	json.Unmarshal(body, &got)
	if len(got.Data) != 2 {
		t.Fatalf("stages = %d", len(got.Data))
	}
	if got.Data[0].Type != domain.StageTypeQuotaCheck || got.Data[0].Status != string(domain.StageStatusFailed) {
		t.Errorf("first stage = %+v", got.Data[0])
	}
	if got.Data[1].Status != string(domain.StageStatusNotRun) {
		t.Errorf("scanner stage status = %q, want NOT_RUN", got.Data[1].Status)
	}
}

func TestGetSchedule(t *testing.T) {
	ts := newTestServer(t)

	resp, body := do(t, http.MethodGet, ts.srv.URL+"/api/v1/schedule?count=7", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	var got struct {
		Data ScheduleResponse `json:"data"`
	}
	json.Unmarshal(body, &got)
	if got.Data.Cron != "0 12 * * 1-5" || got.Data.Timezone != "UTC" {
		t.Errorf("got %+v", got.Data)
	}
	if len(got.Data.Next) != 7 {
		t.Fatalf("next = %d, want 7", len(got.Data.Next))
	}
	for _, at := range got.Data.Next {
		if wd := at.UTC().Weekday(); wd == time.Saturday || wd == time.Sunday {
			t.Errorf("fire time on weekend: %s", at)
		}
		if at.UTC().Hour() != 12 || at.Minute() != 0 {
			t.Errorf("fire time not at 12:00 UTC: %s", at)
		}
	}
}

func TestHealthAndMetrics(t *testing.T) {
	ts := newTestServer(t)

	resp, body := do(t, http.MethodGet, ts.srv.URL+"/healthz", "")
	if resp.StatusCode != http.StatusOK || !strings.HasPrefix(string(body), "ok") {
		t.Errorf("healthz = %d %q", resp.StatusCode, body)
	}

	do(t, http.MethodGet, ts.srv.URL+"/api/v1/runs", "")
	resp, body = do(t, http.MethodGet, ts.srv.URL+"/metrics", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("metrics status = %d", resp.StatusCode)
	}
	if !strings.Contains(string(body), "stockscan_http_requests_total") {
		t.Error("metrics should expose stockscan_http_requests_total")
	}
}
