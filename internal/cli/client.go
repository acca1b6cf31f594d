package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// --- Response types (дублируются из api/dto.go, CLI не импортирует internal/api) ---

// DispatchResponse — принятый ручной запуск.
type DispatchResponse struct {
	Kind           string `json:"kind"`
	Actor          string `json:"actor,omitempty"`
	IdempotencyKey string `json:"idempotency_key"`
	FiredAt        string `json:"fired_at"`
}

// RunResponse — run из API.
type RunResponse struct {
	ID             string `json:"id"`
	Trigger        string `json:"trigger"`
	ScheduledAt    string `json:"scheduled_at,omitempty"`
	Actor          string `json:"actor,omitempty"`
	Status         string `json:"status"`
	StartedAt      string `json:"started_at,omitempty"`
	FinishedAt     string `json:"finished_at,omitempty"`
	DurationMs     int64  `json:"duration_ms,omitempty"`
	Error          string `json:"error,omitempty"`
	IdempotencyKey string `json:"idempotency_key,omitempty"`
	ManifestDigest string `json:"manifest_digest,omitempty"`
	CreatedAt      string `json:"created_at"`
}

// Finished возвращает true для терминальных статусов.
func (r RunResponse) Finished() bool {
	switch r.Status {
	case "SUCCEEDED", "FAILED", "SKIPPED":
		return true
	}
	return false
}

// StageResponse — стадия run из API.
type StageResponse struct {
	ID         string         `json:"id"`
	RunID      string         `json:"run_id"`
	Name       string         `json:"name"`
	Type       string         `json:"type"`
	Position   int            `json:"position"`
	Status     string         `json:"status"`
	Outputs    map[string]any `json:"outputs,omitempty"`
	StartedAt  string         `json:"started_at,omitempty"`
	FinishedAt string         `json:"finished_at,omitempty"`
	Error      string         `json:"error,omitempty"`
	CreatedAt  string         `json:"created_at"`
}

// ScheduleResponse — расписание из API.
type ScheduleResponse struct {
	Cron     string   `json:"cron"`
	Timezone string   `json:"timezone"`
	Next     []string `json:"next"`
}

// ListRunsOpts — параметры фильтрации runs.
type ListRunsOpts struct {
	Status         string
	Trigger        string
	IdempotencyKey string
	Limit          int
}

// --- API response wrappers ---

type dataResponse struct {
	Data json.RawMessage `json:"data"`
}

type listResponse struct {
	Data  json.RawMessage `json:"data"`
	Total int             `json:"total"`
}

type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// --- Client ---

// Client — HTTP-клиент для StockScanner API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient создаёт клиент для API.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// --- Runs ---

// DispatchRun ставит ручной запуск.
func (c *Client) DispatchRun(actor string) (*DispatchResponse, error) {
	var body any
	if actor != "" {
		body = map[string]string{"actor": actor}
	}
	var resp DispatchResponse
	err := c.post("/api/v1/runs", body, &resp)
	return &resp, err
}

// ListRuns возвращает список runs с фильтрацией.
func (c *Client) ListRuns(opts ListRunsOpts) ([]RunResponse, error) {
	params := url.Values{}
	if opts.Status != "" {
		params.Set("status", opts.Status)
	}
	if opts.Trigger != "" {
		params.Set("trigger", opts.Trigger)
	}
	if opts.IdempotencyKey != "" {
		params.Set("idempotency_key", opts.IdempotencyKey)
	}
	if opts.Limit > 0 {
		params.Set("limit", strconv.Itoa(opts.Limit))
	}

	var runs []RunResponse
	err := c.list("/api/v1/runs", params, &runs)
	return runs, err
}

// GetRun возвращает run по ID.
func (c *Client) GetRun(id string) (*RunResponse, error) {
	var run RunResponse
	err := c.get("/api/v1/runs/"+url.PathEscape(id), &run)
	return &run, err
}

// ListStages возвращает стадии run.
func (c *Client) ListStages(runID string) ([]StageResponse, error) {
	var stages []StageResponse
	err := c.list("/api/v1/runs/"+url.PathEscape(runID)+"/stages", nil, &stages)
	return stages, err
}

// WaitRun ждёт появления run с ключом идемпотентности и его завершения.
func (c *Client) WaitRun(ctx context.Context, key string, poll time.Duration) (*RunResponse, error) {
	if poll <= 0 {
		poll = 2 * time.Second
	}
	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	for {
		runs, err := c.ListRuns(ListRunsOpts{IdempotencyKey: key})
		if err != nil {
			return nil, err
		}
		if len(runs) > 0 && runs[0].Finished() {
			return &runs[0], nil
		}

		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return nil, fmt.Errorf("run %s did not finish in time", key)
			}
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// --- Schedule ---

// GetSchedule возвращает расписание и count ближайших срабатываний.
func (c *Client) GetSchedule(count int) (*ScheduleResponse, error) {
	path := "/api/v1/schedule"
	if count > 0 {
		path += "?count=" + strconv.Itoa(count)
	}
	var s ScheduleResponse
	err := c.get(path, &s)
	return &s, err
}

// --- HTTP helpers ---

func (c *Client) get(path string, result any) error {
	return c.doData(http.MethodGet, path, nil, result)
}

func (c *Client) post(path string, body any, result any) error {
	return c.doData(http.MethodPost, path, body, result)
}

func (c *Client) list(path string, params url.Values, result any) error {
	if len(params) > 0 {
		path = path + "?" + params.Encode()
	}

	resp, err := c.do(http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	var lr listResponse
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return json.Unmarshal(lr.Data, result)
}

func (c *Client) doData(method, path string, body any, result any) error {
	resp, err := c.do(method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	// 204 No Content
	if resp.StatusCode == http.StatusNoContent {
		return nil
	}

	var dr dataResponse
	if err := json.NewDecoder(resp.Body).Decode(&dr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	if result != nil {
		return json.Unmarshal(dr.Data, result)
	}
	return nil
}

func (c *Client) do(method, path string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.httpClient.Do(req)
}

func (c *Client) checkError(resp *http.Response) error {
	if resp.StatusCode < 400 {
		return nil
	}

	var er errorResponse
	if err := json.NewDecoder(resp.Body).Decode(&er); err != nil {
		return fmt.Errorf("API error: HTTP %d", resp.StatusCode)
	}

	return fmt.Errorf("%s: %s", er.Error.Code, er.Error.Message)
}
