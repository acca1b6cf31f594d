package stages

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shaiso/StockScanner/internal/domain"
	"github.com/shaiso/StockScanner/internal/telemetry"
)

const (
	// DefaultQuotaBaseURL — базовый адрес поставщика рыночных данных.
	DefaultQuotaBaseURL = "https://financialmodelingprep.com"

	// QuotaPath — путь эндпоинта квоты.
	QuotaPath = "/api/v3/quota"

	// QuotaFile — имя файла с сырым ответом в каталоге run.
	QuotaFile = "quota.json"

	defaultQuotaTimeout = 30 * time.Second
	maxQuotaBody        = 1 << 20 // 1 MB
	maxLoggedBody       = 4096
)

// Ключи конфигурации стадии quota_check.
const (
	configMinRemaining = "min_remaining"
	configTimeoutSec   = "timeout_sec"
)

// QuotaCheck — стадия проверки квоты.
//
// Выполняет один GET <base>/api/v3/quota?apikey=<FMP_API_KEY>,
// сохраняет тело ответа в <workdir>/quota.json и пишет его в лог run.
// Ошибка сети или не-2xx статус — провал стадии. Повторов нет.
//
// Конфигурация (необязательно):
//
//	{
//	    "min_remaining": 5,
//	    "timeout_sec": 30
//	}
//
// Outputs:
//
//	{
//	    "status_code": 200,
//	    "body_file": "/var/lib/stockscan/runs/<id>/quota.json",
//	    "body_bytes": 57,
//	    "remaining_calls": 243   // если удалось разобрать
//	}
type QuotaCheck struct {
	baseURL      string
	client       *http.Client
	timeout      time.Duration
	minRemaining int
}

// QuotaConfig — конфигурация QuotaCheck.
type QuotaConfig struct {
	BaseURL string        // default: DefaultQuotaBaseURL
	Timeout time.Duration // default: 30s
	Client  *http.Client

	// MinRemaining — минимальный остаток вызовов. 0 — проверка отключена.
	MinRemaining int
}

// NewQuotaCheck создаёт стадию проверки квоты.
func NewQuotaCheck(cfg QuotaConfig) *QuotaCheck {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultQuotaBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultQuotaTimeout
	}
	client := cfg.Client
	if client == nil {
		client = &http.Client{}
	}

	return &QuotaCheck{
		baseURL:      baseURL,
		client:       client,
		timeout:      timeout,
		minRemaining: cfg.MinRemaining,
	}
}

// Name возвращает тип стадии.
func (q *QuotaCheck) Name() string {
	return domain.StageTypeQuotaCheck
}

// Execute выполняет запрос квоты.
func (q *QuotaCheck) Execute(ctx context.Context, req *Request) (*Result, error) {
	logger := req.logger()

	apiKey := req.Secrets.FMPAPIKey
	if apiKey == "" {
		return nil, fmt.Errorf("%w: %s", domain.ErrMissingSecret, domain.EnvFMPAPIKey)
	}

	timeout := q.timeout
	if sec := configInt(req.Config, configTimeoutSec); sec > 0 {
		timeout = time.Duration(sec) * time.Second
	}
	minRemaining := q.minRemaining
	if v := configInt(req.Config, configMinRemaining); v > 0 {
		minRemaining = v
	}

	endpoint := q.baseURL + QuotaPath
	reqURL := endpoint + "?apikey=" + url.QueryEscape(apiKey)
	redacted := endpoint + "?apikey=***"

	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(cctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request for %s", ErrQuotaRequest, redacted)
	}
	httpReq.Header.Set("Accept", "application/json")

	logger.Info("requesting quota", "url", redacted)

	resp, err := q.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrQuotaRequest, redactError(err, redacted))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxQuotaBody))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %s", ErrQuotaRequest, redactError(err, redacted))
	}

	report := ParseQuotaReport(resp.StatusCode, body)
	outputs := report.Outputs()

	if req.WorkDir != "" {
		path := filepath.Join(req.WorkDir, QuotaFile)
		if err := os.MkdirAll(req.WorkDir, 0o755); err != nil {
			return NewResult(outputs), fmt.Errorf("create work dir: %w", err)
		}
		if err := os.WriteFile(path, body, 0o644); err != nil {
			return NewResult(outputs), fmt.Errorf("write %s: %w", QuotaFile, err)
		}
		outputs["body_file"] = path
	}

	logger.Info("quota response",
		"status_code", resp.StatusCode,
		"body", truncate(string(body), maxLoggedBody),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return NewResult(outputs), &StatusError{
			StatusCode: resp.StatusCode,
			Body:       truncate(string(body), maxLoggedBody),
		}
	}

	if remaining, ok := report.Remaining(); ok {
		telemetry.SetQuotaRemaining(remaining)
		if report.Below(minRemaining) {
			return NewResult(outputs), fmt.Errorf("%w: %d remaining, need %d",
				ErrQuotaExhausted, remaining, minRemaining)
		}
	} else if minRemaining > 0 {
		logger.Warn("quota body has no remainingCalls, threshold not checked")
	}

	return NewResult(outputs), nil
}

// ParseQuotaReport собирает QuotaReport из ответа эндпоинта квоты.
func ParseQuotaReport(statusCode int, body []byte) domain.QuotaReport {
	report := domain.QuotaReport{StatusCode: statusCode, RawBody: body}
	if n, ok := ParseRemainingCalls(body); ok {
		report.RemainingCalls = &n
	}
	return report
}

// ParseRemainingCalls извлекает remainingCalls из ответа.
// Поддерживает объект и массив объектов.
func ParseRemainingCalls(body []byte) (int, bool) {
	var obj map[string]any
	if err := json.Unmarshal(body, &obj); err != nil {
		var arr []map[string]any
		if err := json.Unmarshal(body, &arr); err != nil || len(arr) == 0 {
			return 0, false
		}
		obj = arr[0]
	}

	switch v := obj["remainingCalls"].(type) {
	case float64:
		return int(v), true
	case string:
		var n int
		if _, err := fmt.Sscanf(v, "%d", &n); err == nil {
			return n, true
		}
	}
	return 0, false
}

// redactError убирает URL с ключом из ошибки net/http.
func redactError(err error, redacted string) string {
	var ue *url.Error
	if errors.As(err, &ue) {
		return fmt.Sprintf("%s %s: %v", ue.Op, redacted, ue.Err)
	}
	return err.Error()
}

func truncate(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	return s[:max] + "\n... (truncated)"
}
