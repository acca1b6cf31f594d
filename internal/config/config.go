// Package config загружает настройки сервисов из окружения и .env.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/shaiso/StockScanner/internal/domain"
)

// Config — настройки всех бинарников StockScanner.
type Config struct {
	// Адреса HTTP серверов.
	APIAddr       string
	SchedulerAddr string

	// APIURL — адрес API для CLI.
	APIURL string

	// Инфраструктура. Пустое значение отключает компонент.
	DatabaseURL string
	AMQPURL     string
	RedisURL    string

	// PipelineFile — JSON определение pipeline. Пусто — определение по умолчанию.
	PipelineFile string

	// WorkDir — корень каталогов run.
	WorkDir string

	QuotaBaseURL      string
	QuotaTimeout      time.Duration
	QuotaMinRemaining int

	ScannerRepoURL    string
	ScannerRef        string
	ScannerSourceDir  string
	ScannerScript     string
	ScannerTimeout    time.Duration
	InstallTimeout    time.Duration
	ScannerInheritEnv []string
	KeepWorkspace     bool

	// LockBackend — memory, postgres или redis.
	LockBackend   string
	OverlapPolicy string
	LockPoll      time.Duration

	CatchUpWindow time.Duration

	// Secrets — значения не логируются (см. domain.SecretBindings).
	Secrets domain.SecretBindings
}

// Load читает .env (если есть) и переменные окружения.
// Переменные окружения имеют приоритет над .env.
func Load(files ...string) (Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			if err := godotenv.Load(f); err != nil {
				return Config{}, fmt.Errorf("load %s: %w", f, err)
			}
		}
	}

	p := &parser{}
	cfg := Config{
		APIAddr:       getEnv("API_ADDR", ":8080"),
		SchedulerAddr: getEnv("SCHED_ADDR", ":8081"),
		APIURL:        getEnv("STOCKSCAN_API_URL", "http://localhost:8080"),

		DatabaseURL: os.Getenv("DB_URL"),
		AMQPURL:     os.Getenv("RABBITMQ_URL"),
		RedisURL:    os.Getenv("REDIS_URL"),

		PipelineFile: os.Getenv("PIPELINE_FILE"),
		WorkDir:      getEnv("WORK_DIR", filepath.Join(os.TempDir(), "stockscan")),

		QuotaBaseURL:      getEnv("FMP_BASE_URL", "https://financialmodelingprep.com"),
		QuotaTimeout:      p.duration("QUOTA_TIMEOUT", 30*time.Second),
		QuotaMinRemaining: p.int("QUOTA_MIN_REMAINING", 0),

		ScannerRepoURL:    os.Getenv("SCANNER_REPO_URL"),
		ScannerRef:        os.Getenv("SCANNER_REF"),
		ScannerSourceDir:  os.Getenv("SCANNER_SOURCE_DIR"),
		ScannerScript:     getEnv("SCANNER_SCRIPT", "stock_scanner.py"),
		ScannerTimeout:    p.duration("SCANNER_TIMEOUT", 30*time.Minute),
		InstallTimeout:    p.duration("INSTALL_TIMEOUT", 10*time.Minute),
		ScannerInheritEnv: splitList(getEnv("SCANNER_INHERIT_ENV", "PATH,HOME,LANG,TMPDIR")),
		KeepWorkspace:     p.bool("KEEP_WORKSPACE", false),

		LockBackend:   os.Getenv("LOCK_BACKEND"),
		OverlapPolicy: getEnv("OVERLAP_POLICY", "skip"),
		LockPoll:      p.duration("LOCK_POLL", 5*time.Second),

		CatchUpWindow: p.duration("CATCHUP_WINDOW", time.Hour),

		Secrets: domain.SecretsFromLookup(os.LookupEnv),
	}
	if p.err != nil {
		return Config{}, p.err
	}

	if cfg.LockBackend == "" {
		if cfg.DatabaseURL != "" {
			cfg.LockBackend = "postgres"
		} else {
			cfg.LockBackend = "memory"
		}
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// parser запоминает первую ошибку разбора.
type parser struct {
	err error
}

func (p *parser) fail(key, value string, err error) {
	if p.err == nil {
		p.err = fmt.Errorf("invalid %s=%q: %w", key, value, err)
	}
}

func (p *parser) duration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		p.fail(key, v, err)
		return fallback
	}
	return d
}

func (p *parser) int(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		p.fail(key, v, err)
		return fallback
	}
	return n
}

func (p *parser) bool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		p.fail(key, v, err)
		return fallback
	}
	return b
}
