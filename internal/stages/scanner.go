package stages

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shaiso/StockScanner/internal/domain"
)

const (
	// DefaultScript — скрипт сканера в корне репозитория.
	DefaultScript = "stock_scanner.py"

	// ScannerLogFile — лог подшагов в каталоге run.
	ScannerLogFile = "scanner.log"

	defaultScriptTimeout  = 30 * time.Minute
	defaultInstallTimeout = 10 * time.Minute
	defaultMaxOutput      = 64 * 1024
)

// Подшаги стадии scanner в порядке выполнения.
const (
	StepCheckout  = "checkout"
	StepProvision = "provision_runtime"
	StepInstall   = "install"
	StepExecute   = "execute"
)

// Ключи конфигурации стадии scanner.
const (
	configScript = "script"
)

// ScannerExecution — стадия запуска скрипта сканера.
//
// Подшаги выполняются строго последовательно в изолированном
// рабочем каталоге run:
//
//	checkout          — чистая копия репозитория (git clone или копия SourceDir)
//	provision_runtime — virtualenv для runtime из manifest, проверка версии
//	install           — установка ровно тех библиотек, что закреплены в manifest
//	execute           — запуск скрипта с пятью секретами в окружении
//
// Ошибка любого подшага — провал стадии, оставшиеся подшаги не выполняются.
// Рабочий каталог удаляется по завершении стадии.
type ScannerExecution struct {
	runner         ProcessRunner
	sourceDir      string
	repoURL        string
	ref            string
	script         string
	inheritEnv     []string
	scriptTimeout  time.Duration
	installTimeout time.Duration
	maxOutput      int
	keepWorkspace  bool
}

// ScannerConfig — конфигурация ScannerExecution.
type ScannerConfig struct {
	Runner ProcessRunner // default: ExecRunner

	// SourceDir — локальный каталог с кодом сканера.
	SourceDir string

	// RepoURL — git-репозиторий сканера. Имеет приоритет над SourceDir.
	RepoURL string
	Ref     string

	Script string // default: "stock_scanner.py"

	// InheritEnv — имена переменных, которые копируются из окружения
	// платформы во все подшаги (PATH, HOME, ...). Секреты сюда не входят.
	InheritEnv []string

	ScriptTimeout  time.Duration // default: 30m
	InstallTimeout time.Duration // default: 10m
	MaxOutput      int           // default: 64 KB
	KeepWorkspace  bool
}

// NewScannerExecution создаёт стадию запуска сканера.
func NewScannerExecution(cfg ScannerConfig) *ScannerExecution {
	s := &ScannerExecution{
		runner:         cfg.Runner,
		sourceDir:      cfg.SourceDir,
		repoURL:        cfg.RepoURL,
		ref:            cfg.Ref,
		script:         cfg.Script,
		inheritEnv:     cfg.InheritEnv,
		scriptTimeout:  cfg.ScriptTimeout,
		installTimeout: cfg.InstallTimeout,
		maxOutput:      cfg.MaxOutput,
		keepWorkspace:  cfg.KeepWorkspace,
	}
	if s.maxOutput <= 0 {
		s.maxOutput = defaultMaxOutput
	}
	if s.runner == nil {
		s.runner = ExecRunner{MaxOutput: s.maxOutput}
	}
	if s.script == "" {
		s.script = DefaultScript
	}
	if s.scriptTimeout <= 0 {
		s.scriptTimeout = defaultScriptTimeout
	}
	if s.installTimeout <= 0 {
		s.installTimeout = defaultInstallTimeout
	}
	return s
}

// Name возвращает тип стадии.
func (s *ScannerExecution) Name() string {
	return domain.StageTypeScanner
}

// scanRun — состояние одного выполнения стадии.
type scanRun struct {
	req     *Request
	logger  *slog.Logger
	script  string
	baseEnv []string
	ws      string
	src     string
	venv    string
	python  string
	log     *os.File
	outputs map[string]any
}

// Execute выполняет подшаги стадии.
func (s *ScannerExecution) Execute(ctx context.Context, req *Request) (*Result, error) {
	outputs := map[string]any{
		"manifest_digest": req.Manifest.Digest(),
	}

	// Секреты проверяются до любого подшага.
	if err := req.Secrets.Validate(); err != nil {
		return NewResult(outputs), err
	}
	if err := req.Manifest.Validate(); err != nil {
		return NewResult(outputs), err
	}

	script := s.script
	if v, ok := req.Config[configScript].(string); ok && v != "" {
		script = v
	}
	if !filepath.IsLocal(script) {
		return NewResult(outputs), fmt.Errorf("%w: script must be a path inside the repository: %q", ErrInvalidConfig, script)
	}

	workDir := req.WorkDir
	if workDir == "" {
		dir, err := os.MkdirTemp("", "stockscan-run-")
		if err != nil {
			return NewResult(outputs), fmt.Errorf("create work dir: %w", err)
		}
		workDir = dir
		defer os.RemoveAll(dir)
	}

	ws := filepath.Join(workDir, "workspace")
	if err := os.RemoveAll(ws); err != nil {
		return NewResult(outputs), fmt.Errorf("clean workspace: %w", err)
	}
	if err := os.MkdirAll(ws, 0o755); err != nil {
		return NewResult(outputs), fmt.Errorf("create workspace: %w", err)
	}
	if !s.keepWorkspace {
		defer os.RemoveAll(ws)
	}

	logPath := filepath.Join(workDir, ScannerLogFile)
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return NewResult(outputs), fmt.Errorf("open scanner log: %w", err)
	}
	defer logFile.Close()
	outputs["log_file"] = logPath

	r := &scanRun{
		req:     req,
		logger:  req.logger(),
		script:  script,
		baseEnv: BaseEnv(s.inheritEnv, os.LookupEnv),
		ws:      ws,
		src:     filepath.Join(ws, "src"),
		venv:    filepath.Join(ws, "venv"),
		log:     logFile,
		outputs: outputs,
	}
	r.python = filepath.Join(r.venv, "bin", "python")

	subSteps := []struct {
		name string
		fn   func(context.Context, *scanRun) (string, error)
	}{
		{StepCheckout, s.checkout},
		{StepProvision, s.provision},
		{StepInstall, s.install},
		{StepExecute, s.execute},
	}

	completed := make([]string, 0, len(subSteps))
	for _, st := range subSteps {
		start := time.Now()
		r.logger.Info("sub-step started", "step", st.name)

		out, err := st.fn(ctx, r)
		r.writeLog(st.name, out, err)

		if err != nil {
			outputs["failed_step"] = st.name
			outputs["completed_steps"] = completed
			r.logger.Error("sub-step failed",
				"step", st.name,
				"duration", time.Since(start).String(),
				"error", err,
			)
			return NewResult(outputs), &SubStepError{
				Step:   st.name,
				Output: req.Secrets.Redact(out),
				Err:    err,
			}
		}

		completed = append(completed, st.name)
		r.logger.Info("sub-step finished",
			"step", st.name,
			"duration", time.Since(start).String(),
		)
	}

	outputs["completed_steps"] = completed
	return NewResult(outputs), nil
}

// checkout готовит чистую копию кода сканера.
func (s *ScannerExecution) checkout(ctx context.Context, r *scanRun) (string, error) {
	var out string

	switch {
	case s.repoURL != "":
		args := []string{"clone", "--depth", "1"}
		if s.ref != "" {
			args = append(args, "--branch", s.ref)
		}
		args = append(args, s.repoURL, r.src)

		res, err := s.runner.Run(ctx, Command{
			Name:    "git",
			Args:    args,
			Dir:     r.ws,
			Env:     r.baseEnv,
			Timeout: s.installTimeout,
		})
		out = output(res)
		if err != nil {
			return out, err
		}
	case s.sourceDir != "":
		if err := CopyTree(s.sourceDir, r.src); err != nil {
			return "", fmt.Errorf("copy source: %w", err)
		}
		out = "copied " + s.sourceDir
	default:
		return "", fmt.Errorf("%w: neither repository URL nor source dir is set", ErrInvalidConfig)
	}

	if _, err := os.Stat(filepath.Join(r.src, r.script)); err != nil {
		return out, fmt.Errorf("script %s not found in checkout: %w", r.script, err)
	}
	return out, nil
}

// provision создаёт virtualenv и проверяет версию интерпретатора.
func (s *ScannerExecution) provision(ctx context.Context, r *scanRun) (string, error) {
	rt := r.req.Manifest.Runtime

	res, err := s.runner.Run(ctx, Command{
		Name:    rt.Name,
		Args:    []string{"-m", "venv", r.venv},
		Dir:     r.ws,
		Env:     r.baseEnv,
		Timeout: s.installTimeout,
	})
	out := output(res)
	if err != nil {
		return out, err
	}

	res, err = s.runner.Run(ctx, Command{
		Name:    r.python,
		Args:    []string{"--version"},
		Dir:     r.ws,
		Env:     r.baseEnv,
		Timeout: time.Minute,
	})
	version := strings.TrimSpace(output(res))
	out += version
	if err != nil {
		return out, err
	}
	if !VersionMatches(version, rt.Version) {
		return out, fmt.Errorf("%w: want %s, got %q", ErrRuntimeMismatch, rt.Version, version)
	}

	r.outputs["runtime_version"] = version
	return out, nil
}

// install устанавливает закреплённые библиотеки в virtualenv.
func (s *ScannerExecution) install(ctx context.Context, r *scanRun) (string, error) {
	reqs := r.req.Manifest.Requirements()
	reqPath := filepath.Join(r.ws, "requirements.txt")
	if err := os.WriteFile(reqPath, []byte(strings.Join(reqs, "\n")+"\n"), 0o644); err != nil {
		return "", fmt.Errorf("write requirements: %w", err)
	}

	res, err := s.runner.Run(ctx, Command{
		Name: r.python,
		Args: []string{
			"-m", "pip", "install",
			"--no-input",
			"--disable-pip-version-check",
			"--no-cache-dir",
			"-r", reqPath,
		},
		Dir:     r.ws,
		Env:     r.baseEnv,
		Timeout: s.installTimeout,
	})
	if err == nil {
		r.outputs["packages"] = reqs
	}
	return output(res), err
}

// execute запускает скрипт. Окружение — базовый allow-list и пять секретов.
func (s *ScannerExecution) execute(ctx context.Context, r *scanRun) (string, error) {
	res, err := s.runner.Run(ctx, Command{
		Name:    r.python,
		Args:    []string{r.script},
		Dir:     r.src,
		Env:     ScriptEnv(r.baseEnv, r.req.Secrets),
		Timeout: s.scriptTimeout,
	})
	if res != nil {
		r.outputs["exit_code"] = res.ExitCode
		r.outputs["duration_ms"] = res.Duration.Milliseconds()
	}
	return output(res), err
}

// writeLog дописывает вывод подшага в лог run, скрывая секреты.
func (r *scanRun) writeLog(step, out string, err error) {
	status := "ok"
	if err != nil {
		status = "failed: " + err.Error()
	}
	fmt.Fprintf(r.log, "=== %s (%s)\n%s\n", step, status, r.req.Secrets.Redact(out))
}

func output(res *ProcessResult) string {
	if res == nil {
		return ""
	}
	return res.Output
}

// BaseEnv собирает "KEY=VALUE" для разрешённых имён из окружения платформы.
// Имена секретов пропускаются всегда.
func BaseEnv(names []string, lookup func(string) (string, bool)) []string {
	env := make([]string, 0, len(names))
	for _, name := range names {
		if isSecretName(name) {
			continue
		}
		if v, ok := lookup(name); ok {
			env = append(env, name+"="+v)
		}
	}
	return env
}

// ScriptEnv возвращает окружение скрипта: base без секретных имён
// и ровно пять секретов.
func ScriptEnv(base []string, secrets domain.SecretBindings) []string {
	env := make([]string, 0, len(base)+len(domain.SecretNames))
	for _, kv := range base {
		key, _, _ := strings.Cut(kv, "=")
		if isSecretName(key) {
			continue
		}
		env = append(env, kv)
	}
	return append(env, secrets.Env()...)
}

func isSecretName(name string) bool {
	for _, s := range domain.SecretNames {
		if s == name {
			return true
		}
	}
	return false
}

// VersionMatches сравнивает вывод "Python X.Y.Z" с ожидаемой версией X.Y.
func VersionMatches(output, want string) bool {
	fields := strings.Fields(output)
	if len(fields) < 2 {
		return false
	}
	got := fields[1]
	return got == want || strings.HasPrefix(got, want+".")
}
