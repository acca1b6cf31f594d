package stages

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/shaiso/StockScanner/internal/domain"
	"github.com/shaiso/StockScanner/internal/telemetry"
)

// fakeRunner записывает команды и имитирует python/pip.
type fakeRunner struct {
	mu       sync.Mutex
	commands []Command
	version  string
	failOn   string // подшаг, который должен упасть
}

func (f *fakeRunner) Run(_ context.Context, c Command) (*ProcessResult, error) {
	f.mu.Lock()
	f.commands = append(f.commands, c)
	f.mu.Unlock()

	step := classify(c)
	if step == f.failOn {
		return &ProcessResult{Output: "boom", ExitCode: 1}, ErrProcessFailed
	}

	switch {
	case len(c.Args) == 1 && c.Args[0] == "--version":
		v := f.version
		if v == "" {
			v = "Python 3.9.18"
		}
		return &ProcessResult{Output: v + "\n"}, nil
	case step == StepExecute:
		return &ProcessResult{Output: "scanned 3 tickers with key fmp-secret-key"}, nil
	}
	return &ProcessResult{Output: "ok"}, nil
}

func (f *fakeRunner) executed() []Command {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Command
	for _, c := range f.commands {
		if classify(c) == StepExecute {
			out = append(out, c)
		}
	}
	return out
}

func classify(c Command) string {
	switch {
	case c.Name == "git":
		return StepCheckout
	case len(c.Args) >= 2 && c.Args[0] == "-m" && c.Args[1] == "venv":
		return StepProvision
	case len(c.Args) >= 2 && c.Args[0] == "-m" && c.Args[1] == "pip":
		return StepInstall
	case len(c.Args) == 1 && c.Args[0] != "--version":
		return StepExecute
	}
	return ""
}

func scannerSource(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, DefaultScript), []byte("print('hi')\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	os.MkdirAll(filepath.Join(dir, ".git"), 0o755)
	os.WriteFile(filepath.Join(dir, ".git", "HEAD"), []byte("ref"), 0o644)
	return dir
}

func scannerRequest(t *testing.T) *Request {
	t.Helper()
	return &Request{
		StageID:  "run-scanner",
		Secrets:  testSecrets(),
		Manifest: domain.DefaultManifest(),
		WorkDir:  t.TempDir(),
		Logger:   telemetry.Discard(),
	}
}

func TestScanner_EnvIsExactlyFiveSecrets(t *testing.T) {
	runner := &fakeRunner{}
	s := NewScannerExecution(ScannerConfig{Runner: runner, SourceDir: scannerSource(t)})

	res, err := s.Execute(context.Background(), scannerRequest(t))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	execs := runner.executed()
	if len(execs) != 1 {
		t.Fatalf("script executed %d times, want 1", len(execs))
	}

	env := append([]string(nil), execs[0].Env...)
	sort.Strings(env)
	want := []string{
		"FMP_API_KEY=fmp-secret-key",
		"TWILIO_ACCOUNT_SID=AC-sid",
		"TWILIO_AUTH_TOKEN=twilio-token",
		"TWILIO_FROM_NUMBER=+15550001",
		"TWILIO_TO_NUMBER=+15550002",
	}
	if strings.Join(env, "\n") != strings.Join(want, "\n") {
		t.Errorf("script env =\n%s\nwant\n%s", strings.Join(env, "\n"), strings.Join(want, "\n"))
	}

	completed, _ := res.Outputs["completed_steps"].([]string)
	if strings.Join(completed, ",") != "checkout,provision_runtime,install,execute" {
		t.Errorf("completed_steps = %v", completed)
	}
}

func TestScanner_PreparationStepsGetNoSecrets(t *testing.T) {
	runner := &fakeRunner{}
	s := NewScannerExecution(ScannerConfig{Runner: runner, SourceDir: scannerSource(t)})

	if _, err := s.Execute(context.Background(), scannerRequest(t)); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	for _, c := range runner.commands {
		if classify(c) == StepExecute {
			continue
		}
		for _, kv := range c.Env {
			if strings.Contains(kv, "fmp-secret-key") || strings.Contains(kv, "twilio-token") {
				t.Errorf("%s %v received secret in env", c.Name, c.Args)
			}
		}
	}
}

func TestScanner_InstallsPinnedManifest(t *testing.T) {
	runner := &fakeRunner{}
	s := NewScannerExecution(ScannerConfig{Runner: runner, SourceDir: scannerSource(t), KeepWorkspace: true})
	req := scannerRequest(t)

	if _, err := s.Execute(context.Background(), req); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(req.WorkDir, "workspace", "requirements.txt"))
	if err != nil {
		t.Fatalf("read requirements: %v", err)
	}
	for _, want := range []string{"requests==2.31.0", "pandas==2.0.3", "yfinance==0.2.36", "twilio==8.11.0"} {
		if !strings.Contains(string(data), want) {
			t.Errorf("requirements missing %s:\n%s", want, data)
		}
	}

	// .git не копируется в рабочую копию
	if _, err := os.Stat(filepath.Join(req.WorkDir, "workspace", "src", ".git")); !os.IsNotExist(err) {
		t.Error(".git should not be copied into the workspace")
	}
}

func TestScanner_MissingSecretStopsBeforeAnySubStep(t *testing.T) {
	runner := &fakeRunner{}
	s := NewScannerExecution(ScannerConfig{Runner: runner, SourceDir: scannerSource(t)})
	req := scannerRequest(t)
	req.Secrets.TwilioToNumber = ""

	_, err := s.Execute(context.Background(), req)
	if !errors.Is(err, domain.ErrMissingSecret) {
		t.Fatalf("expected ErrMissingSecret, got %v", err)
	}
	if len(runner.commands) != 0 {
		t.Errorf("ran %d commands with missing secret", len(runner.commands))
	}
}

func TestScanner_SubStepFailureStops(t *testing.T) {
	for _, step := range []string{StepProvision, StepInstall, StepExecute} {
		t.Run(step, func(t *testing.T) {
			runner := &fakeRunner{failOn: step}
			s := NewScannerExecution(ScannerConfig{Runner: runner, SourceDir: scannerSource(t)})

			res, err := s.Execute(context.Background(), scannerRequest(t))

			var se *SubStepError
			if !errors.As(err, &se) || se.Step != step {
				t.Fatalf("expected SubStepError for %s, got %v", step, err)
			}
			if res.Outputs["failed_step"] != step {
				t.Errorf("failed_step = %v", res.Outputs["failed_step"])
			}
			if step != StepExecute && len(runner.executed()) != 0 {
				t.Error("script must not run after a failed preparation step")
			}
		})
	}
}

func TestScanner_RuntimeVersionMismatch(t *testing.T) {
	runner := &fakeRunner{version: "Python 3.11.4"}
	s := NewScannerExecution(ScannerConfig{Runner: runner, SourceDir: scannerSource(t)})

	_, err := s.Execute(context.Background(), scannerRequest(t))
	if !errors.Is(err, ErrRuntimeMismatch) {
		t.Fatalf("expected ErrRuntimeMismatch, got %v", err)
	}
	if len(runner.executed()) != 0 {
		t.Error("script must not run on wrong runtime")
	}
}

func TestScanner_WorkspaceRemovedAndLogRedacted(t *testing.T) {
	runner := &fakeRunner{}
	s := NewScannerExecution(ScannerConfig{Runner: runner, SourceDir: scannerSource(t)})
	req := scannerRequest(t)

	res, err := s.Execute(context.Background(), req)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if _, err := os.Stat(filepath.Join(req.WorkDir, "workspace")); !os.IsNotExist(err) {
		t.Error("workspace should be removed after the stage")
	}

	logPath, _ := res.Outputs["log_file"].(string)
	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if strings.Contains(string(data), "fmp-secret-key") {
		t.Error("scanner log leaks secret")
	}
	if !strings.Contains(string(data), "=== execute (ok)") {
		t.Errorf("log missing execute section:\n%s", data)
	}
}

func TestScanner_NoSource(t *testing.T) {
	s := NewScannerExecution(ScannerConfig{Runner: &fakeRunner{}})
	_, err := s.Execute(context.Background(), scannerRequest(t))
	if !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestScriptEnv_DropsSecretNamesFromBase(t *testing.T) {
	base := []string{"PATH=/usr/bin", "FMP_API_KEY=stale", "HOME=/home/scan"}
	env := ScriptEnv(base, testSecrets())

	count := 0
	for _, kv := range env {
		if strings.HasPrefix(kv, "FMP_API_KEY=") {
			count++
			if kv != "FMP_API_KEY=fmp-secret-key" {
				t.Errorf("stale value kept: %s", kv)
			}
		}
	}
	if count != 1 {
		t.Errorf("FMP_API_KEY appears %d times", count)
	}
	if len(env) != 7 {
		t.Errorf("env has %d entries, want 7: %v", len(env), env)
	}
}

func TestBaseEnv(t *testing.T) {
	lookup := func(k string) (string, bool) {
		m := map[string]string{"PATH": "/bin", "TWILIO_AUTH_TOKEN": "leak"}
		v, ok := m[k]
		return v, ok
	}
	env := BaseEnv([]string{"PATH", "HOME", "TWILIO_AUTH_TOKEN"}, lookup)
	if len(env) != 1 || env[0] != "PATH=/bin" {
		t.Errorf("BaseEnv = %v", env)
	}
}

func TestVersionMatches(t *testing.T) {
	tests := []struct {
		out, want string
		ok        bool
	}{
		{"Python 3.9.18", "3.9", true},
		{"Python 3.9", "3.9", true},
		{"Python 3.10.1", "3.1", false},
		{"Python 3.11.4", "3.9", false},
		{"", "3.9", false},
	}
	for _, tt := range tests {
		if got := VersionMatches(tt.out, tt.want); got != tt.ok {
			t.Errorf("VersionMatches(%q, %q) = %v", tt.out, tt.want, got)
		}
	}
}

func TestRegistry(t *testing.T) {
	r := NewRegistry(NewQuotaCheck(QuotaConfig{}), NewScannerExecution(ScannerConfig{}))

	if got := strings.Join(r.Types(), ","); got != "quota_check,scanner" {
		t.Errorf("Types() = %s", got)
	}
	if _, err := r.Get("http"); !errors.Is(err, ErrStageNotFound) {
		t.Errorf("expected ErrStageNotFound, got %v", err)
	}
}

func TestScanner_ScriptMustStayInsideRepository(t *testing.T) {
	src := scannerSource(t)
	os.WriteFile(filepath.Join(src, "scan..v2.py"), []byte("print('v2')\n"), 0o644)

	runner := &fakeRunner{}
	s := NewScannerExecution(ScannerConfig{Runner: runner, SourceDir: src})

	req := scannerRequest(t)
	req.Config = map[string]any{"script": "scan..v2.py"}
	if _, err := s.Execute(context.Background(), req); err != nil {
		t.Fatalf("dots inside a file name must be allowed: %v", err)
	}
	execs := runner.executed()
	if len(execs) != 1 || !strings.HasSuffix(execs[0].Args[0], "scan..v2.py") {
		t.Errorf("executed = %+v", execs)
	}

	for _, script := range []string{"../escape.py", "/etc/scan.py", "sub/../../escape.py"} {
		req := scannerRequest(t)
		req.Config = map[string]any{"script": script}
		if _, err := s.Execute(context.Background(), req); !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("script %q: expected ErrInvalidConfig, got %v", script, err)
		}
	}
}
