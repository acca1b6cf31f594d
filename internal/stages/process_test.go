package stages

import (
	"context"
	"errors"
	"os/exec"
	"runtime"
	"strings"
	"testing"
	"time"
)

func requireShell(t *testing.T) {
	t.Helper()
	if runtime.GOOS != "linux" && runtime.GOOS != "darwin" {
		t.Skip("needs a POSIX shell")
	}
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not found")
	}
}

func TestExecRunner_TimeoutKillsChildProcesses(t *testing.T) {
	requireShell(t)

	start := time.Now()
	res, err := ExecRunner{}.Run(context.Background(), Command{
		Name:    "sh",
		Args:    []string{"-c", "sleep 3; echo done"},
		Timeout: 200 * time.Millisecond,
	})
	elapsed := time.Since(start)

	if !errors.Is(err, ErrProcessTimeout) {
		t.Fatalf("expected ErrProcessTimeout, got %v", err)
	}
	if !res.TimedOut {
		t.Error("expected TimedOut")
	}
	if strings.Contains(res.Output, "done") {
		t.Errorf("child kept running: %q", res.Output)
	}
	if elapsed > 2*time.Second {
		t.Errorf("Run took %s, timeout was not enforced", elapsed)
	}
}

func TestExecRunner_ContextCancelStopsProcess(t *testing.T) {
	requireShell(t)

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(100*time.Millisecond, cancel)

	start := time.Now()
	res, err := ExecRunner{}.Run(ctx, Command{Name: "sh", Args: []string{"-c", "sleep 3"}})
	if !errors.Is(err, ErrProcessFailed) {
		t.Fatalf("expected ErrProcessFailed, got %v", err)
	}
	if res.TimedOut {
		t.Error("cancelled run must not be reported as timeout")
	}
	if time.Since(start) > 2*time.Second {
		t.Error("process was not stopped on cancel")
	}
}

func TestExecRunner_ExitCode(t *testing.T) {
	requireShell(t)

	res, err := ExecRunner{}.Run(context.Background(), Command{
		Name: "sh",
		Args: []string{"-c", "echo failing; exit 3"},
	})
	if !errors.Is(err, ErrProcessFailed) {
		t.Fatalf("expected ErrProcessFailed, got %v", err)
	}
	if res.ExitCode != 3 {
		t.Errorf("exit code = %d, want 3", res.ExitCode)
	}
	if !strings.Contains(res.Output, "failing") {
		t.Errorf("output = %q", res.Output)
	}
	if !strings.Contains(err.Error(), "code 3") {
		t.Errorf("error = %v", err)
	}
}

func TestExecRunner_EmptyEnvironment(t *testing.T) {
	requireShell(t)
	if _, err := exec.LookPath("env"); err != nil {
		t.Skip("env not found")
	}
	t.Setenv("STOCKSCAN_PARENT_ONLY", "leak")

	res, err := ExecRunner{}.Run(context.Background(), Command{Name: "env"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if strings.TrimSpace(res.Output) != "" {
		t.Errorf("nil Env must give empty environment, got %q", res.Output)
	}

	res, err = ExecRunner{}.Run(context.Background(), Command{
		Name: "env",
		Env:  []string{"STOCKSCAN_X=1"},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := strings.TrimSpace(res.Output); got != "STOCKSCAN_X=1" {
		t.Errorf("env = %q", got)
	}
}

func TestExecRunner_MaxOutput(t *testing.T) {
	requireShell(t)

	res, err := ExecRunner{MaxOutput: 4}.Run(context.Background(), Command{
		Name: "sh",
		Args: []string{"-c", "echo 0123456789"},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !strings.HasPrefix(res.Output, "0123") || strings.Contains(res.Output, "456789") {
		t.Errorf("output not truncated: %q", res.Output)
	}
}
