package stages

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"
)

// Command — запуск внешнего процесса.
type Command struct {
	Name string
	Args []string
	Dir  string

	// Env — полное окружение процесса. nil означает пустое окружение:
	// переменные родительского процесса не наследуются.
	Env []string

	Timeout time.Duration
}

// ProcessResult — результат процесса.
type ProcessResult struct {
	Output   string
	ExitCode int
	Duration time.Duration
	TimedOut bool
}

// ProcessRunner запускает внешние процессы.
type ProcessRunner interface {
	// Run выполняет команду и ждёт завершения.
	// Ненулевой код выхода возвращается как ErrProcessFailed вместе с результатом.
	Run(ctx context.Context, cmd Command) (*ProcessResult, error)
}

// waitDelay — сколько ждать закрытия вывода после остановки процесса.
// Потомки, унаследовавшие stdout, не должны держать Run дольше таймаута.
const waitDelay = 2 * time.Second

// ExecRunner — ProcessRunner на os/exec.
// Процесс запускается в собственной группе: по таймауту убивается
// вся группа вместе с дочерними процессами.
type ExecRunner struct {
	// MaxOutput — сколько байт вывода оставлять в результате. 0 — без ограничения.
	MaxOutput int
}

// Run реализует ProcessRunner.
func (r ExecRunner) Run(ctx context.Context, c Command) (*ProcessResult, error) {
	start := time.Now()

	cctx := ctx
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		cctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(cctx, c.Name, c.Args...)
	cmd.Dir = c.Dir
	cmd.Env = append([]string{}, c.Env...)
	cmd.WaitDelay = waitDelay
	setProcessGroup(cmd)

	out, err := cmd.CombinedOutput()

	res := &ProcessResult{
		Output:   truncate(string(out), r.MaxOutput),
		Duration: time.Since(start),
	}
	if cmd.ProcessState != nil {
		res.ExitCode = cmd.ProcessState.ExitCode()
	}

	if errors.Is(cctx.Err(), context.DeadlineExceeded) {
		res.TimedOut = true
		return res, fmt.Errorf("%w: %s after %s", ErrProcessTimeout, c.Name, c.Timeout)
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return res, fmt.Errorf("%w: %s exited with code %d", ErrProcessFailed, c.Name, exitErr.ExitCode())
		}
		return res, fmt.Errorf("%w: %s: %v", ErrProcessFailed, c.Name, err)
	}
	return res, nil
}
