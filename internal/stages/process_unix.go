//go:build unix

package stages

import (
	"os/exec"
	"syscall"
)

// setProcessGroup запускает процесс лидером новой группы, отмена
// контекста убивает всю группу.
func setProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
}
