//go:build !unix

package stages

import "os/exec"

// на остальных платформах остаётся поведение exec.CommandContext,
// зависшие потомки отсекаются через WaitDelay
func setProcessGroup(cmd *exec.Cmd) {}
