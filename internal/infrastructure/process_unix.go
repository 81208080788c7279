//go:build !windows

package infrastructure

import (
	"os/exec"
	"syscall"
)

// setProcessGroup puts the child in its own group so cancellation also
// reaches anything a shell one-liner spawned
func setProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		if cmd.Process == nil {
			return nil
		}
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
}
