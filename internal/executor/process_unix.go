//go:build unix

package executor

import (
	"errors"
	"os"
	"os/exec"
	"syscall"
)

func defaultShell() []string {
	return []string{"/bin/sh", "-c"}
}

// configureProcess starts the command in its own process group and makes
// context cancellation kill the whole group, so children spawned by the
// shell die with it instead of holding the output pipes open.
func configureProcess(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		if cmd.Process == nil {
			return nil
		}
		err := syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
		if errors.Is(err, syscall.ESRCH) {
			return os.ErrProcessDone
		}
		return err
	}
}
