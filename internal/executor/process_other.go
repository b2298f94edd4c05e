//go:build !unix

package executor

import "os/exec"

func defaultShell() []string {
	return []string{"cmd", "/C"}
}

// configureProcess kills the shell on context cancellation. Without process
// groups, grandchildren may outlive it; WaitDelay bounds the pipe drain.
func configureProcess(cmd *exec.Cmd) {
	cmd.Cancel = func() error {
		if cmd.Process == nil {
			return nil
		}
		return cmd.Process.Kill()
	}
}
