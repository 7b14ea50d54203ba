//go:build !windows

package llm

import (
	"errors"
	"os"
	"os/exec"
	"syscall"
	"time"

	"github.com/alexander-akhmetov/mat/internal/debug"
)

// gracefulShutdownDelay is the time to wait between SIGTERM and SIGKILL.
const gracefulShutdownDelay = 100 * time.Millisecond

// setupProcessGroup runs cmd in its own process group so that a cancelled
// invocation also stops the tools the CLI spawned. The group gets SIGTERM on
// cancel and SIGKILL shortly after.
func setupProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error { return terminateGroup(cmd) }
	cmd.WaitDelay = 2 * gracefulShutdownDelay
}

func terminateGroup(cmd *exec.Cmd) error {
	if cmd.Process == nil {
		return nil
	}
	pid := cmd.Process.Pid
	if pid <= 0 {
		debug.Logf("llm: invalid PID %d, skipping process group kill", pid)
		return nil
	}

	pgid := -pid
	if err := syscall.Kill(pgid, syscall.SIGTERM); err != nil {
		if errors.Is(err, syscall.ESRCH) {
			return os.ErrProcessDone
		}
		debug.Logf("llm: SIGTERM failed for pgid %d: %v", pgid, err)
	}

	time.AfterFunc(gracefulShutdownDelay, func() {
		if err := syscall.Kill(pgid, syscall.SIGKILL); err != nil && !errors.Is(err, syscall.ESRCH) {
			debug.Logf("llm: SIGKILL failed for pgid %d: %v", pgid, err)
		}
	})
	return nil
}
