//go:build !windows

package process

import (
	"os/exec"
	"syscall"
)

// configureSysProcAttr sets platform-specific attributes for Unix-like systems.
// Hidden processes get their own process group so terminal signals such as
// Ctrl+C aimed at the launcher do not reach them. Visible ones share the
// launcher's group and terminal.
func configureSysProcAttr(cmd *exec.Cmd, spec Spec) {
	if spec.Hidden {
		cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	}
}
