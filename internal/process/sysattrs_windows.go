//go:build windows

package process

import (
	"os/exec"
	"syscall"
)

// Windows creation flags
const (
	CREATE_NEW_CONSOLE = 0x00000010
	CREATE_NO_WINDOW   = 0x08000000
)

// configureSysProcAttr sets platform-specific attributes for Windows.
// Hidden processes get no console window at all; visible ones get their own.
func configureSysProcAttr(cmd *exec.Cmd, spec Spec) {
	attrs := &syscall.SysProcAttr{}
	if spec.Hidden {
		attrs.HideWindow = true
		attrs.CreationFlags = CREATE_NO_WINDOW
	} else {
		attrs.CreationFlags = CREATE_NEW_CONSOLE
	}
	cmd.SysProcAttr = attrs
}
