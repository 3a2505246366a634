package process

import (
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/loykin/launchr/internal/logger"
)

// Priority is the scheduling class requested for a started process.
type Priority string

const (
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
)

// ParsePriority accepts "normal" or "high"; empty means normal.
func ParsePriority(s string) (Priority, error) {
	switch Priority(strings.ToLower(strings.TrimSpace(s))) {
	case "", PriorityNormal:
		return PriorityNormal, nil
	case PriorityHigh:
		return PriorityHigh, nil
	}
	return "", fmt.Errorf("unknown priority %q", s)
}

// Spec describes a process to launch.
type Spec struct {
	Name    string   `json:"name"`     // display name, also used for log file names
	Path    string   `json:"path"`     // executable path
	Args    []string `json:"args"`     // optional arguments
	WorkDir string   `json:"work_dir"` // optional working dir
	Env     []string `json:"env"`      // optional extra env, appended to os.Environ
	// Hidden starts the process without a window. Its stdio goes to the
	// per-process log files when Log.File.Dir is set, otherwise to the null device.
	Hidden bool          `json:"hidden"`
	Log    logger.Config `json:"-"`
}

// BuildCommand constructs an *exec.Cmd for the spec. The path is executed
// directly, never through a shell.
func (s *Spec) BuildCommand() *exec.Cmd {
	// #nosec G204 -- paths come from the launcher configuration
	cmd := exec.Command(s.Path, s.Args...)
	if s.WorkDir != "" {
		cmd.Dir = s.WorkDir
	}
	if len(s.Env) > 0 {
		cmd.Env = append(os.Environ(), s.Env...)
	}
	configureSysProcAttr(cmd, *s)
	return cmd
}

func (s *Spec) displayName() string {
	if s.Name != "" {
		return s.Name
	}
	return s.Path
}
