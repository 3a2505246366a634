package process

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"syscall"

	gopsproc "github.com/shirou/gopsutil/v4/process"
)

// ErrNotFound is returned when no live process has the requested ID.
var ErrNotFound = errors.New("process not found")

// Found is a live process located by ID, not necessarily started by us.
type Found struct {
	PID  int
	Name string
	proc *gopsproc.Process
}

// Lookup finds the live process with the given pid. Zombies count as gone.
func Lookup(pid int) (*Found, error) {
	if pid <= 0 {
		return nil, fmt.Errorf("pid %d: %w", pid, ErrNotFound)
	}
	p, err := gopsproc.NewProcess(int32(pid))
	if err != nil {
		if errors.Is(err, gopsproc.ErrorProcessNotRunning) {
			return nil, fmt.Errorf("pid %d: %w", pid, ErrNotFound)
		}
		return nil, fmt.Errorf("lookup pid %d: %w", pid, err)
	}
	if st, err := p.Status(); err == nil && slices.Contains(st, gopsproc.Zombie) {
		return nil, fmt.Errorf("pid %d: %w", pid, ErrNotFound)
	}
	name, _ := p.Name()
	return &Found{PID: pid, Name: name, proc: p}, nil
}

// Kill terminates the process immediately, without asking it to close.
// A process that vanished between Lookup and Kill yields ErrNotFound.
func (f *Found) Kill() error {
	err := f.proc.Kill()
	switch {
	case err == nil:
		return nil
	case errors.Is(err, os.ErrProcessDone), errors.Is(err, syscall.ESRCH):
		return fmt.Errorf("pid %d: %w", f.PID, ErrNotFound)
	}
	return fmt.Errorf("kill pid %d: %w", f.PID, err)
}
