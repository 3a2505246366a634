package orchestrator

import (
	"time"

	"github.com/loykin/launchr/internal/process"
)

// Handle is a process started by the orchestrator.
type Handle interface {
	PID() int
	Wait() error
	WaitTimeout(d time.Duration) (bool, error)
	Exited() bool
	SetPriority(p process.Priority) error
	Kill() error
}

// Killer is a live process found by ID.
type Killer interface {
	Kill() error
}

// ProcessAPI starts processes and finds them again by ID.
type ProcessAPI interface {
	Start(spec process.Spec) (Handle, error)
	Lookup(pid int) (Killer, error)
}

// Terminator closes the application at the end of a run.
type Terminator interface {
	CloseAfter(d time.Duration, independent bool)
	CloseApplication(waitForKeypress bool)
}

// OSProcesses is the ProcessAPI backed by the operating system.
type OSProcesses struct{}

func (OSProcesses) Start(spec process.Spec) (Handle, error) {
	p, err := process.Start(spec)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (OSProcesses) Lookup(pid int) (Killer, error) {
	f, err := process.Lookup(pid)
	if err != nil {
		return nil, err
	}
	return f, nil
}
