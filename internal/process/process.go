package process

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"
)

// ErrNotStarted is returned by Wait on a Process that was never started.
var ErrNotStarted = errors.New("process not started")

// reapGrace bounds how long Kill waits for the monitor to reap the child.
const reapGrace = 2 * time.Second

// Process is a handle on one launched OS process. A single monitor goroutine
// owns cmd.Wait; everyone else observes the exit through waitDone.
type Process struct {
	spec      Spec
	cmd       *exec.Cmd
	status    Status
	mu        sync.Mutex
	outCloser io.WriteCloser
	errCloser io.WriteCloser
	waitDone  chan struct{} // closed by monitor when cmd.Wait returns
}

func New(spec Spec) *Process { return &Process{spec: spec} }

// Start builds, configures and starts spec.
func Start(spec Spec) (*Process, error) {
	r := New(spec)
	cmd, err := r.ConfigureCmd()
	if err != nil {
		return nil, err
	}
	if err := r.TryStart(cmd); err != nil {
		r.CloseWriters()
		return nil, err
	}
	return r, nil
}

// ConfigureCmd builds the *exec.Cmd and wires stdio. Hidden processes write to
// rotated log files when configured, otherwise to the null device; visible
// processes share the launcher's terminal.
func (r *Process) ConfigureCmd() (*exec.Cmd, error) {
	r.mu.Lock()
	spec := r.spec
	r.mu.Unlock()

	cmd := spec.BuildCommand()
	if !spec.Hidden {
		cmd.Stdin, cmd.Stdout, cmd.Stderr = os.Stdin, os.Stdout, os.Stderr
		return cmd, nil
	}
	outW, errW, err := spec.Log.ProcessWriters(spec.displayName())
	if err != nil {
		return nil, fmt.Errorf("open logs for %s: %w", spec.displayName(), err)
	}
	r.setWriters(outW, errW)
	if outW != nil || errW != nil {
		// output is copied through pipes; don't let an orphaned grandchild
		// holding them keep Wait blocked
		cmd.WaitDelay = reapGrace
	}
	if outW != nil {
		cmd.Stdout = outW
	}
	if errW != nil {
		cmd.Stderr = errW
	}
	// nil Stdout/Stderr make os/exec attach the null device
	return cmd, nil
}

// TryStart starts cmd, records the started state and launches the monitor.
func (r *Process) TryStart(cmd *exec.Cmd) error {
	if err := cmd.Start(); err != nil {
		return err
	}
	r.SetStarted(cmd)
	go r.monitor(cmd)
	return nil
}

func (r *Process) SetStarted(cmd *exec.Cmd) {
	r.mu.Lock()
	r.cmd = cmd
	r.waitDone = make(chan struct{})
	r.status = Status{
		Name:      r.spec.displayName(),
		Path:      r.spec.Path,
		PID:       cmd.Process.Pid,
		Priority:  PriorityNormal,
		Running:   true,
		StartedAt: time.Now(),
	}
	r.mu.Unlock()
}

func (r *Process) monitor(cmd *exec.Cmd) {
	err := cmd.Wait()
	r.MarkExited(err)
	r.CloseWriters()
	r.mu.Lock()
	close(r.waitDone)
	r.mu.Unlock()
}

func (r *Process) MarkExited(err error) {
	r.mu.Lock()
	r.status.Running = false
	r.status.StoppedAt = time.Now()
	r.status.ExitErr = err
	if r.cmd != nil && r.cmd.ProcessState != nil {
		r.status.ExitCode = r.cmd.ProcessState.ExitCode()
	}
	r.mu.Unlock()
}

func (r *Process) WaitDoneChan() chan struct{} {
	r.mu.Lock()
	wd := r.waitDone
	r.mu.Unlock()
	return wd
}

// PID returns the OS process ID, or 0 before start.
func (r *Process) PID() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status.PID
}

// Exited reports whether the process has exited and been reaped.
func (r *Process) Exited() bool {
	wd := r.WaitDoneChan()
	if wd == nil {
		return false
	}
	select {
	case <-wd:
		return true
	default:
		return false
	}
}

// Wait blocks until the process exits and returns its exit error. It may be
// called any number of times; after the exit it returns immediately.
func (r *Process) Wait() error {
	wd := r.WaitDoneChan()
	if wd == nil {
		return ErrNotStarted
	}
	<-wd
	return r.Snapshot().ExitErr
}

// WaitTimeout is Wait bounded by d. It reports whether the process exited;
// d <= 0 waits without limit.
func (r *Process) WaitTimeout(d time.Duration) (bool, error) {
	if d <= 0 {
		err := r.Wait()
		return !errors.Is(err, ErrNotStarted), err
	}
	wd := r.WaitDoneChan()
	if wd == nil {
		return false, ErrNotStarted
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-wd:
		return true, r.Snapshot().ExitErr
	case <-t.C:
		return false, nil
	}
}

// Kill forcibly terminates the process and waits briefly for it to be
// reaped. Killing an exited process is a no-op.
func (r *Process) Kill() error {
	r.mu.Lock()
	cmd := r.cmd
	r.mu.Unlock()
	if cmd == nil || cmd.Process == nil || r.Exited() {
		return nil
	}
	if err := cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return err
	}
	t := time.NewTimer(reapGrace)
	defer t.Stop()
	select {
	case <-r.WaitDoneChan():
	case <-t.C:
	}
	return nil
}

// SetPriority changes the scheduling priority of the running process.
func (r *Process) SetPriority(p Priority) error {
	pid := r.PID()
	if pid == 0 || r.Exited() {
		return ErrNotStarted
	}
	if err := setPriority(pid, p); err != nil {
		return fmt.Errorf("set %s priority on pid %d: %w", p, pid, err)
	}
	r.mu.Lock()
	r.status.Priority = p
	r.mu.Unlock()
	return nil
}

func (r *Process) setWriters(stdout, stderr io.WriteCloser) {
	r.mu.Lock()
	r.outCloser = stdout
	r.errCloser = stderr
	r.mu.Unlock()
}

func (r *Process) CloseWriters() {
	r.mu.Lock()
	if r.outCloser != nil {
		_ = r.outCloser.Close()
		r.outCloser = nil
	}
	if r.errCloser != nil {
		_ = r.errCloser.Close()
		r.errCloser = nil
	}
	r.mu.Unlock()
}

// Snapshot returns a copy of the current status.
func (r *Process) Snapshot() Status {
	r.mu.Lock()
	s := r.status
	r.mu.Unlock()
	return s
}
