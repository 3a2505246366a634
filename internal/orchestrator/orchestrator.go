// Package orchestrator runs one launch: helper scripts, the main target, the
// teardown of the helpers, an optional follow-up and the final shutdown.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/loykin/launchr/internal/container"
	"github.com/loykin/launchr/internal/fault"
	"github.com/loykin/launchr/internal/history"
	"github.com/loykin/launchr/internal/logger"
	"github.com/loykin/launchr/internal/metrics"
	"github.com/loykin/launchr/internal/notify"
	"github.com/loykin/launchr/internal/process"
)

const (
	separator = "======================================"
	leftOpen  = "This application, if left open, will end all scripts that were started once you close the game."
)

// Settings is everything a run needs to know up front.
type Settings struct {
	Record     container.Container
	WorkDir    string
	ScriptsDir string

	// SkipFailedHelpers keeps going when a helper fails to start. By default
	// the run aborts and the helpers already started are killed.
	SkipFailedHelpers bool
	HelperLog         logger.Config
	// Env is appended to the OS environment of helpers and the follow-up.
	Env               []string
	Main              MainTarget
	FollowUp          FollowUpTarget
	Shutdown          ShutdownPlan

	// SampleUsage publishes CPU and memory of the main process while it runs.
	SampleUsage    bool
	SampleInterval time.Duration
}

type MainTarget struct {
	Path     string
	Label    string
	Args     []string
	Env      []string
	Priority process.Priority
	Hidden   bool

	// WaitTimeout > 0 bounds the wait on the main process. On expiry the run
	// moves on and the main process is left running.
	WaitTimeout time.Duration
}

// FollowUpTarget is started visibly after teardown. An empty Path disables it.
type FollowUpTarget struct {
	Path string
	Args []string
}

type ShutdownPlan struct {
	Delay           time.Duration
	Independent     bool
	WaitForKeypress bool
}

// Report summarizes a finished (or aborted) run.
type Report struct {
	RunID          string
	HelpersStarted int
	HelperFailures int
	HelpersEnded   int
	MainPID        int
	MainExited     bool
	MainErr        error
	FollowUpRan    bool
	FollowUpErr    error
	State          State
}

type Orchestrator struct {
	s        Settings
	procs    ProcessAPI
	term     Terminator
	notifier notify.Notifier
	out      io.Writer
	log      *slog.Logger
	sink     history.Sink
	runID    string

	state State
}

type Option func(*Orchestrator)

func WithNotifier(n notify.Notifier) Option { return func(o *Orchestrator) { o.notifier = n } }
func WithOutput(w io.Writer) Option         { return func(o *Orchestrator) { o.out = w } }
func WithLogger(l *slog.Logger) Option      { return func(o *Orchestrator) { o.log = l } }
func WithHistory(s history.Sink) Option     { return func(o *Orchestrator) { o.sink = s } }
func WithRunID(id string) Option            { return func(o *Orchestrator) { o.runID = id } }

// New builds an orchestrator. term may be nil, in which case the run ends
// after the follow-up without closing anything.
func New(s Settings, procs ProcessAPI, term Terminator, opts ...Option) *Orchestrator {
	o := &Orchestrator{s: s, procs: procs, term: term}
	for _, opt := range opts {
		opt(o)
	}
	if o.procs == nil {
		o.procs = OSProcesses{}
	}
	if o.out == nil {
		o.out = io.Discard
	}
	if o.notifier == nil {
		o.notifier = &notify.Console{W: io.Discard}
	}
	if o.log == nil {
		o.log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if o.sink == nil {
		o.sink = history.Nop{}
	}
	if o.runID == "" {
		o.runID = uuid.NewString()
	}
	o.log = o.log.With("run_id", o.runID)
	return o
}

func (o *Orchestrator) RunID() string { return o.runID }

// State returns the phase the run is in.
func (o *Orchestrator) State() State { return o.state }

// Run executes the launch sequence. The wait on the main process has no
// limit unless MainTarget.WaitTimeout is set.
func (o *Orchestrator) Run(ctx context.Context) (Report, error) {
	rep := Report{RunID: o.runID}
	o.emit(ctx, history.Event{Type: history.EventRunStart, Detail: o.s.Record.Scripts})

	o.transition(ctx, HelpersStarting)
	pids, err := o.startHelpers(ctx, &rep)
	if err != nil {
		rep.HelpersEnded = o.endHelpers(ctx, pids)
		return o.abort(ctx, rep, err)
	}

	o.transition(ctx, MainStarting)
	target, err := o.startMain(ctx)
	if err != nil {
		o.say(separator)
		rep.HelpersEnded = o.endHelpers(ctx, pids)
		return o.abort(ctx, rep, err)
	}
	rep.MainPID = target.PID()

	o.transition(ctx, MainRunning)
	o.waitMain(ctx, target, &rep)

	o.transition(ctx, Teardown)
	o.say(separator)
	rep.HelpersEnded = o.endHelpers(ctx, pids)
	o.say("")
	o.say(plural("Ended", rep.HelpersEnded))
	o.say("")

	o.transition(ctx, FollowUp)
	rep.FollowUpRan, rep.FollowUpErr = o.runFollowUp(ctx)

	o.transition(ctx, ShuttingDown)
	o.emit(ctx, history.Event{Type: history.EventRunEnd, Detail: "completed"})
	if o.term != nil {
		o.term.CloseAfter(o.s.Shutdown.Delay, o.s.Shutdown.Independent)
		o.term.CloseApplication(o.s.Shutdown.WaitForKeypress)
	}
	o.transition(ctx, Terminal)
	rep.State = o.state
	return rep, nil
}

func (o *Orchestrator) abort(ctx context.Context, rep Report, err error) (Report, error) {
	rep.State = o.state
	o.log.Error("run aborted", "state", o.state.String(), "error", err)
	o.emit(ctx, history.Event{Type: history.EventRunEnd, Detail: "aborted: " + err.Error()})
	return rep, err
}

func (o *Orchestrator) startHelpers(ctx context.Context, rep *Report) ([]int, error) {
	names := o.s.Record.Names()
	var pids []int

	o.say(separator)
	o.say("")
	for _, name := range names {
		o.say("Starting script: " + name)
		spec := process.Spec{
			Name:    name,
			Path:    filepath.Join(o.s.WorkDir, o.s.ScriptsDir, name),
			WorkDir: o.s.WorkDir,
			Env:     o.s.Env,
			Hidden:  true,
			Log:     o.s.HelperLog,
		}
		h, err := o.procs.Start(spec)
		if err != nil {
			metrics.IncHelperStartFailure()
			o.emit(ctx, history.Event{Type: history.EventHelperStartFailed, Name: name, Detail: err.Error()})
			o.report(fault.New("start script", spec.Path, err))
			if !o.s.SkipFailedHelpers {
				return pids, fmt.Errorf("start script %s: %w", name, err)
			}
			rep.HelperFailures++
			continue
		}
		pids = append(pids, h.PID())
		metrics.IncHelperStart()
		o.log.Info("script started", "name", name, "pid", h.PID())
		o.emit(ctx, history.Event{Type: history.EventHelperStart, Name: name, PID: h.PID()})
	}
	rep.HelpersStarted = len(pids)

	o.say("")
	o.say(separator)
	o.say("")
	o.say(plural("Started", len(pids)))
	o.say("")
	return pids, nil
}

func (o *Orchestrator) startMain(ctx context.Context) (Handle, error) {
	m := o.s.Main
	prio := m.Priority
	if prio == "" {
		prio = process.PriorityNormal
	}
	label := m.Label
	if label == "" {
		label = filepath.Base(m.Path)
	}
	o.say(fmt.Sprintf("Starting \"%s\" with %s priority.", label, prio))

	spec := process.Spec{
		Name:    filepath.Base(m.Path),
		Path:    m.Path,
		Args:    m.Args,
		WorkDir: o.s.WorkDir,
		Env:     m.Env,
		Hidden:  m.Hidden,
	}
	h, err := o.procs.Start(spec)
	if err != nil {
		o.report(fault.New("start", m.Path, err))
		return nil, fmt.Errorf("start %s: %w", label, err)
	}
	if prio != process.PriorityNormal {
		if err := h.SetPriority(prio); err != nil {
			o.log.Warn("raise priority failed", "pid", h.PID(), "error", err)
			o.notifier.Show(fmt.Sprintf("Could not give \"%s\" %s priority: %v", label, prio, err))
		}
	}
	o.log.Info("main target started", "path", m.Path, "pid", h.PID(), "priority", string(prio))
	o.emit(ctx, history.Event{Type: history.EventMainStart, Name: label, PID: h.PID()})

	o.say("")
	o.say(leftOpen)
	o.say("")
	return h, nil
}

func (o *Orchestrator) waitMain(ctx context.Context, h Handle, rep *Report) {
	pid := h.PID()
	if o.s.SampleUsage {
		sctx, cancel := context.WithCancel(ctx)
		defer cancel()
		go metrics.SampleUsage(sctx, pid, o.s.SampleInterval, o.log)
	}

	started := time.Now()
	if h.Exited() {
		o.log.Debug("main target already exited, skipping wait", "pid", pid)
		rep.MainExited, rep.MainErr = true, h.Wait()
	} else {
		rep.MainExited, rep.MainErr = h.WaitTimeout(o.s.Main.WaitTimeout)
	}

	if !rep.MainExited {
		o.log.Warn("main target still running after wait timeout", "pid", pid, "timeout", o.s.Main.WaitTimeout)
		o.emit(ctx, history.Event{Type: history.EventMainExit, PID: pid, Detail: "wait timed out"})
		return
	}
	metrics.ObserveMainRuntime(time.Since(started))
	detail := "exited"
	if rep.MainErr != nil {
		detail = rep.MainErr.Error()
	}
	o.log.Info("main target exited", "pid", pid, "error", rep.MainErr)
	o.emit(ctx, history.Event{Type: history.EventMainExit, PID: pid, Detail: detail})
}

// endHelpers kills every recorded helper and returns how many were actually
// found and killed. Gone processes count zero; other failures are reported
// and the loop carries on.
func (o *Orchestrator) endHelpers(ctx context.Context, pids []int) int {
	ended := 0
	for _, pid := range pids {
		err := o.killHelper(pid)
		switch {
		case err == nil:
			ended++
			metrics.IncHelperKill("ended")
			o.emit(ctx, history.Event{Type: history.EventHelperKill, PID: pid, Detail: "ended"})
		case errors.Is(err, process.ErrNotFound):
			metrics.IncHelperKill("not_found")
			o.log.Debug("script already gone", "pid", pid)
			o.emit(ctx, history.Event{Type: history.EventHelperKill, PID: pid, Detail: "not found"})
		default:
			metrics.IncHelperKill("error")
			o.report(fault.New("end script", fmt.Sprintf("pid %d", pid), err))
			o.emit(ctx, history.Event{Type: history.EventHelperKill, PID: pid, Detail: err.Error()})
		}
	}
	return ended
}

func (o *Orchestrator) killHelper(pid int) error {
	k, err := o.procs.Lookup(pid)
	if err != nil {
		return err
	}
	return k.Kill()
}

func (o *Orchestrator) runFollowUp(ctx context.Context) (bool, error) {
	f := o.s.FollowUp
	if f.Path == "" {
		return false, nil
	}
	name := filepath.Base(f.Path)
	o.say(separator)
	o.say("")
	o.say("Starting follow-up: " + name)
	o.say("")

	h, err := o.procs.Start(process.Spec{
		Name:    name,
		Path:    f.Path,
		Args:    f.Args,
		WorkDir: filepath.Dir(f.Path),
		Env:     o.s.Env,
	})
	if err != nil {
		o.report(fault.New("start follow-up", f.Path, err))
		o.emit(ctx, history.Event{Type: history.EventFollowUpExit, Name: name, Detail: err.Error()})
		return false, err
	}
	o.emit(ctx, history.Event{Type: history.EventFollowUpStart, Name: name, PID: h.PID()})

	if h.Exited() {
		o.log.Debug("follow-up already exited", "pid", h.PID())
	}
	werr := h.Wait()
	detail := "exited"
	if werr != nil {
		detail = werr.Error()
	}
	o.emit(ctx, history.Event{Type: history.EventFollowUpExit, Name: name, PID: h.PID(), Detail: detail})
	return true, werr
}

func (o *Orchestrator) transition(ctx context.Context, to State) {
	from := o.state
	o.state = to
	o.log.Debug("state transition", "from", from.String(), "to", to.String())
	metrics.RecordStateTransition(from.String(), to.String())
	o.emit(ctx, history.Event{Type: history.EventState, Detail: from.String() + "->" + to.String()})
}

func (o *Orchestrator) emit(ctx context.Context, e history.Event) {
	e.RunID = o.runID
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now()
	}
	if err := o.sink.Send(ctx, e); err != nil {
		o.log.Debug("history send failed", "type", string(e.Type), "error", err)
	}
}

func (o *Orchestrator) report(fe *fault.Error) {
	o.log.Error("operation failed", "op", fe.Op, "path", fe.Path, "kind", fe.Kind.String(), "error", fe.Err)
	o.notifier.Show(fe.Error())
}

func (o *Orchestrator) say(line string) {
	_, _ = fmt.Fprintln(o.out, line)
}

func plural(verb string, n int) string {
	if n == 1 {
		return fmt.Sprintf("%s %d script.", verb, n)
	}
	return fmt.Sprintf("%s %d scripts.", verb, n)
}
