package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/term"

	"github.com/loykin/launchr/internal/config"
	"github.com/loykin/launchr/internal/container"
	"github.com/loykin/launchr/internal/env"
	"github.com/loykin/launchr/internal/history"
	"github.com/loykin/launchr/internal/history/factory"
	"github.com/loykin/launchr/internal/keypress"
	"github.com/loykin/launchr/internal/logger"
	"github.com/loykin/launchr/internal/metrics"
	"github.com/loykin/launchr/internal/notify"
	"github.com/loykin/launchr/internal/orchestrator"
	"github.com/loykin/launchr/internal/process"
	"github.com/loykin/launchr/internal/shutdown"
)

type command struct {
	in     *os.File
	out    io.Writer
	errOut io.Writer
	procs  orchestrator.ProcessAPI
}

func newCommand(in *os.File, out, errOut io.Writer) *command {
	return &command{in: in, out: out, errOut: errOut, procs: orchestrator.OSProcesses{}}
}

// session is what every subcommand needs: config, logger, notifier and the repo.
type session struct {
	cfg      *config.Config
	workDir  string
	log      *slog.Logger
	logClose io.Closer
	keys     *keypress.Terminal
	notifier notify.Notifier
	repo     *container.Repo
}

func (c *command) setup(configPath, workDir string) (*session, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if workDir != "" {
		cfg.WorkDir = workDir
	}
	wd, err := cfg.ResolveWorkDir()
	if err != nil {
		return nil, fmt.Errorf("resolve workdir: %w", err)
	}
	log, closer, err := logger.New(cfg.Log, c.errOut)
	if err != nil {
		return nil, err
	}
	keys := keypress.NewTerminal(c.in)
	n, err := notify.New(cfg.Notifier, c.errOut, keys)
	if err != nil {
		_ = closer.Close()
		return nil, err
	}
	repo := container.NewRepo(wd, n, container.WithName(cfg.ContainerName), container.WithLogger(log))
	return &session{cfg: cfg, workDir: wd, log: log, logClose: closer, keys: keys, notifier: n, repo: repo}, nil
}

// Run executes the launch sequence and returns once the application has
// been closed, either by the shutdown timer or after the final keypress.
func (c *command) Run(ctx context.Context, f RunFlags) error {
	if ctx == nil {
		ctx = context.Background()
	}
	e, err := c.setup(f.ConfigPath, f.WorkDir)
	if err != nil {
		return err
	}
	cfg := e.cfg
	if f.NoWait {
		cfg.Shutdown.WaitForKeypress = false
	}
	if f.MetricsListen != "" {
		cfg.Metrics.Listen = f.MetricsListen
	}

	c.setTitle(cfg.Title)

	rec, err := e.repo.Load()
	if err != nil {
		_ = e.logClose.Close()
		return err
	}

	sink, err := factory.NewSinkFromDSN(cfg.History.DSN)
	if err != nil {
		e.log.Warn("history disabled", "error", err)
		sink = history.Nop{}
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	if cfg.Metrics.Listen != "" {
		reg := prometheus.NewRegistry()
		if err := metrics.Register(reg); err != nil {
			e.log.Warn("metrics register failed", "error", err)
		} else if addr, err := metrics.Serve(ctx, cfg.Metrics.Listen, reg); err != nil {
			e.log.Warn("metrics server failed", "listen", cfg.Metrics.Listen, "error", err)
		} else {
			e.log.Info("serving metrics", "addr", addr.String())
		}
	}

	exeDir, err := config.ExecutableDir()
	if err != nil {
		e.log.Warn("executable dir unknown; follow-up disabled", "error", err)
	}
	settings, err := buildSettings(cfg, rec, e.workDir, exeDir)
	if err != nil {
		_ = sink.Close()
		_ = e.logClose.Close()
		return err
	}

	// The terminator only restores the console. The sink and the log stay
	// open until the run has recorded its last transition.
	restore := func() { _ = e.keys.Restore() }
	finish := func() {
		_ = sink.Close()
		_ = e.logClose.Close()
	}
	terminator := shutdown.NewTerminator(c.out, e.keys, shutdown.CloserFunc(restore), e.log)
	orch := orchestrator.New(settings, c.procs, terminator,
		orchestrator.WithNotifier(e.notifier),
		orchestrator.WithOutput(c.out),
		orchestrator.WithLogger(e.log),
		orchestrator.WithHistory(sink),
	)

	errCh := make(chan error, 1)
	go func() {
		_, err := orch.Run(ctx)
		errCh <- err
	}()

	select {
	case err := <-errCh:
		restore()
		finish()
		return err
	case <-terminator.Done():
		// A close issued by the timer can land while the run is still parked
		// on the final keypress; give it a moment to finish, then leave.
		select {
		case <-errCh:
		case <-time.After(finishGrace):
		}
		finish()
		return nil
	}
}

// finishGrace bounds how long Run waits for the orchestrator after the close.
const finishGrace = 500 * time.Millisecond

// buildSettings maps the configuration onto one orchestrator run.
func buildSettings(cfg *config.Config, rec container.Container, workDir, exeDir string) (orchestrator.Settings, error) {
	prio, err := process.ParsePriority(cfg.Main.Priority)
	if err != nil {
		return orchestrator.Settings{}, err
	}
	s := orchestrator.Settings{
		Record:            rec,
		WorkDir:           workDir,
		ScriptsDir:        cfg.ScriptsDir,
		SkipFailedHelpers: cfg.HelperFailure == config.FailSkip,
		HelperLog:         cfg.Log,
		Env:               env.Compose(cfg.Env, nil),
		Main: orchestrator.MainTarget{
			Path:        resolve(workDir, cfg.Main.Target),
			Label:       cfg.Main.Label,
			Args:        cfg.Main.Args,
			Env:         env.Compose(cfg.Env, cfg.Main.Env),
			Priority:    prio,
			Hidden:      cfg.Main.Hidden,
			WaitTimeout: cfg.Main.WaitTimeout,
		},
		Shutdown: orchestrator.ShutdownPlan{
			Delay:           cfg.Shutdown.Delay,
			Independent:     cfg.Shutdown.Independent,
			WaitForKeypress: cfg.Shutdown.WaitForKeypress,
		},
		SampleUsage: cfg.Metrics.Listen != "",
	}
	if cfg.FollowUp.Path != "" && exeDir != "" {
		s.FollowUp = orchestrator.FollowUpTarget{
			Path: resolve(exeDir, cfg.FollowUp.Path),
			Args: cfg.FollowUp.Args,
		}
	}
	return s, nil
}

func resolve(base, p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(base, p)
}

// setTitle names the console window when stdout is a terminal.
func (c *command) setTitle(title string) {
	f, ok := c.out.(*os.File)
	if !ok || title == "" || !term.IsTerminal(int(f.Fd())) {
		return
	}
	_, _ = fmt.Fprintf(f, "\x1b]0;%s\x07", title)
}

func (c *command) ConfigShow(f ConfigFlags) error {
	e, err := c.setup(f.ConfigPath, "")
	if err != nil {
		return err
	}
	defer func() { _ = e.logClose.Close() }()

	path := e.repo.Path("")
	scripts := "(no script container)"
	if _, err := os.Stat(path); err == nil {
		rec, err := e.repo.Retrieve("")
		if err != nil {
			return err
		}
		scripts = strings.Join(rec.Names(), ", ")
	}

	cfg := e.cfg
	table := tablewriter.NewWriter(c.out)
	table.Header("Key", "Value")
	rows := [][]string{
		{"workdir", e.workDir},
		{"container", path},
		{"scripts", scripts},
		{"scripts_dir", filepath.Join(e.workDir, cfg.ScriptsDir)},
		{"main.target", resolve(e.workDir, cfg.Main.Target)},
		{"main.priority", cfg.Main.Priority},
		{"main.wait_timeout", cfg.Main.WaitTimeout.String()},
		{"helper_failure", cfg.HelperFailure},
		{"followup.path", cfg.FollowUp.Path},
		{"shutdown.delay", cfg.Shutdown.Delay.String()},
		{"shutdown.independent", fmt.Sprint(cfg.Shutdown.Independent)},
		{"shutdown.wait_for_keypress", fmt.Sprint(cfg.Shutdown.WaitForKeypress)},
		{"notifier", cfg.Notifier},
		{"history.dsn", cfg.History.DSN},
	}
	for _, r := range rows {
		if err := table.Append(r[0], r[1]); err != nil {
			return err
		}
	}
	return table.Render()
}

func (c *command) ConfigInit(f ConfigFlags) error {
	e, err := c.setup(f.ConfigPath, "")
	if err != nil {
		return err
	}
	defer func() { _ = e.logClose.Close() }()

	if err := e.repo.Create(container.New()); err != nil {
		// the refusal has already been shown to the operator
		if errors.Is(err, container.ErrExists) {
			return nil
		}
		return err
	}
	_, _ = fmt.Fprintln(c.out, "Created", e.repo.Path(""))
	return nil
}

func (c *command) ConfigSet(f ConfigFlags, scripts []string) error {
	e, err := c.setup(f.ConfigPath, "")
	if err != nil {
		return err
	}
	defer func() { _ = e.logClose.Close() }()

	rec := container.New(scripts...)
	if _, statErr := os.Stat(e.repo.Path("")); errors.Is(statErr, fs.ErrNotExist) {
		err = e.repo.Create(rec)
	} else {
		err = e.repo.Update(rec)
	}
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(c.out, "Scripts: %s\n", strings.Join(rec.Names(), ", "))
	return nil
}

func (c *command) ConfigDelete(f ConfigFlags) error {
	e, err := c.setup(f.ConfigPath, "")
	if err != nil {
		return err
	}
	defer func() { _ = e.logClose.Close() }()
	return e.repo.Delete("")
}

func (c *command) History(ctx context.Context, f HistoryFlags) error {
	if ctx == nil {
		ctx = context.Background()
	}
	dsn := f.DSN
	if dsn == "" {
		cfg, err := config.Load(f.ConfigPath)
		if err != nil {
			return err
		}
		dsn = cfg.History.DSN
	}
	if dsn == "" {
		return errors.New("no history store configured (set history.dsn or --dsn)")
	}
	sink, err := factory.NewSinkFromDSN(dsn)
	if err != nil {
		return err
	}
	defer func() { _ = sink.Close() }()

	reader, ok := sink.(history.Reader)
	if !ok {
		return fmt.Errorf("history store %T cannot be queried", sink)
	}
	events, err := reader.Recent(ctx, f.Limit)
	if err != nil {
		return err
	}
	if len(events) == 0 {
		_, _ = fmt.Fprintln(c.out, "No history recorded")
		return nil
	}

	table := tablewriter.NewWriter(c.out)
	table.Header("Time", "Run", "Event", "Name", "PID", "Detail")
	for _, ev := range events {
		pid := ""
		if ev.PID != 0 {
			pid = fmt.Sprint(ev.PID)
		}
		if err := table.Append(
			ev.OccurredAt.Local().Format("2006-01-02 15:04:05"),
			shortID(ev.RunID),
			string(ev.Type),
			ev.Name,
			pid,
			ev.Detail,
		); err != nil {
			return err
		}
	}
	return table.Render()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
