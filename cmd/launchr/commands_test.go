package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loykin/launchr/internal/config"
	"github.com/loykin/launchr/internal/container"
	"github.com/loykin/launchr/internal/history"
	"github.com/loykin/launchr/internal/history/sqlite"
	"github.com/loykin/launchr/internal/process"
)

func writeTOML(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func writeScript(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755))
}

type testEnv struct {
	dir    string
	config string
	out    bytes.Buffer
	errOut bytes.Buffer
	cmd    *command
}

func newTestEnv(t *testing.T, extra string) *testEnv {
	t.Helper()
	dir := t.TempDir()
	te := &testEnv{dir: dir}
	te.config = writeTOML(t, dir, "launchr.toml", `
workdir = "`+filepath.ToSlash(dir)+`"
main.target = "game.sh"
main.priority = "normal"
main.label = "Test Game"

[shutdown]
delay = "0s"
independent = false
wait_for_keypress = false

[history]
dsn = "sqlite://`+filepath.ToSlash(filepath.Join(dir, "history.db"))+`"
`+extra)
	te.cmd = newCommand(nil, &te.out, &te.errOut)
	return te
}

func TestRunLaunchSequence(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires /bin/sh")
	}
	te := newTestEnv(t, "")
	writeScript(t, filepath.Join(te.dir, "UserScripts", "helper.sh"), "exec sleep 30")
	writeScript(t, filepath.Join(te.dir, "game.sh"), "sleep 0.2")
	require.NoError(t, te.cmd.ConfigSet(ConfigFlags{ConfigPath: te.config}, []string{"helper.sh"}))

	done := make(chan error, 1)
	go func() { done <- te.cmd.Run(context.Background(), RunFlags{ConfigPath: te.config}) }()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(15 * time.Second):
		t.Fatal("launch sequence did not finish")
	}

	out := te.out.String()
	assert.Contains(t, out, "Starting script: helper.sh")
	assert.Contains(t, out, "Started 1 script.")
	assert.Contains(t, out, `Starting "Test Game" with normal priority.`)
	assert.Contains(t, out, "Ended 1 script.")

	te.out.Reset()
	require.NoError(t, te.cmd.History(context.Background(), HistoryFlags{ConfigPath: te.config, Limit: 100}))
	assert.Contains(t, te.out.String(), "helper_start")
	assert.Contains(t, te.out.String(), "main_exit")
	assert.Contains(t, te.out.String(), "run_end")
}

func TestRunPersistsFinalTransition(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires /bin/sh")
	}
	te := newTestEnv(t, "")
	writeScript(t, filepath.Join(te.dir, "game.sh"), "exit 0")
	require.NoError(t, te.cmd.Run(context.Background(), RunFlags{ConfigPath: te.config}))

	sink, err := sqlite.New(filepath.Join(te.dir, "history.db"))
	require.NoError(t, err)
	defer func() { _ = sink.Close() }()
	events, err := sink.Recent(context.Background(), 100)
	require.NoError(t, err)
	var final bool
	for _, ev := range events {
		if ev.Type == history.EventState && ev.Detail == "shutting_down->terminal" {
			final = true
		}
	}
	assert.True(t, final, "terminal transition missing from %d events", len(events))
}

func TestRunCreatesDefaultContainer(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires /bin/sh")
	}
	te := newTestEnv(t, "")
	writeScript(t, filepath.Join(te.dir, "game.sh"), "exit 0")

	require.NoError(t, te.cmd.Run(context.Background(), RunFlags{ConfigPath: te.config}))
	assert.FileExists(t, filepath.Join(te.dir, container.DefaultName+container.Extension))
	assert.Contains(t, te.out.String(), "Started 0 scripts.")
}

func TestRunMissingMainTargetFails(t *testing.T) {
	te := newTestEnv(t, "")
	err := te.cmd.Run(context.Background(), RunFlags{ConfigPath: te.config})
	require.Error(t, err)
	assert.Contains(t, te.errOut.String(), "game.sh")
}

func TestConfigInitRefusesOverwrite(t *testing.T) {
	te := newTestEnv(t, "")
	f := ConfigFlags{ConfigPath: te.config}
	require.NoError(t, te.cmd.ConfigSet(f, []string{"a.exe, b.exe"}))
	before, err := os.ReadFile(filepath.Join(te.dir, "ScriptsToLoad.xml"))
	require.NoError(t, err)

	require.NoError(t, te.cmd.ConfigInit(f))
	after, err := os.ReadFile(filepath.Join(te.dir, "ScriptsToLoad.xml"))
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.NotEmpty(t, te.errOut.String())
}

func TestConfigShowSetDelete(t *testing.T) {
	te := newTestEnv(t, "")
	f := ConfigFlags{ConfigPath: te.config}

	require.NoError(t, te.cmd.ConfigShow(f))
	assert.Contains(t, te.out.String(), "(no script container)")

	require.NoError(t, te.cmd.ConfigSet(f, []string{"a.exe", "b.exe"}))
	require.NoError(t, te.cmd.ConfigSet(f, []string{"c.exe"}))
	te.out.Reset()
	require.NoError(t, te.cmd.ConfigShow(f))
	assert.Contains(t, te.out.String(), "c.exe")
	assert.NotContains(t, te.out.String(), "a.exe")

	require.NoError(t, te.cmd.ConfigDelete(f))
	assert.NoFileExists(t, filepath.Join(te.dir, "ScriptsToLoad.xml"))
}

func TestHistoryWithoutStore(t *testing.T) {
	c := newCommand(nil, &bytes.Buffer{}, &bytes.Buffer{})
	err := c.History(context.Background(), HistoryFlags{})
	assert.Error(t, err)
}

func TestHistoryEmpty(t *testing.T) {
	var out bytes.Buffer
	c := newCommand(nil, &out, &bytes.Buffer{})
	dsn := "sqlite://" + filepath.Join(t.TempDir(), "h.db")
	require.NoError(t, c.History(context.Background(), HistoryFlags{DSN: dsn, Limit: 5}))
	assert.Contains(t, out.String(), "No history recorded")
}

func TestBuildSettings(t *testing.T) {
	cfg := &config.Config{
		ScriptsDir:    "UserScripts",
		HelperFailure: config.FailSkip,
		Main: config.MainConfig{
			Target:      "Witcher3Shortcut",
			Priority:    "high",
			WaitTimeout: time.Minute,
		},
		FollowUp: config.FollowUpConfig{Path: "Backup/backup.exe", Args: []string{"-q"}},
		Shutdown: config.ShutdownConfig{Delay: 10 * time.Second, Independent: true},
	}
	s, err := buildSettings(cfg, container.New("a.exe"), "/games/w3", "/opt/launchr")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/games/w3", "Witcher3Shortcut"), s.Main.Path)
	assert.Equal(t, process.PriorityHigh, s.Main.Priority)
	assert.Equal(t, time.Minute, s.Main.WaitTimeout)
	assert.True(t, s.SkipFailedHelpers)
	assert.Equal(t, filepath.Join("/opt/launchr", "Backup/backup.exe"), s.FollowUp.Path)
	assert.Equal(t, []string{"-q"}, s.FollowUp.Args)
	assert.Equal(t, 10*time.Second, s.Shutdown.Delay)
	assert.False(t, s.SampleUsage)

	cfg.FollowUp.Path = ""
	cfg.Main.Priority = "bogus"
	_, err = buildSettings(cfg, container.New(), "/w", "/e")
	assert.Error(t, err)
}

func TestRootCommandConfigSet(t *testing.T) {
	te := newTestEnv(t, "")
	root := buildRoot(te.cmd)
	root.SetArgs([]string{"--config", te.config, "config", "set", "x.exe", "y.exe"})
	require.NoError(t, root.Execute())
	assert.Contains(t, te.out.String(), "Scripts: x.exe, y.exe")

	root = buildRoot(te.cmd)
	root.SetArgs([]string{"--help"})
	te.out.Reset()
	require.NoError(t, root.Execute())
	assert.Contains(t, te.out.String(), "launchr")
}
