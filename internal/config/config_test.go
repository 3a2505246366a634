package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	c, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "ScriptsToLoad", c.ContainerName)
	assert.Equal(t, "UserScripts", c.ScriptsDir)
	assert.Equal(t, "Witcher3Shortcut", c.Main.Target)
	assert.Equal(t, "high", c.Main.Priority)
	assert.Equal(t, time.Duration(0), c.Main.WaitTimeout)
	assert.Equal(t, 10*time.Second, c.Shutdown.Delay)
	assert.True(t, c.Shutdown.Independent)
	assert.True(t, c.Shutdown.WaitForKeypress)
	assert.Equal(t, FailAbort, c.HelperFailure)
	assert.Equal(t, "console", c.Notifier)
	assert.Empty(t, c.FollowUp.Path)
}

func TestLoad_File(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "launchr.toml")
	data := `
workdir = "/opt/game"
helper_failure = "skip"
notifier = "dialog"
env = ["Path=C:/mods"]

[main]
target = "game.sh"
label = "Game"
priority = "normal"
wait_timeout = "2h"
env = ["DXVK_HUD=fps"]

[followup]
path = "tools/backup"
args = ["--saves"]

[shutdown]
delay = "3s"
independent = false
wait_for_keypress = false

[log]
level = "debug"
  [log.file]
  dir = "/var/log/launchr"

[history]
dsn = "sqlite:///tmp/launchr.db"
`
	require.NoError(t, os.WriteFile(file, []byte(data), 0o644))

	c, err := Load(file)
	require.NoError(t, err)
	assert.Equal(t, "/opt/game", c.WorkDir)
	assert.Equal(t, FailSkip, c.HelperFailure)
	assert.Equal(t, "dialog", c.Notifier)
	assert.Equal(t, "game.sh", c.Main.Target)
	assert.Equal(t, "normal", c.Main.Priority)
	assert.Equal(t, 2*time.Hour, c.Main.WaitTimeout)
	assert.Equal(t, []string{"DXVK_HUD=fps"}, c.Main.Env)
	assert.Equal(t, []string{"Path=C:/mods"}, c.Env)
	assert.Equal(t, "tools/backup", c.FollowUp.Path)
	assert.Equal(t, []string{"--saves"}, c.FollowUp.Args)
	assert.Equal(t, 3*time.Second, c.Shutdown.Delay)
	assert.False(t, c.Shutdown.Independent)
	assert.False(t, c.Shutdown.WaitForKeypress)
	assert.Equal(t, "debug", c.Log.Level)
	assert.Equal(t, "/var/log/launchr", c.Log.File.Dir)
	assert.Equal(t, "sqlite:///tmp/launchr.db", c.History.DSN)
	// untouched keys keep defaults
	assert.Equal(t, "UserScripts", c.ScriptsDir)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("LAUNCHR_SHUTDOWN_DELAY", "250ms")
	t.Setenv("LAUNCHR_SCRIPTS_DIR", "Helpers")
	c, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 250*time.Millisecond, c.Shutdown.Delay)
	assert.Equal(t, "Helpers", c.ScriptsDir)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty container", func(c *Config) { c.ContainerName = " " }},
		{"container with slash", func(c *Config) { c.ContainerName = "a/b" }},
		{"empty target", func(c *Config) { c.Main.Target = "" }},
		{"bad priority", func(c *Config) { c.Main.Priority = "realtime" }},
		{"negative timeout", func(c *Config) { c.Main.WaitTimeout = -time.Second }},
		{"negative delay", func(c *Config) { c.Shutdown.Delay = -time.Second }},
		{"bad policy", func(c *Config) { c.HelperFailure = "retry" }},
		{"bad level", func(c *Config) { c.Log.Level = "loud" }},
		{"bad env", func(c *Config) { c.Env = []string{"NOVALUE"} }},
		{"bad main env", func(c *Config) { c.Main.Env = []string{"=x"} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := Load("")
			require.NoError(t, err)
			tt.mutate(c)
			assert.Error(t, c.Validate())
		})
	}
}

func TestResolveWorkDir(t *testing.T) {
	c := &Config{}
	wd, err := os.Getwd()
	require.NoError(t, err)
	got, err := c.ResolveWorkDir()
	require.NoError(t, err)
	assert.Equal(t, wd, got)

	c.WorkDir = "rel"
	got, err = c.ResolveWorkDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(wd, "rel"), got)
}

func TestExecutableDir(t *testing.T) {
	dir, err := ExecutableDir()
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(dir))
}
