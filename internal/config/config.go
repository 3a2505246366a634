package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/loykin/launchr/internal/env"
	"github.com/loykin/launchr/internal/logger"
	"github.com/loykin/launchr/internal/process"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g. LAUNCHR_SHUTDOWN_DELAY.
const EnvPrefix = "LAUNCHR"

// Helper start failure policies.
const (
	FailAbort = "abort"
	FailSkip  = "skip"
)

// Config is the launcher configuration. Every key has a default so running
// without a file reproduces the stock launcher layout.
type Config struct {
	Title         string         `mapstructure:"title"`
	WorkDir       string         `mapstructure:"workdir"`
	ContainerName string         `mapstructure:"container_name"`
	ScriptsDir    string         `mapstructure:"scripts_dir"`
	HelperFailure string         `mapstructure:"helper_failure"`
	Notifier      string         `mapstructure:"notifier"`
	// Env holds KEY=value entries added to every launched process.
	Env           []string       `mapstructure:"env"`
	Main          MainConfig     `mapstructure:"main"`
	FollowUp      FollowUpConfig `mapstructure:"followup"`
	Shutdown      ShutdownConfig `mapstructure:"shutdown"`
	Log           logger.Config  `mapstructure:"log"`
	History       HistoryConfig  `mapstructure:"history"`
	Metrics       MetricsConfig  `mapstructure:"metrics"`
}

type MainConfig struct {
	Target   string   `mapstructure:"target"`
	Label    string   `mapstructure:"label"`
	Args     []string `mapstructure:"args"`
	Env      []string `mapstructure:"env"` // K=V, on top of the global env
	Priority string   `mapstructure:"priority"`
	Hidden   bool     `mapstructure:"hidden"`

	// WaitTimeout bounds the wait on the main process. Zero waits forever.
	WaitTimeout time.Duration `mapstructure:"wait_timeout"`
}

// FollowUpConfig describes the companion started after teardown. Path is
// relative to the launcher executable's directory; empty disables it.
type FollowUpConfig struct {
	Path string   `mapstructure:"path"`
	Args []string `mapstructure:"args"`
}

type ShutdownConfig struct {
	Delay           time.Duration `mapstructure:"delay"`
	Independent     bool          `mapstructure:"independent"`
	WaitForKeypress bool          `mapstructure:"wait_for_keypress"`
}

type HistoryConfig struct {
	DSN string `mapstructure:"dsn"`
}

type MetricsConfig struct {
	Listen string `mapstructure:"listen"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("title", "launchr")
	v.SetDefault("workdir", "")
	v.SetDefault("container_name", "ScriptsToLoad")
	v.SetDefault("scripts_dir", "UserScripts")
	v.SetDefault("helper_failure", FailAbort)
	v.SetDefault("notifier", "console")
	v.SetDefault("main.target", "Witcher3Shortcut")
	v.SetDefault("main.label", "The Witcher 3: Wild Hunt")
	v.SetDefault("main.args", []string{})
	v.SetDefault("main.priority", string(process.PriorityHigh))
	v.SetDefault("main.hidden", true)
	v.SetDefault("main.wait_timeout", time.Duration(0))
	v.SetDefault("followup.path", "")
	v.SetDefault("followup.args", []string{})
	v.SetDefault("shutdown.delay", 10*time.Second)
	v.SetDefault("shutdown.independent", true)
	v.SetDefault("shutdown.wait_for_keypress", true)
	v.SetDefault("log.level", "warn")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.color", true)
	v.SetDefault("log.file.path", "")
	v.SetDefault("log.file.dir", "")
	v.SetDefault("log.file.max_size_mb", logger.DefaultMaxSizeMB)
	v.SetDefault("log.file.max_backups", logger.DefaultMaxBackups)
	v.SetDefault("log.file.max_age_days", logger.DefaultMaxAgeDays)
	v.SetDefault("log.file.compress", false)
	v.SetDefault("history.dsn", "")
	v.SetDefault("metrics.listen", "")
}

// Load reads the optional TOML file at path, applies LAUNCHR_* environment
// overrides and validates the result. An empty path uses defaults and env only.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("toml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate rejects values the launcher cannot act on.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.ContainerName) == "" {
		errs = append(errs, errors.New("container_name must not be empty"))
	}
	if strings.ContainsAny(c.ContainerName, `/\`) {
		errs = append(errs, fmt.Errorf("container_name %q must be a bare file name", c.ContainerName))
	}
	if strings.TrimSpace(c.Main.Target) == "" {
		errs = append(errs, errors.New("main.target must not be empty"))
	}
	if _, err := process.ParsePriority(c.Main.Priority); err != nil {
		errs = append(errs, fmt.Errorf("main.priority: %w", err))
	}
	if c.Main.WaitTimeout < 0 {
		errs = append(errs, errors.New("main.wait_timeout must not be negative"))
	}
	if c.Shutdown.Delay < 0 {
		errs = append(errs, errors.New("shutdown.delay must not be negative"))
	}
	switch c.HelperFailure {
	case FailAbort, FailSkip:
	default:
		errs = append(errs, fmt.Errorf("helper_failure %q must be %q or %q", c.HelperFailure, FailAbort, FailSkip))
	}
	if err := env.Validate(c.Env); err != nil {
		errs = append(errs, fmt.Errorf("env: %w", err))
	}
	if err := env.Validate(c.Main.Env); err != nil {
		errs = append(errs, fmt.Errorf("main.env: %w", err))
	}
	if _, err := logger.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// ResolveWorkDir returns WorkDir as an absolute path, defaulting to the
// current working directory.
func (c *Config) ResolveWorkDir() (string, error) {
	if c.WorkDir == "" {
		return os.Getwd()
	}
	return filepath.Abs(c.WorkDir)
}

// ExecutableDir is the directory of the running binary; the follow-up
// companion is resolved against it.
func ExecutableDir() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", err
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}
	return filepath.Dir(exe), nil
}
