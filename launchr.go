// Package launchr exposes the launch sequence for embedding in other programs.
package launchr

import (
	"context"
	"io"
	"net"

	"github.com/prometheus/client_golang/prometheus"

	cfg "github.com/loykin/launchr/internal/config"
	"github.com/loykin/launchr/internal/container"
	"github.com/loykin/launchr/internal/history"
	"github.com/loykin/launchr/internal/history/factory"
	"github.com/loykin/launchr/internal/metrics"
	"github.com/loykin/launchr/internal/notify"
	"github.com/loykin/launchr/internal/orchestrator"
	"github.com/loykin/launchr/internal/process"
)

// Re-export core types for external consumers.
// These are aliases so conversions are zero-cost.

type Config = cfg.Config

type Container = container.Container

type Repo = container.Repo

type Settings = orchestrator.Settings

type MainTarget = orchestrator.MainTarget

type FollowUpTarget = orchestrator.FollowUpTarget

type ShutdownPlan = orchestrator.ShutdownPlan

type Report = orchestrator.Report

type Option = orchestrator.Option

type Terminator = orchestrator.Terminator

type Notifier = notify.Notifier

type HistorySink = history.Sink

type HistoryEvent = history.Event

type Priority = process.Priority

const (
	PriorityNormal = process.PriorityNormal
	PriorityHigh   = process.PriorityHigh
)

var (
	WithNotifier = orchestrator.WithNotifier
	WithOutput   = orchestrator.WithOutput
	WithLogger   = orchestrator.WithLogger
	WithHistory  = orchestrator.WithHistory
	WithRunID    = orchestrator.WithRunID
)

func LoadConfig(path string) (*Config, error) { return cfg.Load(path) }

// ConsoleNotifier writes each message as one line to w.
func ConsoleNotifier(w io.Writer) Notifier { return &notify.Console{W: w} }

// NewContainer joins script names into a record.
func NewContainer(scripts ...string) Container { return container.New(scripts...) }

// NewRepo opens the record store in dir, reporting failures through n.
func NewRepo(dir string, n Notifier) *Repo { return container.NewRepo(dir, n) }

// Run executes one launch against the real OS. term may be nil to skip the
// final close.
func Run(ctx context.Context, s Settings, term Terminator, opts ...Option) (Report, error) {
	return orchestrator.New(s, orchestrator.OSProcesses{}, term, opts...).Run(ctx)
}

// NewHistorySink opens the history store named by dsn; empty discards events.
func NewHistorySink(dsn string) (HistorySink, error) { return factory.NewSinkFromDSN(dsn) }

// Metrics helpers (public facade)

func RegisterMetrics(r prometheus.Registerer) error { return metrics.Register(r) }
func RegisterMetricsDefault() error                 { return metrics.Register(prometheus.DefaultRegisterer) }

// ServeMetrics exposes /metrics from g on addr until ctx is done.
func ServeMetrics(ctx context.Context, addr string, g prometheus.Gatherer) (net.Addr, error) {
	return metrics.Serve(ctx, addr, g)
}
