package commands

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/pipelib/internal/api"
	"git.home.luguber.info/inful/pipelib/internal/branch"
	"git.home.luguber.info/inful/pipelib/internal/ci"
	"git.home.luguber.info/inful/pipelib/internal/config"
	"git.home.luguber.info/inful/pipelib/internal/eventstore"
	"git.home.luguber.info/inful/pipelib/internal/flavor"
	"git.home.luguber.info/inful/pipelib/internal/foundation/errors"
	"git.home.luguber.info/inful/pipelib/internal/git"
	"git.home.luguber.info/inful/pipelib/internal/input"
	"git.home.luguber.info/inful/pipelib/internal/logfields"
	"git.home.luguber.info/inful/pipelib/internal/metrics"
	"git.home.luguber.info/inful/pipelib/internal/notify"
	"git.home.luguber.info/inful/pipelib/internal/pipeline"
	"git.home.luguber.info/inful/pipelib/internal/shell"
	"git.home.luguber.info/inful/pipelib/internal/storage"
	"git.home.luguber.info/inful/pipelib/internal/workspace"
)

// environment holds the collaborators built from a pipeline file.
type environment struct {
	cfg       *config.Config
	workspace *workspace.Dir
	scm       *git.Repository
	flavor    flavor.Flavor
	resolver  *branch.Resolver
	artifacts *storage.FSRepository
	events    *eventstore.SQLiteStore
	registry  *prometheus.Registry
	metrics   *metrics.PrometheusRecorder
	notifier  ci.Notifier
	input     ci.HumanInputChannel
	board     *api.ApprovalBoard

	closers []func()
}

// shared are the parts that outlive a pipeline file reload in serve mode.
type shared struct {
	board    *api.ApprovalBoard
	registry *prometheus.Registry
	metrics  *metrics.PrometheusRecorder
}

func newShared() *shared {
	reg := prometheus.NewRegistry()
	return &shared{board: api.NewApprovalBoard(), registry: reg, metrics: metrics.NewPrometheusRecorder(reg)}
}

func newEnvironment(ctx context.Context, cfg *config.Config, sh *shared) (_ *environment, err error) {
	if sh == nil {
		sh = newShared()
	}
	env := &environment{cfg: cfg}
	defer func() {
		if err != nil {
			env.Close()
		}
	}()

	if env.workspace, err = workspace.Open(cfg.Project.Workspace); err != nil {
		return nil, err
	}
	auth, err := cfg.Git.Method()
	if err != nil {
		return nil, err
	}
	if env.scm, err = git.Open(env.workspace.Root(), git.WithAuth(auth)); err != nil {
		return nil, err
	}
	if env.flavor, err = flavor.Lookup(cfg.Project.Flavor, cfg.Project.VersionFile); err != nil {
		return nil, err
	}
	if env.resolver, err = cfg.Resolver(); err != nil {
		return nil, err
	}
	if env.artifacts, err = storage.NewFSRepository(cfg.Publish.Root, env.workspace); err != nil {
		return nil, err
	}

	if !cfg.Events.Disabled {
		if err := os.MkdirAll(filepath.Dir(cfg.Events.Path), 0o750); err != nil {
			return nil, errors.FileSystemError("failed to create event store directory").
				WithCause(err).WithContext("path", cfg.Events.Path).Build()
		}
		if env.events, err = eventstore.NewSQLiteStore(cfg.Events.Path); err != nil {
			return nil, err
		}
		store := env.events
		env.closers = append(env.closers, func() { _ = store.Close() })
	}

	env.registry = sh.registry
	env.metrics = sh.metrics

	notifiers := notify.Multi{notify.Log{}}
	var conn *nats.Conn
	if cfg.Notify.NATSURL != "" {
		n, c, err := notify.NewNATS(ctx, notify.NATSConfig{
			URL:     cfg.Notify.NATSURL,
			Subject: cfg.Notify.Subject,
			Stream:  cfg.Notify.Stream,
		})
		if err != nil {
			return nil, err
		}
		conn = c
		env.closers = append(env.closers, c.Close)
		notifiers = append(notifiers, n)
	}
	env.notifier = notify.WithRecipients{Next: notifiers, Recipients: cfg.Notify.Recipients}

	switch cfg.Approval.Channel {
	case config.ChannelNATS:
		if conn == nil || cfg.Approval.NATSURL != cfg.Notify.NATSURL {
			c, err := nats.Connect(cfg.Approval.NATSURL, nats.Name("pipelib-approvals"))
			if err != nil {
				return nil, errors.WrapError(err, errors.CategoryApproval, "failed to connect to NATS").
					WithContext("url", cfg.Approval.NATSURL).Build()
			}
			conn = c
			env.closers = append(env.closers, c.Close)
		}
		env.input = input.NewNATS(conn, cfg.Approval.Subject)
	case config.ChannelHTTP:
		env.board = sh.board
		env.input = env.board
	}

	slog.Debug("Environment ready",
		logfields.Path(env.workspace.Root()),
		logfields.Flavor(env.flavor.Name),
		slog.String("approval_channel", cfg.Approval.Channel))
	return env, nil
}

// pipeline creates a run with every configured stage declared.
func (e *environment) pipeline(params pipeline.Params) (*pipeline.Pipeline, error) {
	p := pipeline.New(pipeline.Options{
		Flavor:          e.flavor,
		Resolver:        e.resolver,
		Package:         e.cfg.Project.Name,
		Recipients:      e.cfg.Notify.Recipients,
		CheckoutTimeout: e.cfg.Stages.Checkout,
	}, e.deps(), params)
	if err := e.cfg.Declare(p); err != nil {
		return nil, err
	}
	return p, nil
}

func (e *environment) deps() pipeline.Deps {
	d := pipeline.Deps{
		Shell:     shell.New(e.workspace.Root()),
		Files:     e.workspace,
		SCM:       e.scm,
		Artifacts: e.artifacts,
		Input:     e.input,
		Notifier:  e.notifier,
		Metrics:   e.metrics,
	}
	if e.events != nil {
		d.Events = e.events
	}
	return d
}

// server builds the HTTP surface: approvals when that channel is active,
// run history and metrics.
func (e *environment) server(addr string) *api.Server {
	var history api.HistorySource
	if e.events != nil {
		history = api.StoreHistory{Store: e.events}
	}
	return e.serverWith(addr, history)
}

func (e *environment) serverWith(addr string, history api.HistorySource) *api.Server {
	opts := []api.Option{
		api.WithMetrics(metrics.HTTPHandler(e.registry)),
		api.WithApproverTokens(e.cfg.Approval.Tokens),
	}
	if e.board != nil {
		opts = append(opts, api.WithApprovals(e.board))
	}
	if history != nil {
		opts = append(opts, api.WithHistory(history))
	}
	return api.NewServer(addr, opts...)
}

// Close releases connections in reverse order of creation.
func (e *environment) Close() {
	for i := len(e.closers) - 1; i >= 0; i-- {
		e.closers[i]()
	}
	e.closers = nil
}
