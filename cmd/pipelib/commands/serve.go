package commands

import (
	"context"
	"log/slog"
	"os/signal"
	"sync"
	"syscall"

	"git.home.luguber.info/inful/pipelib/internal/api"
	"git.home.luguber.info/inful/pipelib/internal/config"
	"git.home.luguber.info/inful/pipelib/internal/eventstore"
	"git.home.luguber.info/inful/pipelib/internal/logfields"
	"git.home.luguber.info/inful/pipelib/internal/pipeline"
	"git.home.luguber.info/inful/pipelib/internal/scheduler"
)

// ServeCmd implements the 'serve' command.
type ServeCmd struct {
	Addr       string `help:"HTTP listen address; approval.addr when empty"`
	Release    bool   `help:"Scheduled runs perform a release"`
	Prerelease string `help:"Prerelease label for scheduled runs"`
	NoWatch    bool   `name:"no-watch" help:"Do not reload the pipeline file on change"`
}

func (c *ServeCmd) Run(_ *Global, root *CLI) error {
	cfg, err := root.load()
	if err != nil {
		return err
	}
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	sched, err := scheduler.NewScheduler(nil)
	if err != nil {
		return err
	}
	svc := &service{
		path:   root.Config,
		parent: ctx,
		sh:     newShared(),
		sched:  sched,
		params: pipeline.Params{PerformRelease: c.Release, Prerelease: c.Prerelease},
	}
	if err := svc.apply(ctx, cfg); err != nil {
		return err
	}
	defer svc.close()

	sched.Start()
	defer func() {
		if err := sched.Stop(); err != nil {
			slog.Warn("Scheduler shutdown failed", logfields.Error(err))
		}
	}()

	if !c.NoWatch {
		w, err := scheduler.NewConfigWatcher(root.Config, svc.reload)
		if err != nil {
			return err
		}
		if err := w.Start(ctx); err != nil {
			return err
		}
		defer func() { _ = w.Stop() }()
	}

	addr := c.Addr
	if addr == "" {
		addr = cfg.Approval.Addr
	}
	srv := svc.server(addr)
	go serve(srv)
	defer shutdown(srv)

	slog.Info("Serving", slog.String("addr", addr), logfields.Path(root.Config))
	<-ctx.Done()
	slog.Info("Shutdown signal received")
	return nil
}

// service owns the current environment and its schedule. Runs are serialized;
// a reload waits for the running pipeline before swapping environments.
type service struct {
	path   string
	parent context.Context
	sh     *shared
	sched  *scheduler.Scheduler
	params pipeline.Params

	runMu sync.Mutex
	mu    sync.Mutex
	env   *environment
	jobID string
	srv   *api.Server
}

func (s *service) reload(ctx context.Context) error {
	cfg, err := config.Load(s.path)
	if err != nil {
		return err
	}
	return s.apply(ctx, cfg)
}

func (s *service) apply(ctx context.Context, cfg *config.Config) error {
	env, err := newEnvironment(ctx, cfg, s.sh)
	if err != nil {
		return err
	}

	s.runMu.Lock()
	defer s.runMu.Unlock()
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.jobID != "" {
		if err := s.sched.Remove(s.jobID); err != nil {
			slog.Warn("Failed to remove previous schedule", logfields.Error(err))
		}
		s.jobID = ""
	}
	task := scheduler.RunFunc(s.parent, cfg.Schedule.Timeout, s.runOnce)
	switch {
	case cfg.Schedule.Cron != "":
		s.jobID, err = s.sched.ScheduleCron("pipeline", cfg.Schedule.Cron, task)
	case cfg.Schedule.Every > 0:
		s.jobID, err = s.sched.ScheduleEvery("pipeline", cfg.Schedule.Every, task)
	default:
		slog.Warn("No schedule configured; serving approvals and history only")
	}
	if err != nil {
		env.Close()
		return err
	}

	old := s.env
	s.env = env
	if old != nil {
		old.Close()
	}
	if s.srv != nil {
		s.srv.SetApproverTokens(cfg.Approval.Tokens)
	}
	return nil
}

func (s *service) runOnce(ctx context.Context) error {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	s.mu.Lock()
	env := s.env
	s.mu.Unlock()

	p, err := env.pipeline(s.params)
	if err != nil {
		return err
	}
	result, err := p.Run(ctx)
	slog.Info("Scheduled run finished", logfields.RunID(p.Context().RunID), logfields.Result(result.String()))
	return err
}

// History implements api.HistorySource against the current event store.
func (s *service) History(ctx context.Context, branch string, limit int) ([]*eventstore.RunSummary, error) {
	s.mu.Lock()
	env := s.env
	s.mu.Unlock()
	if env == nil || env.events == nil {
		return nil, nil
	}
	return eventstore.History(ctx, env.events, branch, limit)
}

// server builds the long-lived HTTP surface. Later reloads refresh its
// approver tokens.
func (s *service) server(addr string) *api.Server {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.srv = s.env.serverWith(addr, s)
	return s.srv
}

func (s *service) close() {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.env != nil {
		s.env.Close()
		s.env = nil
	}
}
