package commands

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"git.home.luguber.info/inful/pipelib/internal/api"
	"git.home.luguber.info/inful/pipelib/internal/foundation/errors"
	"git.home.luguber.info/inful/pipelib/internal/logfields"
	"git.home.luguber.info/inful/pipelib/internal/pipeline"
	"git.home.luguber.info/inful/pipelib/internal/stage"
)

// RunCmd implements the 'run' command.
type RunCmd struct {
	Release     bool   `help:"Perform a release after publishing" env:"PERFORM_RELEASE"`
	Prerelease  string `help:"Prerelease label overriding the branch policy" env:"PRERELEASE"`
	BuildNumber string `name:"build-number" help:"CI build number" env:"BUILD_NUMBER"`
}

func (r *RunCmd) Run(_ *Global, root *CLI) error {
	cfg, err := root.load()
	if err != nil {
		return err
	}
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	env, err := newEnvironment(ctx, cfg, nil)
	if err != nil {
		return err
	}
	defer env.Close()

	if addr := sideServerAddr(env); addr != "" {
		srv := env.server(addr)
		go serve(srv)
		defer shutdown(srv)
	}

	p, err := env.pipeline(pipeline.Params{
		PerformRelease: r.Release,
		Prerelease:     r.Prerelease,
		BuildNumber:    r.BuildNumber,
	})
	if err != nil {
		return err
	}
	result, err := p.Run(ctx)
	printSummary(p, result)
	if err != nil {
		return err
	}
	if result.WorseThan(stage.ResultUnstable) {
		return errors.StageError("pipeline did not succeed").WithContext("result", result.String()).Build()
	}
	return nil
}

// sideServerAddr is where a single run listens: the approval address when
// approvals arrive over HTTP, else the metrics address if any.
func sideServerAddr(env *environment) string {
	if env.board != nil {
		return env.cfg.Approval.Addr
	}
	return env.cfg.Metrics.Addr
}

func serve(srv *api.Server) {
	slog.Info("HTTP server listening", slog.String("addr", srv.Addr))
	if err := srv.Start(); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
		slog.Error("HTTP server failed", logfields.Error(err))
	}
}

func shutdown(srv *api.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		slog.Warn("HTTP server shutdown failed", logfields.Error(err))
	}
}

func printSummary(p *pipeline.Pipeline, result stage.Result) {
	pc := p.Context()
	fmt.Printf("Run %s on %s (%s): %s\n", pc.RunID, pc.Branch, pc.Match.Tag, result)
	if pc.ReleaseTag != "" {
		fmt.Printf("Released %s\n", pc.ReleaseTag)
	}
	for _, f := range pc.Published {
		fmt.Printf("  published %s\n", f.Target)
	}
}
