package pipeline

import (
	"context"
	"fmt"

	"git.home.luguber.info/inful/pipelib/internal/flavor"
	"git.home.luguber.info/inful/pipelib/internal/junit"
	"git.home.luguber.info/inful/pipelib/internal/logfields"
	"git.home.luguber.info/inful/pipelib/internal/observability"
	"git.home.luguber.info/inful/pipelib/internal/stage"
)

// DeclareBuildStage declares the build stage.
func (p *Pipeline) DeclareBuildStage(args BuildArgs) error {
	if args.Name == "" {
		args.Name = "Build"
	}
	return p.declare(&stage.Stage{
		Name:            args.Name,
		Kind:            stage.KindBuild,
		Timeout:         timeoutOr(args.Timeout, DefaultBuildTimeout),
		ResultThreshold: args.Threshold,
		Body: func(ctx context.Context) error {
			return p.opts.Flavor.Build(ctx, p.env(args.Command, nil))
		},
	}, validateTimeout(args.Name, args.Timeout))
}

// DeclareTestStage declares the test stage. A failing test command is not a
// stage failure by itself; the JUnit reports decide. Missing or unreadable
// reports fail the stage and recorded test failures make it UNSTABLE.
func (p *Pipeline) DeclareTestStage(args TestArgs) error {
	if args.Name == "" {
		args.Name = "Test"
	}
	reports := args.Reports
	if reports == "" {
		reports = p.opts.Flavor.Reports
	}
	return p.declare(&stage.Stage{
		Name:            args.Name,
		Kind:            stage.KindTest,
		Timeout:         timeoutOr(args.Timeout, DefaultTestTimeout),
		ResultThreshold: args.Threshold,
		Body: func(ctx context.Context) error {
			if err := p.opts.Flavor.Test(ctx, p.env(args.Command, nil)); err != nil {
				if ctx.Err() != nil {
					return err
				}
				observability.WarnContext(ctx, "Test command failed; checking reports", logfields.Error(err))
			}
			summary, err := junit.Collect(p.deps.Files, reports)
			if err != nil {
				return err
			}
			observability.InfoContext(ctx, "Test reports", logfields.Path(reports), logfields.Result(summary.String()))
			if !summary.Passed() {
				return stage.NonFatal(fmt.Errorf("tests failed: %s", summary))
			}
			return nil
		},
	}, validateTimeout(args.Name, args.Timeout))
}

// DeclareStage declares a custom shell stage.
func (p *Pipeline) DeclareStage(args StageArgs) error {
	s := &stage.Stage{
		Name:            args.Name,
		Kind:            stage.KindCustom,
		Timeout:         timeoutOr(args.Timeout, DefaultCustomTimeout),
		ResultThreshold: args.Threshold,
		Body: func(ctx context.Context) error {
			_, err := p.deps.Shell.Run(ctx, args.Command)
			return err
		},
	}
	if args.When != nil {
		s.ShouldExecute = func() bool { return args.When(p.ctx) }
	}
	return p.declare(s, args.validate())
}

func (p *Pipeline) env(command string, patterns []string) flavor.Env {
	return flavor.Env{Shell: p.deps.Shell, Files: p.deps.Files, Command: command, Patterns: patterns}
}
