package pipeline

import (
	"context"
	"log/slog"
	"slices"

	"git.home.luguber.info/inful/pipelib/internal/ci"
	"git.home.luguber.info/inful/pipelib/internal/foundation/errors"
	"git.home.luguber.info/inful/pipelib/internal/logfields"
	"git.home.luguber.info/inful/pipelib/internal/observability"
	"git.home.luguber.info/inful/pipelib/internal/publish"
	"git.home.luguber.info/inful/pipelib/internal/retry"
	"git.home.luguber.info/inful/pipelib/internal/stage"
)

// DeclarePublishStage declares the publish stage. It only runs after a
// successful build.
func (p *Pipeline) DeclarePublishStage(args PublishArgs) error {
	if args.Name == "" {
		args.Name = "Publish"
	}
	f := &publish.Formatter{PathTemplate: args.PathTemplate, FileTemplate: args.FileTemplate}
	err := p.declare(&stage.Stage{
		Name:            args.Name,
		Kind:            stage.KindPublish,
		Timeout:         timeoutOr(args.Timeout, DefaultPublishTimeout),
		ResultThreshold: args.Threshold,
		ShouldExecute:   p.succeeded(stage.KindBuild),
		Body: func(ctx context.Context) error {
			return p.publish(ctx, args, f)
		},
	}, args.validate())
	if err == nil {
		p.formatter = f
	}
	return err
}

func (p *Pipeline) publish(ctx context.Context, args PublishArgs, f *publish.Formatter) error {
	pc := p.ctx
	files, err := p.opts.Flavor.Publish(ctx, p.env("", args.Patterns))
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return errors.ArtifactError("no artifacts to publish").
			WithContext("patterns", args.Patterns).
			UserAction().
			Build()
	}

	macros := publish.StandardMacros(publish.State{
		Repository:  args.Repository,
		Package:     pc.Package.Name,
		Version:     pc.Base.String(),
		BranchTag:   pc.Match.Tag,
		BuildNumber: pc.Params.BuildNumber,
		Timestamp:   p.deps.Clock.Now(),
	})
	spec := f.UploadSpec(files, pc.Package.Version, macros)
	if err := p.deps.Artifacts.Upload(ctx, spec); err != nil {
		return err
	}
	if args.Poll.Initial > 0 {
		if err := p.awaitVisible(ctx, args.Poll, f.TargetPath(macros), spec); err != nil {
			return err
		}
	}

	pc.Published = spec.Files
	pc.PublishMacros = macros
	observability.InfoContext(ctx, "Published artifacts",
		slog.Int("files", len(spec.Files)),
		logfields.Target(f.TargetPath(macros)),
		logfields.Version(macros["publishversion"]))
	return nil
}

// awaitVisible polls the repository until every uploaded target is listed.
func (p *Pipeline) awaitVisible(ctx context.Context, policy retry.Policy, prefix string, spec ci.UploadSpec) error {
	return retry.Poll(ctx, policy, func(ctx context.Context) (bool, error) {
		found, err := p.deps.Artifacts.Search(ctx, prefix)
		if err != nil {
			return false, err
		}
		for _, f := range spec.Files {
			if !slices.Contains(found, f.Target) {
				return false, nil
			}
		}
		return true, nil
	}, func(int) { p.deps.Metrics.IncPollAttempt("publish") })
}

// succeeded returns a predicate that holds when the first stage of kind has
// succeeded, or when no such stage is declared.
func (p *Pipeline) succeeded(kind stage.Kind) stage.Predicate {
	return func() bool {
		s, ok := p.registry.ByKind(kind)
		return !ok || s.Status() == stage.StatusSuccess
	}
}
