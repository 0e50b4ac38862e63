package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"git.home.luguber.info/inful/pipelib/internal/approval"
	"git.home.luguber.info/inful/pipelib/internal/ci"
	"git.home.luguber.info/inful/pipelib/internal/eventstore"
	"git.home.luguber.info/inful/pipelib/internal/foundation/errors"
	"git.home.luguber.info/inful/pipelib/internal/logfields"
	"git.home.luguber.info/inful/pipelib/internal/observability"
	"git.home.luguber.info/inful/pipelib/internal/publish"
	"git.home.luguber.info/inful/pipelib/internal/stage"
	"git.home.luguber.info/inful/pipelib/internal/versioning"
)

// DeclareReleaseStage declares the release stage. It runs only when the
// operator asked for a release on a branch that permits it, and never after a
// failed publish.
func (p *Pipeline) DeclareReleaseStage(args ReleaseArgs) error {
	if args.Name == "" {
		args.Name = "Release"
	}
	timeout := timeoutOr(args.Timeout, DefaultReleaseTimeout)
	return p.declare(&stage.Stage{
		Name:            args.Name,
		Kind:            stage.KindRelease,
		Timeout:         timeout,
		ResultThreshold: args.Threshold,
		ShouldExecute: func() bool {
			if s, ok := p.registry.ByKind(stage.KindPublish); ok && s.Status() == stage.StatusFail {
				return false
			}
			return p.ctx.ReleasePermitted()
		},
		Body: func(ctx context.Context) error {
			return p.release(ctx, args, timeout)
		},
	}, args.validate())
}

func (p *Pipeline) release(ctx context.Context, args ReleaseArgs, timeout time.Duration) error {
	pc := p.ctx
	level := pc.Policy().Level
	if args.Level != "" {
		level, _ = versioning.ParseLevel(args.Level)
	}

	d, err := p.negotiator.Negotiate(ctx, approval.Request{
		Package:      pc.Package.Name,
		Branch:       pc.Branch,
		Base:         pc.Base,
		Level:        level,
		Prerelease:   pc.Prerelease(),
		AutoDeploy:   pc.Policy().AutoDeploy,
		Approvers:    args.Approvers,
		StageTimeout: timeout,
	})
	if err != nil {
		return err
	}
	pc.Decision = &d
	p.recorder.Record(ctx, eventstore.TypeVersionNegotiated, eventstore.VersionNegotiated{
		Version:    d.Version(),
		Approver:   d.Approver,
		Outcome:    string(d.Outcome),
		Candidates: d.Candidates.Versions(),
	})

	if err := p.tag(ctx, d.Version()); err != nil {
		return err
	}
	if err := p.promote(ctx, args, d.Version()); err != nil {
		return err
	}
	if pc.FormalRelease() {
		if err := p.bumpDevelopmentVersion(ctx, d.Version()); err != nil {
			return err
		}
	}
	p.announceRelease(ctx, d)
	return nil
}

func (p *Pipeline) tag(ctx context.Context, version string) error {
	tag := "v" + version
	exists, err := p.deps.SCM.TagExists(ctx, tag)
	if err != nil {
		return err
	}
	if exists {
		return errors.SCMError("release tag already exists").
			WithContext("tag", tag).
			UserAction().
			Build()
	}
	if err := p.deps.SCM.CreateTag(ctx, tag, fmt.Sprintf("Release %s %s", p.ctx.Package.Name, version)); err != nil {
		return err
	}
	if err := p.deps.SCM.Push(ctx); err != nil {
		return err
	}
	p.ctx.ReleaseTag = tag
	return nil
}

// promote copies every artifact published in this run to its release target.
func (p *Pipeline) promote(ctx context.Context, args ReleaseArgs, version string) error {
	pc := p.ctx
	if len(pc.Published) == 0 {
		observability.InfoContext(ctx, "Nothing published in this run; skipping promotion")
		return nil
	}
	repo := args.Repository
	if repo == "" && pc.PublishMacros != nil {
		repo = pc.PublishMacros["repository"]
	}
	f := p.formatter
	if f == nil {
		f = publish.NewFormatter()
	}
	macros := publish.StandardMacros(publish.State{
		Repository:  repo,
		Package:     pc.Package.Name,
		Version:     version,
		Prerelease:  pc.Prerelease(),
		BranchTag:   pc.Match.Tag,
		BuildNumber: pc.Params.BuildNumber,
		Timestamp:   p.deps.Clock.Now(),
		Release:     true,
	})
	for _, file := range pc.Published {
		target := f.Target(file.Pattern, pc.Package.Version, macros)
		if err := p.deps.Artifacts.Promote(ctx, file.Target, target); err != nil {
			return err
		}
		pc.ReleasedTargets = append(pc.ReleasedTargets, target)
	}
	observability.InfoContext(ctx, "Promoted artifacts", slog.Int("files", len(pc.ReleasedTargets)), logfields.Version(version))
	return nil
}

// bumpDevelopmentVersion moves the manifest to the next patch after a formal
// release and pushes the change.
func (p *Pipeline) bumpDevelopmentVersion(ctx context.Context, released string) error {
	base, err := versioning.ParseBase(released)
	if err != nil {
		return err
	}
	next := base.Bump(versioning.LevelPatch).String()
	path, err := p.opts.Flavor.Version.Bump(p.deps.Files, next)
	if err != nil {
		return err
	}
	if err := p.deps.SCM.Commit(ctx, fmt.Sprintf("Prepare next development version %s", next), path); err != nil {
		return err
	}
	if err := p.deps.SCM.Push(ctx); err != nil {
		return err
	}
	p.ctx.NextDevVersion = next
	observability.InfoContext(ctx, "Bumped development version", logfields.Version(next), logfields.Path(path))
	return nil
}

func (p *Pipeline) announceRelease(ctx context.Context, d approval.Decision) {
	if p.deps.Notifier == nil || len(p.opts.Recipients) == 0 {
		return
	}
	msg := ci.Message{
		Subject: fmt.Sprintf("[%s] released %s", p.ctx.Package.Name, d.Version()),
		Body: fmt.Sprintf("# %s %s released\n\nBranch `%s`, tag `%s`, approved by %s (%s).\n",
			p.ctx.Package.Name, d.Version(), p.ctx.Branch, p.ctx.ReleaseTag, d.Approver, d.Outcome),
		Recipients: p.opts.Recipients,
	}
	if err := p.deps.Notifier.Notify(ctx, msg); err != nil {
		observability.WarnContext(ctx, "Release notification failed", logfields.Error(err))
	}
}
