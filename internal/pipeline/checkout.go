package pipeline

import (
	"context"
	"strings"

	"git.home.luguber.info/inful/pipelib/internal/eventstore"
	"git.home.luguber.info/inful/pipelib/internal/foundation/errors"
	"git.home.luguber.info/inful/pipelib/internal/logfields"
	"git.home.luguber.info/inful/pipelib/internal/observability"
	"git.home.luguber.info/inful/pipelib/internal/stage"
	"git.home.luguber.info/inful/pipelib/internal/versioning"
)

// CheckoutStage is the name of the implicit first stage.
const CheckoutStage = "Checkout"

// SkipMarkers in the last commit message skip every later stage.
var SkipMarkers = []string{"[ci skip]", "[skip ci]"}

// HasSkipMarker reports whether msg carries a CI skip marker.
func HasSkipMarker(msg string) bool {
	lower := strings.ToLower(msg)
	for _, m := range SkipMarkers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}

func (p *Pipeline) checkoutStage() *stage.Stage {
	return &stage.Stage{
		Name:            CheckoutStage,
		Kind:            stage.KindCheckout,
		Timeout:         timeoutOr(p.opts.CheckoutTimeout, DefaultCheckoutTimeout),
		ResultThreshold: stage.ResultSuccess,
		Body:            p.checkout,
	}
}

func (p *Pipeline) checkout(ctx context.Context) error {
	pc := p.ctx
	if pc.Params.Prerelease != "" {
		if err := versioning.ValidatePrerelease(pc.Params.Prerelease); err != nil {
			return err
		}
	}

	name, err := p.deps.SCM.CurrentBranch(ctx)
	if err != nil {
		return err
	}
	pc.Branch = name
	pc.Match = p.opts.Resolver.Resolve(name)
	p.recorder.SetBranch(name)

	msg, err := p.deps.SCM.LastCommitMessage(ctx)
	if err != nil {
		return err
	}
	pc.CISkip = HasSkipMarker(msg)

	pkg, err := p.opts.Flavor.Version.Read(p.deps.Files)
	if err != nil {
		return err
	}
	if p.opts.Package != "" {
		pkg.Name = p.opts.Package
	}
	if pkg.Name == "" {
		return errors.ConfigError("package name is not set and the manifest has none").
			WithContext("manifest", pkg.Manifest).Build()
	}
	base, err := versioning.ParseBase(pkg.Version)
	if err != nil {
		return err
	}
	pc.Package = pkg
	pc.Base = base

	observability.InfoContext(ctx, "Checked out",
		logfields.Branch(name),
		logfields.Policy(pc.Match.Policy.Pattern),
		logfields.Tag(pc.Match.Tag),
		logfields.Package(pkg.Name),
		logfields.Version(base.String()),
		logfields.Flavor(p.opts.Flavor.Name))
	if pc.CISkip {
		observability.InfoContext(ctx, "CI skip marker found in last commit; remaining stages are skipped")
	}

	p.recorder.Record(ctx, eventstore.TypeRunStarted, eventstore.RunStarted{
		Package:        pkg.Name,
		Flavor:         p.opts.Flavor.Name,
		Policy:         pc.Match.Policy.Pattern,
		PerformRelease: pc.Params.PerformRelease,
		BuildNumber:    pc.Params.BuildNumber,
	})

	if pc.Params.PerformRelease && !pc.Match.Policy.Releasable() {
		return errors.ConfigError("release requested on a branch that does not allow releases").
			WithContext("branch", name).
			WithContext("protected", pc.Match.Policy.Protected).
			UserAction().
			Build()
	}
	return nil
}
