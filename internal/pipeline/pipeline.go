package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"git.home.luguber.info/inful/pipelib/internal/approval"
	"git.home.luguber.info/inful/pipelib/internal/branch"
	"git.home.luguber.info/inful/pipelib/internal/ci"
	"git.home.luguber.info/inful/pipelib/internal/eventstore"
	"git.home.luguber.info/inful/pipelib/internal/flavor"
	"git.home.luguber.info/inful/pipelib/internal/logfields"
	"git.home.luguber.info/inful/pipelib/internal/metrics"
	"git.home.luguber.info/inful/pipelib/internal/observability"
	"git.home.luguber.info/inful/pipelib/internal/publish"
	"git.home.luguber.info/inful/pipelib/internal/stage"
)

// Deps are the collaborators a run talks to. Events, Metrics, Notifier and
// Input may be nil.
type Deps struct {
	Shell     ci.ShellRunner
	Files     ci.FileStore
	SCM       ci.SourceControl
	Artifacts ci.ArtifactRepository
	Input     ci.HumanInputChannel
	Notifier  ci.Notifier
	Events    eventstore.Store
	Metrics   metrics.Recorder
	Clock     clockwork.Clock
}

// Options configure a Pipeline.
type Options struct {
	Flavor   flavor.Flavor
	Resolver *branch.Resolver
	// Package overrides the name read from the flavor's manifest.
	Package string
	// Recipients receive the run summary.
	Recipients []string
	// CheckoutTimeout bounds the implicit checkout stage.
	CheckoutTimeout time.Duration
}

// Pipeline is one configured run.
type Pipeline struct {
	opts     Options
	deps     Deps
	ctx      *Context
	registry *stage.Registry
	recorder *eventstore.Recorder
	// formatter is shared by publish and the release promotion.
	formatter *publish.Formatter

	negotiator *approval.Negotiator
}

// New creates a pipeline and declares its checkout stage.
func New(opts Options, deps Deps, params Params) *Pipeline {
	if deps.Clock == nil {
		deps.Clock = clockwork.NewRealClock()
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.NoopRecorder{}
	}
	if opts.Resolver == nil {
		opts.Resolver, _ = branch.NewDefaultResolver()
	}
	runID := uuid.NewString()
	p := &Pipeline{
		opts:     opts,
		deps:     deps,
		ctx:      &Context{RunID: runID, Params: params},
		registry: stage.NewRegistry(),
		recorder: eventstore.NewRecorder(deps.Events, runID, ""),
	}
	p.negotiator = approval.NewNegotiator(deps.Input, deps.Notifier)
	p.negotiator.Clock = deps.Clock
	p.negotiator.Observer = metrics.NegotiationObserver{Recorder: deps.Metrics}

	// The checkout stage is the first declaration and can never collide.
	_ = p.registry.Declare(p.checkoutStage())
	return p
}

// Context returns the run state.
func (p *Pipeline) Context() *Context { return p.ctx }

// Negotiator exposes the version negotiator so callers can tune its timings.
func (p *Pipeline) Negotiator() *approval.Negotiator { return p.negotiator }

// Stages returns the declared stages in execution order.
func (p *Pipeline) Stages() []*stage.Stage { return p.registry.ExecutionOrder() }

// Run executes every declared stage and returns the pipeline result.
func (p *Pipeline) Run(ctx context.Context) (stage.Result, error) {
	ctx = observability.WithRunID(ctx, p.ctx.RunID)
	p.ctx.Started = p.deps.Clock.Now()

	exec := stage.NewExecutor()
	exec.Observer = stage.MultiObserver{p.recorder, metrics.StageObserver{Recorder: p.deps.Metrics}}
	exec.SkipMarker = func() bool { return p.ctx.CISkip }

	result, err := (&stage.Runner{Registry: p.registry, Executor: exec}).Run(ctx)
	elapsed := p.deps.Clock.Since(p.ctx.Started)

	p.finish(ctx, result, err, elapsed)
	return result, err
}

func (p *Pipeline) finish(ctx context.Context, result stage.Result, runErr error, elapsed time.Duration) {
	done := eventstore.RunCompleted{
		Result:     result.String(),
		DurationMS: eventstore.Elapsed(elapsed),
		CISkipped:  p.ctx.CISkip,
	}
	if p.ctx.Decision != nil {
		done.Version = p.ctx.Decision.Version()
	}
	if runErr != nil {
		done.Error = runErr.Error()
		if se, ok := stage.AsStageError(runErr); ok {
			done.FailedStage = se.Stage
		}
	}
	// Recording and pruning outlive a canceled run.
	bg := context.WithoutCancel(ctx)
	p.recorder.Record(bg, eventstore.TypeRunCompleted, done)

	p.deps.Metrics.IncPipelineResult(result.String())
	p.deps.Metrics.ObservePipelineDuration(elapsed)

	attrs := []slog.Attr{logfields.Result(result.String()), logfields.Elapsed(elapsed), logfields.Branch(p.ctx.Branch)}
	if runErr != nil {
		attrs = append(attrs, logfields.Error(runErr))
	}
	observability.InfoContext(ctx, "Pipeline finished", attrs...)

	p.prune(bg)
	p.notifySummary(bg, result, runErr)
}

// prune keeps the configured number of runs for the branch.
func (p *Pipeline) prune(ctx context.Context) {
	keep := p.ctx.Policy().BuildHistory
	if p.deps.Events == nil || keep <= 0 || p.ctx.Branch == "" {
		return
	}
	n, err := p.deps.Events.PruneBranch(ctx, p.ctx.Branch, keep)
	if err != nil {
		observability.WarnContext(ctx, "Failed to prune run history", logfields.Error(err))
		return
	}
	if n > 0 {
		observability.InfoContext(ctx, "Pruned run history", slog.Int("runs", n), slog.Int("keep", keep))
	}
}

func (p *Pipeline) notifySummary(ctx context.Context, result stage.Result, runErr error) {
	if p.deps.Notifier == nil || len(p.opts.Recipients) == 0 {
		return
	}
	pkg := p.ctx.Package.Name
	if pkg == "" {
		pkg = "pipeline"
	}
	var body strings.Builder
	fmt.Fprintf(&body, "# %s on %s: %s\n\n", pkg, p.ctx.Branch, result)
	fmt.Fprintf(&body, "| Stage | Status |\n|---|---|\n")
	for _, s := range p.registry.ExecutionOrder() {
		fmt.Fprintf(&body, "| %s | %s |\n", s.Name, s.Status())
	}
	if p.ctx.Decision != nil {
		fmt.Fprintf(&body, "\nReleased `%s`, approved by %s.\n", p.ctx.Decision.Version(), p.ctx.Decision.Approver)
	}
	if runErr != nil {
		fmt.Fprintf(&body, "\nError: %s\n", runErr)
	}
	msg := ci.Message{
		Subject:    fmt.Sprintf("[%s] %s %s", pkg, p.ctx.Branch, result),
		Body:       body.String(),
		Recipients: p.opts.Recipients,
	}
	if err := p.deps.Notifier.Notify(ctx, msg); err != nil {
		observability.WarnContext(ctx, "Run summary notification failed", logfields.Error(err))
	}
}

// declare registers s. Duplicate singleton kinds are returned; validation
// failures are deferred onto the stage so they surface when it is reached.
func (p *Pipeline) declare(s *stage.Stage, validationErr error) error {
	if validationErr != nil {
		s.SetupErr = validationErr
	}
	return p.registry.Declare(s)
}
