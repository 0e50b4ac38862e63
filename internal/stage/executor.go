package stage

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"time"

	"git.home.luguber.info/inful/pipelib/internal/logfields"
	"git.home.luguber.info/inful/pipelib/internal/observability"
)

// Skip reasons recorded on SKIPPED stages.
const (
	SkipReasonCISkip    = "ci_skip"
	SkipReasonThreshold = "result_threshold"
	SkipReasonPredicate = "should_execute"
)

// Observer receives callbacks around stage execution.
type Observer interface {
	OnStageStart(ctx context.Context, s *Stage)
	OnStageComplete(ctx context.Context, s *Stage, result Result)
}

// NoopObserver is a no-op implementation.
type NoopObserver struct{}

func (NoopObserver) OnStageStart(context.Context, *Stage)            {}
func (NoopObserver) OnStageComplete(context.Context, *Stage, Result) {}

// MultiObserver fans callbacks out to each observer in order.
type MultiObserver []Observer

func (m MultiObserver) OnStageStart(ctx context.Context, s *Stage) {
	for _, o := range m {
		o.OnStageStart(ctx, s)
	}
}

func (m MultiObserver) OnStageComplete(ctx context.Context, s *Stage, result Result) {
	for _, o := range m {
		o.OnStageComplete(ctx, s, result)
	}
}

// Outcome is the normalized result of running one stage.
type Outcome struct {
	Status Status
	Err    error
	// Result is the pipeline result after merging this stage.
	Result Result
	// Abort stops the run; remaining stages stay NOT_RUN.
	Abort bool
}

// Executor runs single stages.
type Executor struct {
	Observer Observer
	// SkipMarker reports whether a CI skip marker was detected earlier in the run.
	SkipMarker func() bool
}

// NewExecutor creates an executor with a no-op observer.
func NewExecutor() *Executor {
	return &Executor{Observer: NoopObserver{}}
}

// Run evaluates the skip conditions for s, runs its body under the stage timeout
// and records the outcome on s exactly once. The returned Outcome carries soFar
// merged with the stage's contribution; it is never better than soFar.
func (e *Executor) Run(ctx context.Context, s *Stage, soFar Result) Outcome {
	ctx = observability.WithStage(ctx, s.Name)
	obs := e.observer()

	if reason, skip := e.skipReason(s, soFar); skip {
		s.finish(StatusSkipped, nil, reason, 0)
		observability.InfoContext(ctx, "Stage skipped", slog.String("reason", reason), logfields.Result(soFar.String()))
		obs.OnStageComplete(ctx, s, soFar)
		return Outcome{Status: StatusSkipped, Result: soFar}
	}

	obs.OnStageStart(ctx, s)
	start := time.Now()
	status, err, abort := e.execute(ctx, s)
	dur := time.Since(start)

	result := Worse(soFar, status.result())
	if abort {
		result = Worse(result, ResultNotBuilt)
	}
	s.finish(status, err, "", dur)

	attrs := []slog.Attr{logfields.Status(string(status)), logfields.Elapsed(dur), logfields.Result(result.String())}
	if err != nil {
		attrs = append(attrs, logfields.Error(err))
		observability.ErrorContext(ctx, "Stage finished", attrs...)
	} else {
		observability.InfoContext(ctx, "Stage finished", attrs...)
	}
	obs.OnStageComplete(ctx, s, result)

	return Outcome{Status: status, Err: err, Result: result, Abort: abort}
}

func (e *Executor) observer() Observer {
	if e.Observer == nil {
		return NoopObserver{}
	}
	return e.Observer
}

// skipReason evaluates the skip conditions in order: CI skip marker, result
// threshold, then the stage predicate. A deferred setup error only surfaces for a
// stage that passes all three.
func (e *Executor) skipReason(s *Stage, soFar Result) (string, bool) {
	if e.SkipMarker != nil && e.SkipMarker() {
		return SkipReasonCISkip, true
	}
	if soFar.WorseThan(s.ResultThreshold) {
		return SkipReasonThreshold, true
	}
	if s.ShouldExecute != nil && !s.ShouldExecute() {
		return SkipReasonPredicate, true
	}
	return "", false
}

func (e *Executor) execute(ctx context.Context, s *Stage) (Status, error, bool) {
	if s.SetupErr != nil {
		return StatusFail, NewStageError(s.Kind, s.Name, s.SetupErr), false
	}

	stageCtx, cancel := ctx, context.CancelFunc(func() {})
	if s.Timeout > 0 {
		stageCtx, cancel = context.WithTimeout(ctx, s.Timeout)
	}
	defer cancel()

	err := runBody(stageCtx, s.Body)
	return classify(ctx, stageCtx, s, err)
}

// runBody converts a panicking body into an error so the stage is recorded as failed.
func runBody(ctx context.Context, body Body) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("stage body panicked: %v", r)
		}
	}()
	return body(ctx)
}

// classify maps the body error onto a status. Operator aborts and cancellation of
// the parent context stop the run; a deadline on the stage context is a timeout
// failure even when the body reports some other error.
func classify(parent, stageCtx context.Context, s *Stage, err error) (Status, error, bool) {
	if err == nil {
		return StatusSuccess, nil, false
	}
	if IsAbort(err) || parent.Err() != nil {
		return StatusFail, wrap(s, err), true
	}
	if stderrors.Is(stageCtx.Err(), context.DeadlineExceeded) {
		return StatusFail, wrap(s, fmt.Errorf("%w after %s: %w", ErrStageTimeout, s.Timeout, err)), false
	}
	if IsNonFatal(err) {
		return StatusUnstable, wrap(s, err), false
	}
	return StatusFail, wrap(s, err), false
}

func wrap(s *Stage, err error) error {
	if _, ok := AsStageError(err); ok {
		return err
	}
	return NewStageError(s.Kind, s.Name, err)
}
