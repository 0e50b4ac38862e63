// Package approval negotiates the version a release publishes: it computes the
// candidates, then auto-selects the default or waits for a human choice with a
// bounded timeout.
package approval

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"

	"git.home.luguber.info/inful/pipelib/internal/ci"
	"git.home.luguber.info/inful/pipelib/internal/foundation/errors"
	"git.home.luguber.info/inful/pipelib/internal/logfields"
	"git.home.luguber.info/inful/pipelib/internal/observability"
	"git.home.luguber.info/inful/pipelib/internal/versioning"
)

// Approver sentinels recorded when no human made the choice.
const (
	AutoApproved    = "AUTO_APPROVED"
	TimeoutApproved = "TIMEOUT_APPROVED"
)

// Defaults for Negotiator timing.
const (
	DefaultPreWait = 100 * time.Millisecond
	DefaultMargin  = time.Minute
)

// State is a negotiation state.
type State string

const (
	StateComputing State = "COMPUTING_CANDIDATES"
	StateAwaiting  State = "AWAITING_DECISION"
	StateTimedOut  State = "TIMED_OUT"
	StateResolved  State = "RESOLVED"
	StateAborted   State = "ABORTED"
)

// Outcome labels how the version was chosen.
type Outcome string

const (
	OutcomeAutoDeploy Outcome = "auto_deploy"
	OutcomeApproved   Outcome = "approved"
	OutcomeTimeout    Outcome = "timeout"
	OutcomeAborted    Outcome = "aborted"
)

// Request carries what a negotiation needs from the pipeline.
type Request struct {
	Package    string
	Branch     string
	Base       versioning.Base
	Level      versioning.Level
	Prerelease string
	AutoDeploy bool
	Approvers  []string
	// StageTimeout bounds the release stage. The human wait is StageTimeout minus Margin.
	StageTimeout time.Duration
}

// Decision is the resolved negotiation.
type Decision struct {
	Candidates versioning.CandidateSet
	Chosen     versioning.Candidate
	Approver   string
	Outcome    Outcome
	// Path lists the states visited in order.
	Path    []State
	Elapsed time.Duration
}

// Version returns the chosen version string.
func (d Decision) Version() string { return d.Chosen.Version }

// Observer is notified of every finished negotiation, including aborts.
type Observer interface {
	OnNegotiated(ctx context.Context, outcome Outcome, wait time.Duration)
}

// Negotiator drives one version negotiation per call.
type Negotiator struct {
	Input    ci.HumanInputChannel
	Notifier ci.Notifier
	Clock    clockwork.Clock
	Observer Observer
	// PreWait is slept inside the timed window before asking for input.
	PreWait time.Duration
	// Margin is subtracted from the stage timeout to get the human wait.
	Margin time.Duration
}

// NewNegotiator returns a negotiator with the real clock and default timings.
func NewNegotiator(input ci.HumanInputChannel, notifier ci.Notifier) *Negotiator {
	return &Negotiator{
		Input:    input,
		Notifier: notifier,
		Clock:    clockwork.NewRealClock(),
		PreWait:  DefaultPreWait,
		Margin:   DefaultMargin,
	}
}

// WaitTimeout is the human wait allowed for a stage timeout.
func (n *Negotiator) WaitTimeout(stageTimeout time.Duration) time.Duration {
	return stageTimeout - n.margin()
}

// Negotiate computes the candidates and selects one.
func (n *Negotiator) Negotiate(ctx context.Context, req Request) (Decision, error) {
	clock := n.clock()
	d := Decision{Path: []State{StateComputing}}
	d.Candidates = versioning.Candidates(req.Base, req.Level, req.Prerelease, clock.Now())

	if req.AutoDeploy {
		return n.resolve(ctx, d, d.Candidates.Default(), AutoApproved, OutcomeAutoDeploy), nil
	}
	if len(req.Approvers) == 0 {
		return d, &NoApproversError{Branch: req.Branch}
	}
	wait := n.WaitTimeout(req.StageTimeout)
	if wait <= 0 {
		return d, &TimeoutTooShortError{StageTimeout: req.StageTimeout, Margin: n.margin()}
	}

	d.Path = append(d.Path, StateAwaiting)
	n.announce(ctx, req, d.Candidates, wait)

	start := clock.Now()
	choice, err := n.await(ctx, req, d.Candidates, wait)
	d.Elapsed = clock.Since(start)
	if err == nil {
		c, ok := d.Candidates.Find(choice.Option)
		if !ok {
			return d, errors.ApprovalError(fmt.Sprintf("approver chose unknown version %q", choice.Option)).Build()
		}
		return n.resolve(ctx, d, c, choice.Approver, OutcomeApproved), nil
	}
	if !isInterruption(err) {
		return d, errors.WrapError(err, errors.CategoryApproval, "human input failed").Build()
	}

	switch ClassifyInterruption(d.Elapsed, wait) {
	case StateTimedOut:
		d.Path = append(d.Path, StateTimedOut)
		return n.resolve(ctx, d, d.Candidates.Default(), TimeoutApproved, OutcomeTimeout), nil
	default:
		d.Path = append(d.Path, StateAborted)
		observability.WarnContext(ctx, "Version approval aborted", logfields.Elapsed(d.Elapsed), logfields.Error(err))
		n.observe(ctx, OutcomeAborted, d.Elapsed)
		return d, &AbortError{Elapsed: d.Elapsed, Wait: wait, Cause: err}
	}
}

// ClassifyInterruption tells a timed-out wait from an abort. Both surface as the
// same interruption; a wait that lasted at least the timeout is a timeout.
func ClassifyInterruption(elapsed, wait time.Duration) State {
	if elapsed >= wait {
		return StateTimedOut
	}
	return StateAborted
}

// await sleeps the pre-wait inside the timed window and then blocks on the input
// channel for the remainder.
func (n *Negotiator) await(ctx context.Context, req Request, cands versioning.CandidateSet, wait time.Duration) (ci.Choice, error) {
	if n.Input == nil {
		return ci.Choice{}, errors.ConfigError("no human input channel configured").Build()
	}
	if pre := n.PreWait; pre > 0 {
		select {
		case <-n.clock().After(pre):
		case <-ctx.Done():
			return ci.Choice{}, fmt.Errorf("%w: %w", ci.ErrInputInterrupted, ctx.Err())
		}
	}
	return n.Input.RequestChoice(ctx, ci.InputRequest{
		Message:   fmt.Sprintf("Select the release version for %s on %s", req.Package, req.Branch),
		Options:   cands.Versions(),
		Approvers: req.Approvers,
	}, wait)
}

func (n *Negotiator) announce(ctx context.Context, req Request, cands versioning.CandidateSet, wait time.Duration) {
	if n.Notifier == nil {
		return
	}
	var body strings.Builder
	fmt.Fprintf(&body, "# Release approval: %s\n\n", req.Package)
	fmt.Fprintf(&body, "Branch `%s` is ready to release. Choose a version within %s.\n\n", req.Branch, wait)
	for i, c := range cands {
		marker := ""
		if i == 0 {
			marker = " (default)"
		}
		fmt.Fprintf(&body, "- `%s` %s%s\n", c.Version, c.Level, marker)
	}
	msg := ci.Message{
		Subject:    fmt.Sprintf("[%s] release approval needed", req.Package),
		Body:       body.String(),
		Recipients: req.Approvers,
	}
	if err := n.Notifier.Notify(ctx, msg); err != nil {
		observability.WarnContext(ctx, "Approval notification failed", logfields.Error(err))
	}
}

func (n *Negotiator) resolve(ctx context.Context, d Decision, c versioning.Candidate, approver string, outcome Outcome) Decision {
	d.Chosen = c
	d.Approver = approver
	d.Outcome = outcome
	d.Path = append(d.Path, StateResolved)
	observability.InfoContext(ctx, "Release version resolved",
		logfields.Version(c.Version),
		logfields.Level(string(c.Level)),
		logfields.Approver(approver),
		logfields.Outcome(string(outcome)),
		slog.Int("candidates", len(d.Candidates)))
	n.observe(ctx, outcome, d.Elapsed)
	return d
}

func (n *Negotiator) observe(ctx context.Context, outcome Outcome, wait time.Duration) {
	if n.Observer != nil {
		n.Observer.OnNegotiated(ctx, outcome, wait)
	}
}

func (n *Negotiator) clock() clockwork.Clock {
	if n.Clock == nil {
		return clockwork.NewRealClock()
	}
	return n.Clock
}

func (n *Negotiator) margin() time.Duration {
	if n.Margin == 0 {
		return DefaultMargin
	}
	return n.Margin
}

func isInterruption(err error) bool {
	return stderrors.Is(err, ci.ErrInputInterrupted) ||
		stderrors.Is(err, context.Canceled) ||
		stderrors.Is(err, context.DeadlineExceeded)
}
