package approval

import (
	"context"
	stderrors "errors"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/pipelib/internal/ci"
	"git.home.luguber.info/inful/pipelib/internal/foundation/errors"
	"git.home.luguber.info/inful/pipelib/internal/stage"
	"git.home.luguber.info/inful/pipelib/internal/versioning"
)

type scriptedInput struct {
	clock   *clockwork.FakeClock
	advance func(timeout time.Duration) time.Duration
	choice  ci.Choice
	err     error

	gotReq     ci.InputRequest
	gotTimeout time.Duration
}

func (s *scriptedInput) RequestChoice(_ context.Context, req ci.InputRequest, timeout time.Duration) (ci.Choice, error) {
	s.gotReq = req
	s.gotTimeout = timeout
	if s.advance != nil {
		s.clock.Advance(s.advance(timeout))
	}
	return s.choice, s.err
}

type recordingNotifier struct {
	mu   sync.Mutex
	msgs []ci.Message
	err  error
}

func (r *recordingNotifier) Notify(_ context.Context, msg ci.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, msg)
	return r.err
}

type countingObserver struct{ outcomes []Outcome }

func (c *countingObserver) OnNegotiated(_ context.Context, o Outcome, _ time.Duration) {
	c.outcomes = append(c.outcomes, o)
}

var t0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func newNegotiator(input *scriptedInput) (*Negotiator, *recordingNotifier, *countingObserver) {
	notifier := &recordingNotifier{}
	obs := &countingObserver{}
	n := NewNegotiator(input, notifier)
	n.Clock = input.clock
	n.PreWait = 0
	n.Observer = obs
	return n, notifier, obs
}

func baseRequest() Request {
	return Request{
		Package:      "app",
		Branch:       "staging",
		Base:         versioning.Base{Major: 1, Minor: 2, Patch: 3},
		Level:        versioning.LevelMajor,
		Prerelease:   "rc",
		Approvers:    []string{"alice"},
		StageTimeout: 30 * time.Minute,
	}
}

func TestNegotiateAutoDeploy(t *testing.T) {
	input := &scriptedInput{clock: clockwork.NewFakeClockAt(t0)}
	n, notifier, obs := newNegotiator(input)

	req := baseRequest()
	req.AutoDeploy = true
	req.Approvers = nil
	d, err := n.Negotiate(t.Context(), req)
	require.NoError(t, err)

	assert.Equal(t, "1.2.3-rc.202401010000", d.Version())
	assert.Equal(t, AutoApproved, d.Approver)
	assert.Equal(t, []State{StateComputing, StateResolved}, d.Path)
	assert.Empty(t, notifier.msgs)
	assert.Empty(t, input.gotReq.Options, "auto-deploy never asks for input")
	assert.Equal(t, []Outcome{OutcomeAutoDeploy}, obs.outcomes)
}

func TestNegotiateHumanChoice(t *testing.T) {
	clock := clockwork.NewFakeClockAt(t0)
	input := &scriptedInput{
		clock:   clock,
		advance: func(time.Duration) time.Duration { return 3 * time.Minute },
		choice:  ci.Choice{Option: "2.0.0-rc.202401010000", Approver: "alice"},
	}
	n, notifier, _ := newNegotiator(input)

	d, err := n.Negotiate(t.Context(), baseRequest())
	require.NoError(t, err)

	assert.Equal(t, "2.0.0-rc.202401010000", d.Version())
	assert.Equal(t, versioning.LevelMajor, d.Chosen.Level)
	assert.Equal(t, "alice", d.Approver)
	assert.Equal(t, OutcomeApproved, d.Outcome)
	assert.Equal(t, []State{StateComputing, StateAwaiting, StateResolved}, d.Path)
	assert.Equal(t, 29*time.Minute, input.gotTimeout)
	assert.Equal(t, d.Candidates.Versions(), input.gotReq.Options)

	require.Len(t, notifier.msgs, 1)
	assert.Equal(t, []string{"alice"}, notifier.msgs[0].Recipients)
	assert.Contains(t, notifier.msgs[0].Body, "1.2.3-rc.202401010000")
}

func TestNegotiateTimeoutAtBoundarySelectsDefault(t *testing.T) {
	clock := clockwork.NewFakeClockAt(t0)
	input := &scriptedInput{
		clock:   clock,
		advance: func(timeout time.Duration) time.Duration { return timeout },
		err:     ci.ErrInputInterrupted,
	}
	n, _, obs := newNegotiator(input)

	d, err := n.Negotiate(t.Context(), baseRequest())
	require.NoError(t, err)

	assert.Equal(t, d.Candidates.Default(), d.Chosen)
	assert.Equal(t, TimeoutApproved, d.Approver)
	assert.Equal(t, []State{StateComputing, StateAwaiting, StateTimedOut, StateResolved}, d.Path)
	assert.Equal(t, []Outcome{OutcomeTimeout}, obs.outcomes)
}

func TestNegotiateEarlyAbortReraises(t *testing.T) {
	clock := clockwork.NewFakeClockAt(t0)
	input := &scriptedInput{
		clock:   clock,
		advance: func(time.Duration) time.Duration { return 10 * time.Second },
		err:     ci.ErrInputInterrupted,
	}
	n, _, obs := newNegotiator(input)

	d, err := n.Negotiate(t.Context(), baseRequest())
	require.Error(t, err)

	var abort *AbortError
	require.ErrorAs(t, err, &abort)
	assert.Equal(t, 10*time.Second, abort.Elapsed)
	require.ErrorIs(t, err, ErrAborted)
	require.ErrorIs(t, err, ci.ErrInputInterrupted)
	assert.True(t, stage.IsAbort(err), "aborts must stop the pipeline")
	assert.Equal(t, StateAborted, d.Path[len(d.Path)-1])
	assert.Empty(t, d.Approver)
	assert.Equal(t, []Outcome{OutcomeAborted}, obs.outcomes)
}

func TestNegotiatePreWaitCountsTowardsElapsed(t *testing.T) {
	clock := clockwork.NewFakeClockAt(t0)
	input := &scriptedInput{
		clock:   clock,
		advance: func(timeout time.Duration) time.Duration { return timeout - DefaultPreWait },
		err:     ci.ErrInputInterrupted,
	}
	n, _, _ := newNegotiator(input)
	n.PreWait = DefaultPreWait

	type result struct {
		d   Decision
		err error
	}
	done := make(chan result, 1)
	go func() {
		d, err := n.Negotiate(t.Context(), baseRequest())
		done <- result{d, err}
	}()

	require.NoError(t, clock.BlockUntilContext(t.Context(), 1))
	clock.Advance(DefaultPreWait)

	res := <-done
	require.NoError(t, res.err)
	assert.Equal(t, TimeoutApproved, res.d.Approver)
}

func TestNegotiateNoApprovers(t *testing.T) {
	input := &scriptedInput{clock: clockwork.NewFakeClockAt(t0)}
	n, _, _ := newNegotiator(input)

	req := baseRequest()
	req.Approvers = nil
	_, err := n.Negotiate(t.Context(), req)
	require.Error(t, err)

	var na *NoApproversError
	require.ErrorAs(t, err, &na)
	assert.Equal(t, "staging", na.Branch)
	require.ErrorIs(t, err, ErrNoApprovers)
	assert.True(t, errors.HasCategory(err, errors.CategoryApproval))
}

func TestNegotiateTimeoutTooShort(t *testing.T) {
	input := &scriptedInput{clock: clockwork.NewFakeClockAt(t0)}
	n, notifier, _ := newNegotiator(input)

	for _, timeout := range []time.Duration{0, 30 * time.Second, time.Minute} {
		req := baseRequest()
		req.StageTimeout = timeout
		_, err := n.Negotiate(t.Context(), req)

		var short *TimeoutTooShortError
		require.ErrorAs(t, err, &short, "timeout %s", timeout)
		assert.True(t, errors.HasCategory(err, errors.CategoryConfig))
	}
	assert.Empty(t, notifier.msgs)
}

func TestNegotiateUnknownChoice(t *testing.T) {
	input := &scriptedInput{clock: clockwork.NewFakeClockAt(t0), choice: ci.Choice{Option: "9.9.9", Approver: "bob"}}
	n, _, _ := newNegotiator(input)

	_, err := n.Negotiate(t.Context(), baseRequest())
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryApproval))
}

func TestNegotiateTransportFailureIsNotAnAbort(t *testing.T) {
	input := &scriptedInput{clock: clockwork.NewFakeClockAt(t0), err: stderrors.New("connection refused")}
	n, _, _ := newNegotiator(input)

	_, err := n.Negotiate(t.Context(), baseRequest())
	require.Error(t, err)
	assert.False(t, stage.IsAbort(err))
	assert.True(t, errors.HasCategory(err, errors.CategoryApproval))
}

func TestNegotiateNotificationFailureIsIgnored(t *testing.T) {
	input := &scriptedInput{clock: clockwork.NewFakeClockAt(t0), choice: ci.Choice{Option: "1.2.4-rc.202401010000", Approver: "alice"}}
	n, notifier, _ := newNegotiator(input)
	notifier.err = stderrors.New("smtp down")

	d, err := n.Negotiate(t.Context(), baseRequest())
	require.NoError(t, err)
	assert.Equal(t, versioning.LevelPatch, d.Chosen.Level)
}

func TestClassifyInterruption(t *testing.T) {
	wait := 29 * time.Minute
	assert.Equal(t, StateTimedOut, ClassifyInterruption(wait, wait))
	assert.Equal(t, StateTimedOut, ClassifyInterruption(wait+time.Millisecond, wait))
	assert.Equal(t, StateAborted, ClassifyInterruption(wait-time.Millisecond, wait))
	assert.Equal(t, StateAborted, ClassifyInterruption(0, wait))
}
