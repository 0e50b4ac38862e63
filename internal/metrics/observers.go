package metrics

import (
	"context"
	"time"

	"git.home.luguber.info/inful/pipelib/internal/approval"
	"git.home.luguber.info/inful/pipelib/internal/stage"
)

// StageObserver forwards stage completions to a Recorder.
type StageObserver struct {
	Recorder Recorder
}

// OnStageStart implements stage.Observer.
func (StageObserver) OnStageStart(context.Context, *stage.Stage) {}

// OnStageComplete implements stage.Observer.
func (o StageObserver) OnStageComplete(_ context.Context, s *stage.Stage, _ stage.Result) {
	if o.Recorder == nil {
		return
	}
	if s.Status() != stage.StatusSkipped {
		o.Recorder.ObserveStageDuration(s.Name, s.Duration())
	}
	o.Recorder.IncStageStatus(s.Name, string(s.Status()))
}

// NegotiationObserver forwards negotiation outcomes to a Recorder.
type NegotiationObserver struct {
	Recorder Recorder
}

// OnNegotiated implements approval.Observer.
func (o NegotiationObserver) OnNegotiated(_ context.Context, outcome approval.Outcome, wait time.Duration) {
	if o.Recorder == nil {
		return
	}
	o.Recorder.IncNegotiation(string(outcome))
	if outcome != approval.OutcomeAutoDeploy {
		o.Recorder.ObserveApprovalWait(wait)
	}
}
