package eventstore

import (
	"context"
	"log/slog"

	"git.home.luguber.info/inful/pipelib/internal/logfields"
	"git.home.luguber.info/inful/pipelib/internal/stage"
)

// Recorder appends the events of one run. Append failures are logged and never
// fail the run.
type Recorder struct {
	store  Store
	runID  string
	branch string
}

// NewRecorder binds a recorder to one run.
func NewRecorder(store Store, runID, branch string) *Recorder {
	return &Recorder{store: store, runID: runID, branch: branch}
}

// SetBranch updates the branch once checkout has resolved it.
func (r *Recorder) SetBranch(branch string) { r.branch = branch }

// Record appends a typed event.
func (r *Recorder) Record(ctx context.Context, eventType string, v any) {
	if r == nil || r.store == nil {
		return
	}
	payload, err := Encode(r.runID, eventType, v)
	if err == nil {
		err = r.store.Append(ctx, r.runID, r.branch, eventType, payload, nil)
	}
	if err != nil {
		slog.Warn("Failed to record run event", logfields.RunID(r.runID), slog.String("event_type", eventType), logfields.Error(err))
	}
}

// OnStageStart implements stage.Observer.
func (r *Recorder) OnStageStart(context.Context, *stage.Stage) {}

// OnStageComplete implements stage.Observer.
func (r *Recorder) OnStageComplete(ctx context.Context, s *stage.Stage, result stage.Result) {
	ev := StageCompleted{
		Stage:      s.Name,
		Kind:       string(s.Kind),
		Status:     string(s.Status()),
		Result:     result.String(),
		DurationMS: Elapsed(s.Duration()),
		SkipReason: s.SkipReason(),
	}
	if err := s.Err(); err != nil {
		ev.Error = err.Error()
	}
	r.Record(ctx, TypeStageCompleted, ev)
}
