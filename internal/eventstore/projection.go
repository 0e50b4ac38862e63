package eventstore

import (
	"context"
	"time"
)

// StageSummary is the recorded outcome of one stage.
type StageSummary struct {
	Name       string `json:"name"`
	Status     string `json:"status"`
	DurationMS int64  `json:"duration_ms"`
	SkipReason string `json:"skip_reason,omitempty"`
	Error      string `json:"error,omitempty"`
}

// RunSummary is the read model of one run, reconstructed from its events.
type RunSummary struct {
	RunID       string         `json:"run_id"`
	Branch      string         `json:"branch"`
	Package     string         `json:"package,omitempty"`
	Release     bool           `json:"release"`
	Result      string         `json:"result"`
	StartedAt   time.Time      `json:"started_at"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
	Version     string         `json:"version,omitempty"`
	Approver    string         `json:"approver,omitempty"`
	FailedStage string         `json:"failed_stage,omitempty"`
	Stages      []StageSummary `json:"stages"`
}

// resultRunning marks runs with no RunCompleted event.
const resultRunning = "RUNNING"

// Summarize folds the events of one run into a summary. Events must share a run ID.
func Summarize(events []Event) (*RunSummary, error) {
	if len(events) == 0 {
		return nil, nil
	}
	s := &RunSummary{
		RunID:     events[0].RunID(),
		Branch:    events[0].Branch(),
		StartedAt: events[0].Timestamp(),
		Result:    resultRunning,
		Stages:    []StageSummary{},
	}
	for _, e := range events {
		if err := s.apply(e); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *RunSummary) apply(e Event) error {
	switch e.Type() {
	case TypeRunStarted:
		var ev RunStarted
		if err := Decode(e, &ev); err != nil {
			return err
		}
		s.Package = ev.Package
		s.Release = ev.PerformRelease
	case TypeStageCompleted:
		var ev StageCompleted
		if err := Decode(e, &ev); err != nil {
			return err
		}
		s.Stages = append(s.Stages, StageSummary{
			Name:       ev.Stage,
			Status:     ev.Status,
			DurationMS: ev.DurationMS,
			SkipReason: ev.SkipReason,
			Error:      ev.Error,
		})
	case TypeVersionNegotiated:
		var ev VersionNegotiated
		if err := Decode(e, &ev); err != nil {
			return err
		}
		s.Version = ev.Version
		s.Approver = ev.Approver
	case TypeRunCompleted:
		var ev RunCompleted
		if err := Decode(e, &ev); err != nil {
			return err
		}
		s.Result = ev.Result
		s.FailedStage = ev.FailedStage
		if ev.Version != "" {
			s.Version = ev.Version
		}
		ts := e.Timestamp()
		s.CompletedAt = &ts
	}
	return nil
}

// History lists run summaries for branch, newest first.
func History(ctx context.Context, store Store, branch string, limit int) ([]*RunSummary, error) {
	refs, err := store.ListRuns(ctx, branch, limit)
	if err != nil {
		return nil, err
	}
	out := make([]*RunSummary, 0, len(refs))
	for _, ref := range refs {
		events, err := store.GetByRunID(ctx, ref.RunID)
		if err != nil {
			return nil, err
		}
		sum, err := Summarize(events)
		if err != nil {
			return nil, err
		}
		if sum != nil {
			out = append(out, sum)
		}
	}
	return out, nil
}
