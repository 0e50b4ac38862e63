package stage

import (
	"context"
	"time"
)

// Body is the work performed by a stage. The context carries the stage timeout.
type Body func(ctx context.Context) error

// Predicate decides at execution time whether a stage should run.
type Predicate func() bool

// Stage is one named unit of pipeline work. Configuration fields are set at
// declaration; the outcome fields are written exactly once by the Executor.
type Stage struct {
	Name    string
	Kind    Kind
	Timeout time.Duration
	// ShouldExecute is evaluated after the skip marker and the result threshold.
	// Nil means always execute.
	ShouldExecute Predicate
	// ResultThreshold is the worst prior pipeline result this stage still runs under.
	ResultThreshold Result
	Body            Body
	// SetupErr records an argument validation failure captured at declaration.
	// The stage fails with it when it is reached instead of running Body.
	SetupErr error

	ordinal    int
	status     Status
	err        error
	skipReason string
	duration   time.Duration
}

// Ordinal is the stage's zero-based declaration position.
func (s *Stage) Ordinal() int { return s.ordinal }

// Status returns the recorded outcome, StatusNotRun until the executor visits the stage.
func (s *Stage) Status() Status {
	if s.status == "" {
		return StatusNotRun
	}
	return s.status
}

// Err returns the failure recorded for the stage, if any.
func (s *Stage) Err() error { return s.err }

// SkipReason explains why a SKIPPED stage did not run.
func (s *Stage) SkipReason() string { return s.skipReason }

// Duration is the wall time spent in Body.
func (s *Stage) Duration() time.Duration { return s.duration }

// finish records the outcome. It reports false when the status was already set.
func (s *Stage) finish(status Status, err error, skipReason string, d time.Duration) bool {
	if s.status.Final() {
		return false
	}
	s.status = status
	s.err = err
	s.skipReason = skipReason
	s.duration = d
	return true
}
