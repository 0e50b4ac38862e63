package metrics

import "time"

// Recorder defines observability hooks for pipeline metrics. Implementations may
// forward to Prometheus or discard. All methods must be safe on nil receivers.
type Recorder interface {
	ObserveStageDuration(stage string, d time.Duration)
	ObservePipelineDuration(d time.Duration)
	// IncStageStatus counts final stage statuses (SUCCESS, UNSTABLE, FAIL, SKIPPED).
	IncStageStatus(stage, status string)
	// IncPipelineResult counts final pipeline results.
	IncPipelineResult(result string)
	// IncNegotiation counts version negotiations by outcome.
	IncNegotiation(outcome string)
	ObserveApprovalWait(d time.Duration)
	IncPollAttempt(operation string)
}

// NoopRecorder is a Recorder that does nothing (default when metrics not configured).
type NoopRecorder struct{}

func (NoopRecorder) ObserveStageDuration(string, time.Duration) {}
func (NoopRecorder) ObservePipelineDuration(time.Duration)      {}
func (NoopRecorder) IncStageStatus(string, string)              {}
func (NoopRecorder) IncPipelineResult(string)                   {}
func (NoopRecorder) IncNegotiation(string)                      {}
func (NoopRecorder) ObserveApprovalWait(time.Duration)          {}
func (NoopRecorder) IncPollAttempt(string)                      {}
