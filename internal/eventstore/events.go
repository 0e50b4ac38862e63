package eventstore

import (
	"encoding/json"
	"time"

	"git.home.luguber.info/inful/pipelib/internal/foundation/errors"
)

// Event type names.
const (
	TypeRunStarted        = "RunStarted"
	TypeStageCompleted    = "StageCompleted"
	TypeVersionNegotiated = "VersionNegotiated"
	TypeRunCompleted      = "RunCompleted"
)

// RunStarted is emitted before the first stage runs.
type RunStarted struct {
	Package        string `json:"package"`
	Flavor         string `json:"flavor"`
	Policy         string `json:"policy,omitempty"`
	PerformRelease bool   `json:"perform_release"`
	BuildNumber    string `json:"build_number,omitempty"`
}

// StageCompleted is emitted once per visited stage.
type StageCompleted struct {
	Stage      string `json:"stage"`
	Kind       string `json:"kind"`
	Status     string `json:"status"`
	Result     string `json:"result"`
	DurationMS int64  `json:"duration_ms"`
	SkipReason string `json:"skip_reason,omitempty"`
	Error      string `json:"error,omitempty"`
}

// VersionNegotiated is emitted when a release version is chosen.
type VersionNegotiated struct {
	Version    string   `json:"version"`
	Approver   string   `json:"approver"`
	Outcome    string   `json:"outcome"`
	Candidates []string `json:"candidates"`
}

// RunCompleted is emitted when the run finishes.
type RunCompleted struct {
	Result      string `json:"result"`
	FailedStage string `json:"failed_stage,omitempty"`
	Error       string `json:"error,omitempty"`
	DurationMS  int64  `json:"duration_ms"`
	Version     string `json:"version,omitempty"`
	CISkipped   bool   `json:"ci_skipped,omitempty"`
}

// Encode marshals a typed event payload.
func Encode(runID, eventType string, v any) ([]byte, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryEventStore, ErrMarshalPayloadFailed.Message()).
			WithContext("run_id", runID).
			WithContext("event_type", eventType).
			Build()
	}
	return payload, nil
}

// Decode unmarshals the payload of e into v.
func Decode(e Event, v any) error {
	if err := json.Unmarshal(e.Payload(), v); err != nil {
		return errors.WrapError(err, errors.CategoryEventStore, ErrUnmarshalPayloadFailed.Message()).
			WithContext("event_type", e.Type()).
			Build()
	}
	return nil
}

// Elapsed converts a duration to the millisecond fields used in payloads.
func Elapsed(d time.Duration) int64 { return d.Milliseconds() }
