package stage

// Status is the recorded outcome of a single stage.
type Status string

const (
	StatusNotRun   Status = "NOT_RUN"
	StatusSuccess  Status = "SUCCESS"
	StatusUnstable Status = "UNSTABLE"
	StatusFail     Status = "FAIL"
	StatusSkipped  Status = "SKIPPED"
)

// Final reports whether the stage has been evaluated.
func (s Status) Final() bool { return s != StatusNotRun && s != "" }

// result maps a stage status to the pipeline result it contributes.
func (s Status) result() Result {
	switch s {
	case StatusUnstable:
		return ResultUnstable
	case StatusFail:
		return ResultFailure
	default:
		return ResultSuccess
	}
}
