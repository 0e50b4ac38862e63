package stage

import (
	stderrors "errors"
	"fmt"

	"git.home.luguber.info/inful/pipelib/internal/foundation/errors"
)

// Kind classifies a stage for error reporting and singleton enforcement.
type Kind string

const (
	KindCheckout Kind = "checkout"
	KindBuild    Kind = "build"
	KindTest     Kind = "test"
	KindPublish  Kind = "publish"
	KindRelease  Kind = "release"
	KindCustom   Kind = "custom"
)

// Singleton reports whether at most one stage of this kind may be declared.
func (k Kind) Singleton() bool {
	switch k {
	case KindCheckout, KindBuild, KindTest, KindPublish, KindRelease:
		return true
	default:
		return false
	}
}

// ErrDuplicateStage is matched by every DuplicateStageError.
var ErrDuplicateStage = errors.ConfigError("singleton stage declared twice").Build()

// ErrStageTimeout marks a stage body that exceeded its declared timeout.
var ErrStageTimeout = errors.StageError("stage timed out").Build()

// StageError is the failure raised by a stage body. Kind selects the concrete
// flavor (build, test, publish, release) callers match on.
type StageError struct {
	Kind  Kind
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s stage %q failed: %v", e.Kind, e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// NewStageError wraps cause as a failure of the named stage.
func NewStageError(kind Kind, stage string, cause error) *StageError {
	return &StageError{Kind: kind, Stage: stage, Err: cause}
}

func BuildStageError(stage string, cause error) *StageError {
	return NewStageError(KindBuild, stage, cause)
}

func TestStageError(stage string, cause error) *StageError {
	return NewStageError(KindTest, stage, cause)
}

func PublishStageError(stage string, cause error) *StageError {
	return NewStageError(KindPublish, stage, cause)
}

func ReleaseStageError(stage string, cause error) *StageError {
	return NewStageError(KindRelease, stage, cause)
}

// AsStageError extracts the first StageError in the chain.
func AsStageError(err error) (*StageError, bool) {
	var se *StageError
	if stderrors.As(err, &se) {
		return se, true
	}
	return nil, false
}

// DuplicateStageError is returned when a singleton stage kind is declared twice.
type DuplicateStageError struct {
	Kind     Kind
	Stage    string
	Existing string
}

func (e *DuplicateStageError) Error() string {
	return fmt.Sprintf("only one %s stage may be declared: %q conflicts with %q", e.Kind, e.Stage, e.Existing)
}

func (e *DuplicateStageError) Unwrap() error { return ErrDuplicateStage }

type nonFatalError struct{ err error }

func (e *nonFatalError) Error() string { return e.err.Error() }
func (e *nonFatalError) Unwrap() error { return e.err }

// NonFatal tags err so the executor records the stage as UNSTABLE instead of FAIL.
func NonFatal(err error) error {
	if err == nil {
		return nil
	}
	return &nonFatalError{err: err}
}

// IsNonFatal reports whether err was tagged with NonFatal.
func IsNonFatal(err error) bool {
	var nf *nonFatalError
	return stderrors.As(err, &nf)
}

// IsAbort reports whether err represents an operator abort of the whole run.
func IsAbort(err error) bool {
	return errors.HasCategory(err, errors.CategoryAborted)
}
