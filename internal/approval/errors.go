package approval

import (
	"fmt"
	"time"

	"git.home.luguber.info/inful/pipelib/internal/foundation/errors"
)

// Sentinels matched with errors.Is.
var (
	ErrNoApprovers     = errors.ApprovalError("no approvers configured").UserAction().Build()
	ErrTimeoutTooShort = errors.ConfigError("stage timeout leaves no time for approval").Build()
	ErrAborted         = errors.AbortedError("version approval aborted").Build()
)

// NoApproversError is returned when a release needs a human decision but no
// approvers are configured for the branch.
type NoApproversError struct {
	Branch string
}

func (e *NoApproversError) Error() string {
	return fmt.Sprintf("release on %q requires approval but no approvers are configured", e.Branch)
}

func (e *NoApproversError) Unwrap() error { return ErrNoApprovers }

// TimeoutTooShortError is returned when the stage timeout minus the approval
// margin is not positive.
type TimeoutTooShortError struct {
	StageTimeout time.Duration
	Margin       time.Duration
}

func (e *TimeoutTooShortError) Error() string {
	return fmt.Sprintf("stage timeout %s must exceed the approval margin %s", e.StageTimeout, e.Margin)
}

func (e *TimeoutTooShortError) Unwrap() error { return ErrTimeoutTooShort }

// AbortError reports an approval wait that ended before its timeout.
type AbortError struct {
	Elapsed time.Duration
	Wait    time.Duration
	Cause   error
}

func (e *AbortError) Error() string {
	return fmt.Sprintf("version approval aborted after %s of %s: %v", e.Elapsed.Round(time.Millisecond), e.Wait, e.Cause)
}

func (e *AbortError) Unwrap() []error { return []error{ErrAborted, e.Cause} }
