package retry

import (
	"context"
	"fmt"
	"time"

	"git.home.luguber.info/inful/pipelib/internal/foundation/errors"
)

// ErrPollExhausted is returned when MaxRetries attempts passed without success.
var ErrPollExhausted = errors.NewError(errors.CategoryRuntime, "poll attempts exhausted").
	WithRetry(errors.RetryPoll).Build()

// Check reports whether the awaited condition holds. An error stops polling.
type Check func(ctx context.Context) (bool, error)

// Poll calls check immediately and then after each policy delay until it reports
// true, returns an error, the attempts run out, or ctx ends. onAttempt, when not
// nil, is called before every attempt.
func Poll(ctx context.Context, p Policy, check Check, onAttempt func(attempt int)) error {
	for attempt := 0; ; attempt++ {
		if onAttempt != nil {
			onAttempt(attempt)
		}
		done, err := check(ctx)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
		if p.MaxRetries > 0 && attempt >= p.MaxRetries {
			return fmt.Errorf("%w after %d attempts", ErrPollExhausted, attempt+1)
		}

		timer := time.NewTimer(p.Delay(attempt + 1))
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("poll interrupted after %d attempts: %w", attempt+1, ctx.Err())
		case <-timer.C:
		}
	}
}
