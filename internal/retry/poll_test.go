package retry

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastPolicy(maxRetries int) Policy {
	return NewPolicy(ModeFixed, time.Millisecond, time.Millisecond, maxRetries)
}

func TestPollSucceedsAfterAttempts(t *testing.T) {
	calls := 0
	var seen []int
	err := Poll(t.Context(), fastPolicy(0), func(context.Context) (bool, error) {
		calls++
		return calls == 3, nil
	}, func(attempt int) { seen = append(seen, attempt) })

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []int{0, 1, 2}, seen)
}

func TestPollStopsOnError(t *testing.T) {
	boom := stderrors.New("boom")
	err := Poll(t.Context(), fastPolicy(0), func(context.Context) (bool, error) { return false, boom }, nil)
	require.ErrorIs(t, err, boom)
}

func TestPollExhausts(t *testing.T) {
	calls := 0
	err := Poll(t.Context(), fastPolicy(2), func(context.Context) (bool, error) {
		calls++
		return false, nil
	}, nil)
	require.ErrorIs(t, err, ErrPollExhausted)
	assert.Equal(t, 3, calls)
}

func TestPollBoundedByContext(t *testing.T) {
	ctx, cancel := context.WithTimeout(t.Context(), 20*time.Millisecond)
	defer cancel()

	err := Poll(ctx, NewPolicy(ModeFixed, 5*time.Millisecond, 0, 0), func(context.Context) (bool, error) { return false, nil }, nil)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}
