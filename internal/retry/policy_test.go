package retry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestDefaultPolicy verifies the baseline default values.
func TestDefaultPolicy(t *testing.T) {
	p := DefaultPolicy()
	assert.Equal(t, ModeFixed, p.Mode)
	assert.Equal(t, 5*time.Second, p.Initial)
	assert.Zero(t, p.MaxRetries)
	require.NoError(t, p.Validate())
}

// TestNewPolicyOverrides checks override precedence and clamping when initial > max.
func TestNewPolicyOverrides(t *testing.T) {
	p := NewPolicy(ModeLinear, 5*time.Second, 2*time.Second, 5)
	assert.Equal(t, 2*time.Second, p.Initial, "initial clamped to max")
	assert.Equal(t, 2*time.Second, p.Max)
	assert.Equal(t, ModeLinear, p.Mode)
	assert.Equal(t, 5, p.MaxRetries)

	p = NewPolicy("bogus", 10*time.Second, 0, -1)
	assert.Equal(t, ModeFixed, p.Mode)
	assert.Equal(t, 10*time.Second, p.Initial, "a larger interval raises the cap")
}

// TestDelayModes ensures fixed, linear, exponential behave and respect cap.
func TestDelayModes(t *testing.T) {
	fixed := NewPolicy(ModeFixed, 100*time.Millisecond, 500*time.Millisecond, 3)
	for i := 1; i <= 3; i++ {
		assert.Equal(t, 100*time.Millisecond, fixed.Delay(i))
	}

	linear := NewPolicy(ModeLinear, 100*time.Millisecond, 250*time.Millisecond, 5)
	assert.Equal(t, 100*time.Millisecond, linear.Delay(1))
	assert.Equal(t, 200*time.Millisecond, linear.Delay(2))
	assert.Equal(t, 250*time.Millisecond, linear.Delay(3))

	exp := NewPolicy(ModeExponential, 100*time.Millisecond, time.Second, 10)
	assert.Equal(t, 100*time.Millisecond, exp.Delay(1))
	assert.Equal(t, 400*time.Millisecond, exp.Delay(3))
	assert.Equal(t, time.Second, exp.Delay(8))
	assert.Zero(t, exp.Delay(0))
}

func TestDelayClampsLargeRetryCounts(t *testing.T) {
	exp := NewPolicy(ModeExponential, 3*time.Second, time.Minute, 0)
	linear := NewPolicy(ModeLinear, 3*time.Second, time.Minute, 0)
	for _, n := range []int{20, 63, 64, 65, 1000, 1 << 40} {
		assert.Equal(t, time.Minute, exp.Delay(n), "exponential retry %d", n)
		assert.Equal(t, time.Minute, linear.Delay(n), "linear retry %d", n)
	}
}

func TestValidate(t *testing.T) {
	require.Error(t, Policy{Initial: 0, Max: time.Second}.Validate())
	require.Error(t, Policy{Initial: time.Second}.Validate())
	require.Error(t, Policy{Initial: time.Second, Max: time.Second, MaxRetries: -1}.Validate())
}
