// Package retry provides delay policies and a bounded fixed-interval poll used
// to wait for external systems, such as an artifact becoming visible.
package retry

import (
	"fmt"
	"time"
)

// Mode selects how the delay grows between attempts.
type Mode string

const (
	ModeFixed       Mode = "fixed"
	ModeLinear      Mode = "linear"
	ModeExponential Mode = "exponential"
)

// Policy encapsulates delay settings between attempts.
// It is immutable after construction.
type Policy struct {
	Mode       Mode          // fixed|linear|exponential
	Initial    time.Duration // base delay
	Max        time.Duration // cap for growth
	MaxRetries int           // attempts after the first; 0 means until the context ends
}

// DefaultPolicy returns the poll default: a fixed 5s interval bounded only by the context.
func DefaultPolicy() Policy {
	return Policy{Mode: ModeFixed, Initial: 5 * time.Second, Max: 5 * time.Second, MaxRetries: 0}
}

// NewPolicy builds a policy from raw config fields; zero/invalid values fall back to defaults.
func NewPolicy(mode Mode, initial, maxDuration time.Duration, maxRetries int) Policy {
	p := DefaultPolicy()
	if maxRetries >= 0 {
		p.MaxRetries = maxRetries
	}
	if initial > 0 {
		p.Initial = initial
		if maxDuration <= 0 && p.Max < initial {
			p.Max = initial
		}
	}
	if maxDuration > 0 {
		p.Max = maxDuration
	}
	switch mode {
	case ModeFixed, ModeLinear, ModeExponential:
		p.Mode = mode
	default:
		// unknown -> keep default
	}
	if p.Initial > p.Max {
		p.Initial = p.Max
	}
	return p
}

// Delay returns the delay before the given retry attempt number (1-based: first retry => 1).
func (p Policy) Delay(retryCount int) time.Duration {
	if retryCount <= 0 {
		return 0
	}
	switch p.Mode {
	case ModeFixed:
		return p.Initial
	case ModeExponential:
		d := p.Initial
		for i := 1; i < retryCount; i++ {
			if d >= p.Max/2 {
				return p.Max
			}
			d *= 2
		}
		return min(d, p.Max)
	default: // linear
		if p.Initial > 0 && time.Duration(retryCount) > p.Max/p.Initial {
			return p.Max
		}
		return min(time.Duration(retryCount)*p.Initial, p.Max)
	}
}

// Validate ensures invariants; returns error if policy impossible to apply.
func (p Policy) Validate() error {
	if p.Initial <= 0 {
		return fmt.Errorf("initial must be >0")
	}
	if p.Max <= 0 {
		return fmt.Errorf("max must be >0")
	}
	if p.MaxRetries < 0 {
		return fmt.Errorf("max retries cannot be negative")
	}
	return nil
}
