package pipeline

import (
	"time"

	"git.home.luguber.info/inful/pipelib/internal/foundation/errors"
	"git.home.luguber.info/inful/pipelib/internal/retry"
	"git.home.luguber.info/inful/pipelib/internal/stage"
	"git.home.luguber.info/inful/pipelib/internal/versioning"
)

// Default stage timeouts.
const (
	DefaultCheckoutTimeout = 5 * time.Minute
	DefaultBuildTimeout    = time.Hour
	DefaultTestTimeout     = time.Hour
	DefaultPublishTimeout  = 30 * time.Minute
	DefaultReleaseTimeout  = 30 * time.Minute
	DefaultCustomTimeout   = 30 * time.Minute
)

// BuildArgs configures the build stage.
type BuildArgs struct {
	Name      string
	Timeout   time.Duration
	Command   string
	Threshold stage.Result
}

// TestArgs configures the test stage.
type TestArgs struct {
	Name    string
	Timeout time.Duration
	Command string
	// Reports is the JUnit report glob; the flavor's default when empty.
	Reports   string
	Threshold stage.Result
}

// PublishArgs configures the publish stage.
type PublishArgs struct {
	Name       string
	Timeout    time.Duration
	Repository string
	// Patterns replace the flavor's artifact globs.
	Patterns     []string
	PathTemplate string
	FileTemplate string
	// Poll paces the wait for uploads to become searchable. Zero Initial
	// disables the wait.
	Poll      retry.Policy
	Threshold stage.Result
}

// ReleaseArgs configures the release stage.
type ReleaseArgs struct {
	Name    string
	Timeout time.Duration
	// Repository receives promoted artifacts. Defaults to the publish repository.
	Repository string
	Approvers  []string
	// Level overrides the branch policy's bump level.
	Level     string
	Threshold stage.Result
}

// StageArgs configures a custom shell stage.
type StageArgs struct {
	Name      string
	Timeout   time.Duration
	Command   string
	Threshold stage.Result
	// When decides whether the stage runs. Nil means always.
	When func(*Context) bool
}

func timeoutOr(d, def time.Duration) time.Duration {
	if d == 0 {
		return def
	}
	return d
}

func validateTimeout(name string, d time.Duration) error {
	if d < 0 {
		return errors.ConfigError("stage timeout must not be negative").
			WithContext("stage", name).
			WithContext("timeout", d.String()).
			Build()
	}
	return nil
}

func (a ReleaseArgs) validate() error {
	if err := validateTimeout(a.Name, a.Timeout); err != nil {
		return err
	}
	if a.Level != "" {
		if _, err := versioning.ParseLevel(a.Level); err != nil {
			return err
		}
	}
	return nil
}

func (a PublishArgs) validate() error {
	if err := validateTimeout(a.Name, a.Timeout); err != nil {
		return err
	}
	if a.Repository == "" {
		return errors.ConfigError("publish stage requires a repository").
			WithContext("stage", a.Name).
			Build()
	}
	if a.Poll.Initial > 0 {
		if err := a.Poll.Validate(); err != nil {
			return errors.WrapError(err, errors.CategoryConfig, "invalid publish poll policy").Build()
		}
	}
	return nil
}

func (a StageArgs) validate() error {
	if err := validateTimeout(a.Name, a.Timeout); err != nil {
		return err
	}
	if a.Command == "" {
		return errors.ConfigError("custom stage requires a command").
			WithContext("stage", a.Name).
			Build()
	}
	return nil
}
