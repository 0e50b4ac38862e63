package config

import (
	stderrors "errors"
	"regexp"

	"git.home.luguber.info/inful/pipelib/internal/branch"
	"git.home.luguber.info/inful/pipelib/internal/flavor"
	"git.home.luguber.info/inful/pipelib/internal/foundation/errors"
	"git.home.luguber.info/inful/pipelib/internal/stage"
	"git.home.luguber.info/inful/pipelib/internal/versioning"
)

// Validate checks cross-field rules the schema cannot express and normalizes
// bump levels. All problems are reported together.
func (c *Config) Validate() error {
	var errs []error

	if _, err := flavor.Lookup(c.Project.Flavor, c.Project.VersionFile); err != nil {
		errs = append(errs, err)
	}

	for i := range c.Branches {
		p := &c.Branches[i]
		if p.BuildHistory < 0 {
			errs = append(errs, errors.ConfigError("build_history must not be negative").
				WithContext("pattern", p.Pattern).Build())
		}
		if p.Prerelease != "" {
			if err := versioning.ValidatePrerelease(p.Prerelease); err != nil {
				errs = append(errs, err)
			}
		}
		lvl, err := versioning.ParseLevel(string(p.Level))
		if err != nil {
			errs = append(errs, err)
			continue
		}
		p.Level = lvl
	}

	if _, err := c.Resolver(); err != nil {
		errs = append(errs, err)
	}

	if c.Release.Level != "" {
		if _, err := versioning.ParseLevel(c.Release.Level); err != nil {
			errs = append(errs, err)
		}
	}

	for _, th := range []struct{ field, value string }{
		{"stages.build.threshold", c.Stages.Build.Threshold},
		{"stages.test.threshold", c.Stages.Test.Threshold},
		{"publish.threshold", c.Publish.Threshold},
		{"release.threshold", c.Release.Threshold},
	} {
		if err := checkThreshold(th.field, th.value); err != nil {
			errs = append(errs, err)
		}
	}

	seen := map[string]bool{}
	for _, s := range c.Stages.Custom {
		if seen[s.Name] {
			errs = append(errs, errors.ConfigError("duplicate custom stage").WithContext("stage", s.Name).Build())
		}
		seen[s.Name] = true
		if s.Command == "" {
			errs = append(errs, errors.ConfigError("custom stage requires a command").WithContext("stage", s.Name).Build())
		}
		if err := checkThreshold("stages.custom.threshold", s.Threshold); err != nil {
			errs = append(errs, err)
		}
		for _, pat := range s.Branches {
			if _, err := regexp.Compile("^(?:" + pat + ")$"); err != nil {
				errs = append(errs, errors.ConfigError("invalid branch pattern").
					WithCause(err).WithContext("stage", s.Name).WithContext("pattern", pat).Build())
			}
		}
	}

	switch c.Approval.Channel {
	case ChannelNone, ChannelHTTP:
	case ChannelNATS:
		if c.Approval.NATSURL == "" {
			errs = append(errs, errors.ConfigError("nats approval channel requires a NATS url").Build())
		}
	default:
		errs = append(errs, errors.ConfigError("unknown approval channel").
			WithContext("channel", c.Approval.Channel).Build())
	}
	if !c.Release.Disabled && c.Approval.Channel != ChannelNone && len(c.Release.Approvers) == 0 {
		errs = append(errs, errors.ConfigError("release approvals require at least one approver").
			WithContext("channel", c.Approval.Channel).Build())
	}

	if c.Schedule.Cron != "" && c.Schedule.Every != 0 {
		errs = append(errs, errors.ConfigError("schedule takes either cron or every, not both").Build())
	}
	if c.Schedule.Every < 0 {
		errs = append(errs, errors.ConfigError("schedule interval must be positive").Build())
	}

	if len(errs) == 0 {
		return nil
	}
	if len(errs) == 1 && errors.HasCategory(errs[0], errors.CategoryConfig) {
		return errs[0]
	}
	return errors.WrapError(stderrors.Join(errs...), errors.CategoryConfig, "invalid pipeline file").
		WithContext("problems", len(errs)).Build()
}

func checkThreshold(field, value string) error {
	if value == "" {
		return nil
	}
	if _, ok := stage.ParseResult(value); !ok {
		return errors.ConfigError("invalid result threshold").
			WithContext("field", field).WithContext("value", value).Build()
	}
	return nil
}

// Resolver builds the branch resolver: built-in policies first, then the
// file's overrides.
func (c *Config) Resolver() (*branch.Resolver, error) {
	return branch.NewDefaultResolver(c.Branches...)
}
