package config

import (
	"regexp"

	"git.home.luguber.info/inful/pipelib/internal/pipeline"
	"git.home.luguber.info/inful/pipelib/internal/retry"
	"git.home.luguber.info/inful/pipelib/internal/stage"
)

// Declare adds the configured stages to p in execution order. Setup problems
// are recorded on the stages by p; the first declaration error is returned.
func (c *Config) Declare(p *pipeline.Pipeline) error {
	if !c.Stages.Build.Disabled {
		if err := p.DeclareBuildStage(c.BuildArgs()); err != nil {
			return err
		}
	}
	if !c.Stages.Test.Disabled {
		if err := p.DeclareTestStage(c.TestArgs()); err != nil {
			return err
		}
	}
	if !c.Publish.Disabled {
		if err := p.DeclarePublishStage(c.PublishArgs()); err != nil {
			return err
		}
	}
	if !c.Release.Disabled {
		if err := p.DeclareReleaseStage(c.ReleaseArgs()); err != nil {
			return err
		}
	}
	for _, s := range c.Stages.Custom {
		if err := p.DeclareStage(customArgs(s)); err != nil {
			return err
		}
	}
	return nil
}

// BuildArgs maps the build section.
func (c *Config) BuildArgs() pipeline.BuildArgs {
	return pipeline.BuildArgs{
		Timeout:   c.Stages.Build.Timeout,
		Command:   c.Stages.Build.Command,
		Threshold: threshold(c.Stages.Build.Threshold),
	}
}

// TestArgs maps the test section.
func (c *Config) TestArgs() pipeline.TestArgs {
	return pipeline.TestArgs{
		Timeout:   c.Stages.Test.Timeout,
		Command:   c.Stages.Test.Command,
		Reports:   c.Stages.Test.Reports,
		Threshold: threshold(c.Stages.Test.Threshold),
	}
}

// PublishArgs maps the publish section.
func (c *Config) PublishArgs() pipeline.PublishArgs {
	args := pipeline.PublishArgs{
		Timeout:      c.Publish.Timeout,
		Repository:   c.Publish.Repository,
		Patterns:     c.Publish.Patterns,
		PathTemplate: c.Publish.PathTemplate,
		FileTemplate: c.Publish.FileTemplate,
		Threshold:    threshold(c.Publish.Threshold),
	}
	if poll := c.Publish.Poll; poll.Interval > 0 {
		args.Poll = retry.NewPolicy(retry.Mode(poll.Mode), poll.Interval, poll.Max, poll.MaxRetries)
	}
	return args
}

// ReleaseArgs maps the release section.
func (c *Config) ReleaseArgs() pipeline.ReleaseArgs {
	return pipeline.ReleaseArgs{
		Timeout:    c.Release.Timeout,
		Repository: c.Release.Repository,
		Approvers:  c.Release.Approvers,
		Level:      c.Release.Level,
		Threshold:  threshold(c.Release.Threshold),
	}
}

func customArgs(s CustomStage) pipeline.StageArgs {
	args := pipeline.StageArgs{
		Name:      s.Name,
		Timeout:   s.Timeout,
		Command:   s.Command,
		Threshold: threshold(s.Threshold),
	}
	if len(s.Branches) == 0 && !s.ReleaseOnly {
		return args
	}
	matchers := make([]*regexp.Regexp, len(s.Branches))
	for i, pat := range s.Branches {
		matchers[i], _ = regexp.Compile(`^(?:` + pat + `)$`)
	}
	patterns := s.Branches
	releaseOnly := s.ReleaseOnly
	args.When = func(pc *pipeline.Context) bool {
		if releaseOnly && !pc.Params.PerformRelease {
			return false
		}
		if len(patterns) == 0 {
			return true
		}
		for i, pat := range patterns {
			if pat == pc.Branch {
				return true
			}
			if matchers[i] != nil && matchers[i].MatchString(pc.Branch) {
				return true
			}
		}
		return false
	}
	return args
}

// threshold parses a validated result name. Empty means SUCCESS.
func threshold(s string) stage.Result {
	r, _ := stage.ParseResult(s)
	return r
}
