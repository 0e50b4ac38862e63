// Package config loads the pipeline file.
//
// A pipeline file is YAML or TOML, chosen by extension. Values may reference
// environment variables as ${VAR}; .env and .env.local next to the working
// directory are loaded first and never override the process environment.
package config

import (
	"time"

	"git.home.luguber.info/inful/pipelib/internal/branch"
	"git.home.luguber.info/inful/pipelib/internal/git"
)

// DefaultFile is the pipeline file looked up when none is given.
const DefaultFile = "pipelib.yaml"

// Config is a parsed pipeline file.
type Config struct {
	Project  ProjectConfig   `yaml:"project" toml:"project"`
	Branches []branch.Policy `yaml:"branches,omitempty" toml:"branches,omitempty"`
	Stages   StagesConfig    `yaml:"stages,omitempty" toml:"stages,omitempty"`
	Publish  PublishConfig   `yaml:"publish,omitempty" toml:"publish,omitempty"`
	Release  ReleaseConfig   `yaml:"release,omitempty" toml:"release,omitempty"`
	Notify   NotifyConfig    `yaml:"notify,omitempty" toml:"notify,omitempty"`
	Approval ApprovalConfig  `yaml:"approval,omitempty" toml:"approval,omitempty"`
	Events   EventsConfig    `yaml:"events,omitempty" toml:"events,omitempty"`
	Metrics  MetricsConfig   `yaml:"metrics,omitempty" toml:"metrics,omitempty"`
	Schedule ScheduleConfig  `yaml:"schedule,omitempty" toml:"schedule,omitempty"`
	Git      git.Auth        `yaml:"git,omitempty" toml:"git,omitempty"`
	Logging  LoggingConfig   `yaml:"logging,omitempty" toml:"logging,omitempty"`
}

// ProjectConfig names the package and how to build it.
type ProjectConfig struct {
	// Name overrides the package name read from the manifest.
	Name        string `yaml:"name,omitempty" toml:"name,omitempty"`
	Flavor      string `yaml:"flavor,omitempty" toml:"flavor,omitempty"`
	VersionFile string `yaml:"version_file,omitempty" toml:"version_file,omitempty"`
	// Workspace is the checkout directory. Defaults to the current directory.
	Workspace string `yaml:"workspace,omitempty" toml:"workspace,omitempty"`
}

// StageConfig holds settings shared by the built-in stages.
type StageConfig struct {
	Timeout time.Duration `yaml:"timeout,omitempty" toml:"timeout,omitempty"`
	// Command replaces the flavor's default command.
	Command string `yaml:"command,omitempty" toml:"command,omitempty"`
	// Threshold is the worst pipeline result at which the stage still runs.
	Threshold string `yaml:"threshold,omitempty" toml:"threshold,omitempty"`
	Disabled  bool   `yaml:"disabled,omitempty" toml:"disabled,omitempty"`
}

// TestStageConfig adds the JUnit report glob to the test stage.
type TestStageConfig struct {
	StageConfig `yaml:",inline"`
	Reports     string `yaml:"reports,omitempty" toml:"reports,omitempty"`
}

// CustomStage is an extra shell stage appended after the built-in ones.
type CustomStage struct {
	Name      string        `yaml:"name" toml:"name"`
	Command   string        `yaml:"command" toml:"command"`
	Timeout   time.Duration `yaml:"timeout,omitempty" toml:"timeout,omitempty"`
	Threshold string        `yaml:"threshold,omitempty" toml:"threshold,omitempty"`
	// Branches restricts the stage to branches matching one of these patterns.
	Branches []string `yaml:"branches,omitempty" toml:"branches,omitempty"`
	// ReleaseOnly runs the stage only when a release was requested.
	ReleaseOnly bool `yaml:"release_only,omitempty" toml:"release_only,omitempty"`
}

// StagesConfig configures the built-in and custom stages.
type StagesConfig struct {
	Checkout time.Duration   `yaml:"checkout_timeout,omitempty" toml:"checkout_timeout,omitempty"`
	Build    StageConfig     `yaml:"build,omitempty" toml:"build,omitempty"`
	Test     TestStageConfig `yaml:"test,omitempty" toml:"test,omitempty"`
	Custom   []CustomStage   `yaml:"custom,omitempty" toml:"custom,omitempty"`
}

// PollConfig paces the wait for published artifacts to become searchable.
type PollConfig struct {
	Interval   time.Duration `yaml:"interval,omitempty" toml:"interval,omitempty"`
	Max        time.Duration `yaml:"max,omitempty" toml:"max,omitempty"`
	Mode       string        `yaml:"mode,omitempty" toml:"mode,omitempty"`
	MaxRetries int           `yaml:"max_retries,omitempty" toml:"max_retries,omitempty"`
}

// PublishConfig configures the publish stage and the artifact repository.
type PublishConfig struct {
	StageConfig `yaml:",inline"`
	// Root is the directory backing the artifact repository.
	Root         string     `yaml:"root,omitempty" toml:"root,omitempty"`
	Repository   string     `yaml:"repository,omitempty" toml:"repository,omitempty"`
	Patterns     []string   `yaml:"patterns,omitempty" toml:"patterns,omitempty"`
	PathTemplate string     `yaml:"path_template,omitempty" toml:"path_template,omitempty"`
	FileTemplate string     `yaml:"file_template,omitempty" toml:"file_template,omitempty"`
	Poll         PollConfig `yaml:"poll,omitempty" toml:"poll,omitempty"`
}

// ReleaseConfig configures the release stage.
type ReleaseConfig struct {
	Timeout    time.Duration `yaml:"timeout,omitempty" toml:"timeout,omitempty"`
	Approvers  []string      `yaml:"approvers,omitempty" toml:"approvers,omitempty"`
	Level      string        `yaml:"level,omitempty" toml:"level,omitempty"`
	Repository string        `yaml:"repository,omitempty" toml:"repository,omitempty"`
	Threshold  string        `yaml:"threshold,omitempty" toml:"threshold,omitempty"`
	Disabled   bool          `yaml:"disabled,omitempty" toml:"disabled,omitempty"`
}

// NotifyConfig configures run and approval notifications.
type NotifyConfig struct {
	Recipients []string `yaml:"recipients,omitempty" toml:"recipients,omitempty"`
	NATSURL    string   `yaml:"nats_url,omitempty" toml:"nats_url,omitempty"`
	Subject    string   `yaml:"subject,omitempty" toml:"subject,omitempty"`
	Stream     string   `yaml:"stream,omitempty" toml:"stream,omitempty"`
}

// Approval channel kinds.
const (
	ChannelNone = "none"
	ChannelNATS = "nats"
	ChannelHTTP = "http"
)

// ApprovalConfig selects where approvers answer version prompts.
type ApprovalConfig struct {
	Channel string `yaml:"channel,omitempty" toml:"channel,omitempty"`
	// NATSURL defaults to notify.nats_url.
	NATSURL string `yaml:"nats_url,omitempty" toml:"nats_url,omitempty"`
	Subject string `yaml:"subject,omitempty" toml:"subject,omitempty"`
	Addr    string `yaml:"addr,omitempty" toml:"addr,omitempty"`
	// Tokens maps bearer tokens to approver names for the HTTP channel.
	Tokens map[string]string `yaml:"tokens,omitempty" toml:"tokens,omitempty"`
}

// EventsConfig locates the run history database.
type EventsConfig struct {
	Path     string `yaml:"path,omitempty" toml:"path,omitempty"`
	Disabled bool   `yaml:"disabled,omitempty" toml:"disabled,omitempty"`
}

// MetricsConfig exposes Prometheus metrics when Addr is set.
type MetricsConfig struct {
	Addr string `yaml:"addr,omitempty" toml:"addr,omitempty"`
}

// ScheduleConfig drives serve mode.
type ScheduleConfig struct {
	Cron    string        `yaml:"cron,omitempty" toml:"cron,omitempty"`
	Every   time.Duration `yaml:"every,omitempty" toml:"every,omitempty"`
	Timeout time.Duration `yaml:"timeout,omitempty" toml:"timeout,omitempty"`
}

// LoggingConfig sets the default log level and format.
type LoggingConfig struct {
	Level  string `yaml:"level,omitempty" toml:"level,omitempty"`
	Format string `yaml:"format,omitempty" toml:"format,omitempty"`
}
