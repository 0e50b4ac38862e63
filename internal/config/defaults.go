package config

import (
	"time"

	"git.home.luguber.info/inful/pipelib/internal/retry"
)

// Defaults for optional settings.
const (
	DefaultEventsPath      = ".pipelib/events.db"
	DefaultArtifactRoot    = ".pipelib/artifacts"
	DefaultRepository      = "libs-snapshot-local"
	DefaultNotifySubject   = "pipelib.notifications"
	DefaultApprovalSubject = "pipelib.approvals"
	DefaultApprovalAddr    = ":8089"
	DefaultScheduleTimeout = 3 * time.Hour
)

func applyDefaults(c *Config) {
	if c.Project.Flavor == "" {
		c.Project.Flavor = "generic"
	}
	if c.Project.Workspace == "" {
		c.Project.Workspace = "."
	}
	if c.Publish.Root == "" {
		c.Publish.Root = DefaultArtifactRoot
	}
	if c.Publish.Repository == "" {
		c.Publish.Repository = DefaultRepository
	}
	if c.Publish.Poll.Mode == "" {
		c.Publish.Poll.Mode = string(retry.ModeFixed)
	}
	if c.Notify.Subject == "" {
		c.Notify.Subject = DefaultNotifySubject
	}
	if c.Approval.Channel == "" {
		c.Approval.Channel = ChannelNone
	}
	if c.Approval.NATSURL == "" {
		c.Approval.NATSURL = c.Notify.NATSURL
	}
	if c.Approval.Subject == "" {
		c.Approval.Subject = DefaultApprovalSubject
	}
	if c.Approval.Addr == "" {
		c.Approval.Addr = DefaultApprovalAddr
	}
	if c.Events.Path == "" {
		c.Events.Path = DefaultEventsPath
	}
	if c.Schedule.Timeout == 0 {
		c.Schedule.Timeout = DefaultScheduleTimeout
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
}
