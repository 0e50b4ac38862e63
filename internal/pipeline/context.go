package pipeline

import (
	"time"

	"git.home.luguber.info/inful/pipelib/internal/approval"
	"git.home.luguber.info/inful/pipelib/internal/branch"
	"git.home.luguber.info/inful/pipelib/internal/ci"
	"git.home.luguber.info/inful/pipelib/internal/flavor"
	"git.home.luguber.info/inful/pipelib/internal/publish"
	"git.home.luguber.info/inful/pipelib/internal/versioning"
)

// Params are the build parameters set by the operator who starts a run.
type Params struct {
	PerformRelease bool
	// Prerelease overrides the branch policy's prerelease label.
	Prerelease  string
	BuildNumber string
}

// Context is the state of one run. Checkout fills the branch and package
// fields; later stages read them and add their own results.
type Context struct {
	RunID   string
	Params  Params
	Started time.Time

	Branch  string
	Match   branch.Match
	Package flavor.Package
	Base    versioning.Base
	// CISkip is set when the last commit asked CI to skip the run.
	CISkip bool

	Published       []ci.UploadFile
	PublishMacros   publish.Macros
	Decision        *approval.Decision
	ReleaseTag      string
	NextDevVersion  string
	ReleasedTargets []string
}

// Policy is the resolved branch policy. Unmatched branches get the zero policy,
// which is unprotected and may not release.
func (c *Context) Policy() branch.Policy { return c.Match.Policy }

// Prerelease is the label decorating release candidates: the operator's value
// when given, otherwise the branch policy's.
func (c *Context) Prerelease() string {
	if c.Params.Prerelease != "" {
		return c.Params.Prerelease
	}
	return c.Match.Policy.Prerelease
}

// FormalRelease reports whether a release would carry no prerelease label.
func (c *Context) FormalRelease() bool { return c.Prerelease() == "" }

// ReleasePermitted applies the protected branch guard: the operator asked for a
// release on a protected branch that allows releases, and formal releases are
// allowed where required.
func (c *Context) ReleasePermitted() bool {
	if !c.Params.PerformRelease || !c.Match.Policy.Releasable() {
		return false
	}
	return !c.FormalRelease() || c.Match.Policy.AllowFormalRelease
}

// Version is the negotiated release version, or the base version before that.
func (c *Context) Version() string {
	if c.Decision != nil {
		return c.Decision.Version()
	}
	return c.Base.String()
}
