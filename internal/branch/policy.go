// Package branch maps branch names to release policies and derives the
// sanitized branch tag used in artifact paths.
package branch

import "git.home.luguber.info/inful/pipelib/internal/versioning"

// Policy describes what a pipeline may do on a matching branch.
type Policy struct {
	// Pattern is matched literally first, then as a regular expression
	// anchored to the whole branch name.
	Pattern            string `yaml:"pattern" toml:"pattern"`
	Protected          bool   `yaml:"protected" toml:"protected"`
	AllowRelease       bool   `yaml:"allow_release" toml:"allow_release"`
	AllowFormalRelease bool   `yaml:"allow_formal_release" toml:"allow_formal_release"`
	// ReleaseTag may reference regex capture groups as $1 or ${1}.
	ReleaseTag   string           `yaml:"release_tag" toml:"release_tag"`
	BuildHistory int              `yaml:"build_history" toml:"build_history"`
	Prerelease   string           `yaml:"prerelease" toml:"prerelease"`
	AutoDeploy   bool             `yaml:"auto_deploy" toml:"auto_deploy"`
	Level        versioning.Level `yaml:"level" toml:"level"`
}

// Releasable reports whether releases may be cut from the branch. Only
// protected branches release, whatever AllowRelease says.
func (p Policy) Releasable() bool {
	return p.Protected && p.AllowRelease
}

// maintenancePattern matches maintenance lines such as v2.x/master or v1.4.x/master.
const maintenancePattern = `v[0-9]+\.[0-9x]+(\.[0-9x]+)?`

// DefaultPolicies returns the built-in branch policies in match order.
func DefaultPolicies() []Policy {
	return []Policy{
		{
			Pattern:            "master",
			Protected:          true,
			AllowRelease:       true,
			AllowFormalRelease: true,
			ReleaseTag:         "snapshot",
			BuildHistory:       20,
			Level:              versioning.LevelMajor,
		},
		{
			Pattern:            "main",
			Protected:          true,
			AllowRelease:       true,
			AllowFormalRelease: true,
			ReleaseTag:         "snapshot",
			BuildHistory:       20,
			Level:              versioning.LevelMajor,
		},
		{
			Pattern:            maintenancePattern + "/master",
			Protected:          true,
			AllowRelease:       true,
			AllowFormalRelease: true,
			ReleaseTag:         "$1-snapshot",
			BuildHistory:       20,
			Level:              versioning.LevelPatch,
		},
		{
			Pattern:      "staging",
			Protected:    true,
			AllowRelease: true,
			ReleaseTag:   "staging",
			BuildHistory: 20,
			Prerelease:   "rc",
			Level:        versioning.LevelMajor,
		},
		{
			Pattern:      maintenancePattern + "/staging",
			Protected:    true,
			AllowRelease: true,
			ReleaseTag:   "$1-staging",
			BuildHistory: 20,
			Prerelease:   "rc",
			Level:        versioning.LevelPatch,
		},
		{
			Pattern:      "develop",
			Protected:    true,
			AllowRelease: true,
			ReleaseTag:   "develop",
			BuildHistory: 10,
			Prerelease:   "beta",
			AutoDeploy:   true,
			Level:        versioning.LevelMinor,
		},
	}
}
