package versioning

import "time"

// TimestampLayout is the UTC minute-resolution stamp appended to prerelease labels.
const TimestampLayout = "200601021504"

// Candidate is one release version offered to approvers.
type Candidate struct {
	Level   Level
	Version string
	// Current marks the non-incremented base version.
	Current bool
}

// CandidateSet is the ordered list of candidates. The first entry is the default.
type CandidateSet []Candidate

// Default returns the candidate chosen on auto-deploy or approval timeout.
func (cs CandidateSet) Default() Candidate {
	if len(cs) == 0 {
		return Candidate{}
	}
	return cs[0]
}

// Versions lists the candidate version strings in order.
func (cs CandidateSet) Versions() []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.Version
	}
	return out
}

// Find returns the candidate with the given version string.
func (cs CandidateSet) Find(version string) (Candidate, bool) {
	for _, c := range cs {
		if c.Version == version {
			return c, true
		}
	}
	return Candidate{}, false
}

// PrereleaseSuffix renders "-{label}.{yyyyMMddHHmm}" in UTC, or "" for an empty label.
func PrereleaseSuffix(label string, now time.Time) string {
	if label == "" {
		return ""
	}
	return "-" + label + "." + now.UTC().Format(TimestampLayout)
}

// Candidates builds the ordered candidate list for base. The current version comes
// first, followed by bumps from the largest permitted level down to PATCH. Every
// entry carries the same prerelease suffix.
func Candidates(base Base, level Level, prerelease string, now time.Time) CandidateSet {
	suffix := PrereleaseSuffix(prerelease, now)
	out := CandidateSet{{Level: LevelPatch, Version: base.String() + suffix, Current: true}}
	for _, l := range []Level{LevelMajor, LevelMinor, LevelPatch} {
		if !level.Allows(l) {
			continue
		}
		out = append(out, Candidate{Level: l, Version: base.Bump(l).String() + suffix})
	}
	return out
}
