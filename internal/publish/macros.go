// Package publish expands {macro} templates into artifact repository paths and
// builds upload specs for published files.
package publish

import (
	"strings"
	"time"

	"git.home.luguber.info/inful/pipelib/internal/branch"
)

// Macros maps macro names, without braces, to their values.
type Macros map[string]string

// Merge returns a copy of m overlaid with other.
func (m Macros) Merge(other Macros) Macros {
	out := make(Macros, len(m)+len(other))
	for k, v := range m {
		out[k] = v
	}
	for k, v := range other {
		out[k] = v
	}
	return out
}

// Expand replaces each {key} in template with macros[key] in a single left-to-right
// pass. Substituted text is never rescanned and unknown macros are left verbatim.
func Expand(template string, macros Macros) string {
	var b strings.Builder
	b.Grow(len(template))
	for i := 0; i < len(template); {
		if template[i] != '{' {
			b.WriteByte(template[i])
			i++
			continue
		}
		end := strings.IndexAny(template[i+1:], "{}")
		if end < 0 || template[i+1+end] == '{' {
			b.WriteByte('{')
			i++
			continue
		}
		key := template[i+1 : i+1+end]
		if v, ok := macros[key]; ok {
			b.WriteString(v)
		} else {
			b.WriteString(template[i : i+end+2])
		}
		i += end + 2
	}
	return b.String()
}

// TimestampLayout formats the timestamp macro.
const TimestampLayout = "20060102.150405"

// State is the pipeline state standard macros are derived from.
type State struct {
	Repository string
	Package    string
	// Version is the base version, or the chosen release version for releases.
	Version     string
	Prerelease  string
	BranchTag   string
	BuildNumber string
	Timestamp   time.Time
	Release     bool
}

// StandardMacros derives the standard macro set. Release builds publish the bare
// version; other builds decorate it with the branch tag and a timestamp.
func StandardMacros(st State) Macros {
	ts := st.Timestamp.UTC().Format(TimestampLayout)
	m := Macros{
		"repository":   st.Repository,
		"package":      st.Package,
		"version":      st.Version,
		"branchtag":    st.BranchTag,
		"branchtag-uc": branch.Upper(st.BranchTag),
		"timestamp":    ts,
		"buildnumber":  st.BuildNumber,
	}
	if st.Release {
		m["prerelease"] = st.Prerelease
		m["publishversion"] = st.Version
		return m
	}
	pre := ts
	if st.BranchTag != "" {
		pre = st.BranchTag + "." + ts
	}
	if st.BuildNumber != "" {
		pre += "." + st.BuildNumber
	}
	m["prerelease"] = pre
	m["publishversion"] = st.Version + "-" + pre
	return m
}
