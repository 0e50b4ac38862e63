package branch

import (
	"fmt"
	"regexp"

	"git.home.luguber.info/inful/pipelib/internal/foundation/errors"
)

// Match is the outcome of resolving a branch name.
type Match struct {
	Policy Policy
	// Branch is the name that was resolved.
	Branch string
	// Tag is the sanitized release tag. Without a matching policy it is the
	// sanitized branch name.
	Tag string
	// Matched is false when no policy applies.
	Matched bool
}

type matcher struct {
	policy Policy
	re     *regexp.Regexp
	full   *regexp.Regexp
}

// Resolver holds policies in registration order. The first matching entry wins.
type Resolver struct {
	matchers []matcher
}

// NewResolver registers policies in order.
func NewResolver(policies ...Policy) (*Resolver, error) {
	r := &Resolver{}
	for _, p := range policies {
		if err := r.Register(p); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// NewDefaultResolver registers the default policies and then overrides. An
// override with the same pattern as an existing entry replaces it in place.
func NewDefaultResolver(overrides ...Policy) (*Resolver, error) {
	return NewResolver(append(DefaultPolicies(), overrides...)...)
}

// Register adds p, or replaces the entry with the same pattern keeping its position.
func (r *Resolver) Register(p Policy) error {
	if p.Pattern == "" {
		return errors.ConfigError("branch policy pattern is empty").Build()
	}
	re, err := regexp.Compile(p.Pattern)
	if err != nil {
		return errors.WrapError(err, errors.CategoryConfig, fmt.Sprintf("invalid branch pattern %q", p.Pattern)).
			Fatal().UserAction().Build()
	}
	m := matcher{policy: p, re: re, full: regexp.MustCompile(`^(?:` + p.Pattern + `)$`)}
	for i := range r.matchers {
		if r.matchers[i].policy.Pattern == p.Pattern {
			r.matchers[i] = m
			return nil
		}
	}
	r.matchers = append(r.matchers, m)
	return nil
}

// Policies returns the registered policies in match order.
func (r *Resolver) Policies() []Policy {
	out := make([]Policy, len(r.matchers))
	for i, m := range r.matchers {
		out[i] = m.policy
	}
	return out
}

// Resolve finds the first policy matching branch and computes its tag.
func (r *Resolver) Resolve(branch string) Match {
	for _, m := range r.matchers {
		if m.policy.Pattern == branch {
			return Match{Policy: m.policy, Branch: branch, Tag: Sanitize(literalTag(m.policy, branch)), Matched: true}
		}
		if m.full.MatchString(branch) {
			return Match{Policy: m.policy, Branch: branch, Tag: Sanitize(regexTag(m, branch)), Matched: true}
		}
	}
	return Match{Branch: branch, Tag: Sanitize(branch)}
}

func literalTag(p Policy, branch string) string {
	if p.ReleaseTag == "" {
		return branch
	}
	return p.ReleaseTag
}

var numberedGroup = regexp.MustCompile(`\$([0-9]+)`)

// regexTag substitutes capture groups into the release tag. Numbered references are
// braced first so "$1x" means group 1 followed by "x". Unmatched groups expand to "".
func regexTag(m matcher, branch string) string {
	if m.policy.ReleaseTag == "" {
		return branch
	}
	tmpl := numberedGroup.ReplaceAllString(m.policy.ReleaseTag, `$${$1}`)
	return m.re.ReplaceAllString(branch, tmpl)
}
