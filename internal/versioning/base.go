package versioning

import (
	"fmt"
	"regexp"

	"github.com/Masterminds/semver/v3"

	"git.home.luguber.info/inful/pipelib/internal/foundation/errors"
)

// Base is the MAJOR.MINOR.PATCH triple read from the package metadata.
type Base struct {
	Major uint64
	Minor uint64
	Patch uint64
}

// ParseBase reads a version string and drops any prerelease or build metadata.
// A leading "v" and missing minor or patch components are accepted.
func ParseBase(s string) (Base, error) {
	v, err := semver.NewVersion(s)
	if err != nil {
		return Base{}, errors.WrapError(err, errors.CategoryValidation, fmt.Sprintf("invalid package version %q", s)).Build()
	}
	return Base{Major: v.Major(), Minor: v.Minor(), Patch: v.Patch()}, nil
}

func (b Base) String() string { return fmt.Sprintf("%d.%d.%d", b.Major, b.Minor, b.Patch) }

// Bump returns the next version at level. Lower components reset to zero.
func (b Base) Bump(level Level) Base {
	switch level {
	case LevelMajor:
		return Base{Major: b.Major + 1}
	case LevelMinor:
		return Base{Major: b.Major, Minor: b.Minor + 1}
	default:
		return Base{Major: b.Major, Minor: b.Minor, Patch: b.Patch + 1}
	}
}

var prereleaseLabel = regexp.MustCompile(`^[0-9A-Za-z-]+(\.[0-9A-Za-z-]+)*$`)

// ValidatePrerelease checks that label can be used as a semver prerelease identifier.
// The empty label is valid and means a formal release.
func ValidatePrerelease(label string) error {
	if label == "" || prereleaseLabel.MatchString(label) {
		return nil
	}
	return errors.ValidationError(fmt.Sprintf("invalid prerelease label %q", label)).
		WithContext("pattern", prereleaseLabel.String()).
		Build()
}
