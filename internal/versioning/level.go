// Package versioning computes release version candidates from a package's base
// version, a bump level and an optional prerelease label.
package versioning

import (
	"fmt"
	"strings"

	"git.home.luguber.info/inful/pipelib/internal/foundation/errors"
)

// Level is the maximum semantic version component a release may bump.
type Level string

const (
	LevelPatch Level = "PATCH"
	LevelMinor Level = "MINOR"
	LevelMajor Level = "MAJOR"
)

// ParseLevel accepts a level name case-insensitively. Empty input means PATCH.
func ParseLevel(s string) (Level, error) {
	switch Level(strings.ToUpper(strings.TrimSpace(s))) {
	case "", LevelPatch:
		return LevelPatch, nil
	case LevelMinor:
		return LevelMinor, nil
	case LevelMajor:
		return LevelMajor, nil
	}
	return "", errors.ValidationError(fmt.Sprintf("unknown version level %q", s)).
		WithContext("allowed", "PATCH, MINOR, MAJOR").
		Build()
}

// rank orders levels so MAJOR > MINOR > PATCH.
func (l Level) rank() int {
	switch l {
	case LevelMajor:
		return 2
	case LevelMinor:
		return 1
	default:
		return 0
	}
}

// Allows reports whether a bump of level other is permitted under l.
func (l Level) Allows(other Level) bool { return other.rank() <= l.rank() }

func (l Level) String() string { return string(l) }
