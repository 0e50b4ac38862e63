package stage

import "strings"

// Result is the overall pipeline result. Values are ordered from best to worst so
// that merging two results is a max over the ordinal.
type Result int

const (
	ResultSuccess Result = iota
	ResultUnstable
	ResultFailure
	ResultNotBuilt
)

func (r Result) String() string {
	switch r {
	case ResultSuccess:
		return "SUCCESS"
	case ResultUnstable:
		return "UNSTABLE"
	case ResultFailure:
		return "FAILURE"
	case ResultNotBuilt:
		return "NOT_BUILT"
	default:
		return "UNKNOWN"
	}
}

// ParseResult converts a case-insensitive name into a Result.
func ParseResult(s string) (Result, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "SUCCESS":
		return ResultSuccess, true
	case "UNSTABLE":
		return ResultUnstable, true
	case "FAILURE":
		return ResultFailure, true
	case "NOT_BUILT":
		return ResultNotBuilt, true
	default:
		return ResultSuccess, false
	}
}

// WorseThan reports whether r is strictly worse than other.
func (r Result) WorseThan(other Result) bool { return r > other }

// Worse returns the worse of the two results.
func Worse(a, b Result) Result {
	if a.WorseThan(b) {
		return a
	}
	return b
}
