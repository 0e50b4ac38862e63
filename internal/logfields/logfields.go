package logfields

import (
	"log/slog"
	"time"
)

// Canonical log field name constants to avoid drift across packages.
const (
	KeyRunID      = "run_id"
	KeyStage      = "stage"
	KeyStatus     = "status"
	KeyResult     = "result"
	KeyBranch     = "branch"
	KeyPolicy     = "policy"
	KeyTag        = "tag"
	KeyVersion    = "version"
	KeyLevel      = "level"
	KeyApprover   = "approver"
	KeyOutcome    = "outcome"
	KeyFlavor     = "flavor"
	KeyPackage    = "package"
	KeyCommand    = "command"
	KeyTarget     = "target"
	KeyPath       = "path"
	KeyDurationMS = "duration_ms"
	KeyError      = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func RunID(id string) slog.Attr       { return slog.String(KeyRunID, id) }
func Stage(name string) slog.Attr     { return slog.String(KeyStage, name) }
func Status(s string) slog.Attr       { return slog.String(KeyStatus, s) }
func Result(r string) slog.Attr       { return slog.String(KeyResult, r) }
func Branch(b string) slog.Attr       { return slog.String(KeyBranch, b) }
func Policy(p string) slog.Attr       { return slog.String(KeyPolicy, p) }
func Tag(t string) slog.Attr          { return slog.String(KeyTag, t) }
func Version(v string) slog.Attr      { return slog.String(KeyVersion, v) }
func Level(l string) slog.Attr        { return slog.String(KeyLevel, l) }
func Approver(a string) slog.Attr     { return slog.String(KeyApprover, a) }
func Outcome(o string) slog.Attr      { return slog.String(KeyOutcome, o) }
func Flavor(f string) slog.Attr       { return slog.String(KeyFlavor, f) }
func Package(p string) slog.Attr      { return slog.String(KeyPackage, p) }
func Command(c string) slog.Attr      { return slog.String(KeyCommand, c) }
func Target(t string) slog.Attr       { return slog.String(KeyTarget, t) }
func Path(p string) slog.Attr         { return slog.String(KeyPath, p) }
func DurationMS(ms float64) slog.Attr { return slog.Float64(KeyDurationMS, ms) }
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}

// Elapsed records d as fractional milliseconds.
func Elapsed(d time.Duration) slog.Attr {
	return DurationMS(float64(d.Microseconds()) / 1000)
}
