package logfields

import (
	"errors"
	"log/slog"
	"testing"
	"time"
)

// TestHelperKeyNames verifies string-based helper key/value stability.
func TestHelperKeyNames(t *testing.T) {
	cases := []struct {
		name    string
		attrKey string
		attrVal string
		attr    slog.Attr
	}{
		{"RunID", KeyRunID, "abc", RunID("abc")},
		{"Stage", KeyStage, "build", Stage("build")},
		{"Status", KeyStatus, "SUCCESS", Status("SUCCESS")},
		{"Result", KeyResult, "UNSTABLE", Result("UNSTABLE")},
		{"Branch", KeyBranch, "main", Branch("main")},
		{"Policy", KeyPolicy, "main", Policy("main")},
		{"Tag", KeyTag, "snapshot", Tag("snapshot")},
		{"Version", KeyVersion, "1.2.3", Version("1.2.3")},
		{"Level", KeyLevel, "MINOR", Level("MINOR")},
		{"Approver", KeyApprover, "jdoe", Approver("jdoe")},
		{"Outcome", KeyOutcome, "timed_out", Outcome("timed_out")},
		{"Flavor", KeyFlavor, "nodejs", Flavor("nodejs")},
		{"Package", KeyPackage, "org.acme.app", Package("org.acme.app")},
		{"Command", KeyCommand, "npm test", Command("npm test")},
		{"Target", KeyTarget, "libs/app", Target("libs/app")},
		{"Path", KeyPath, "/tmp/x", Path("/tmp/x")},
	}
	for _, c := range cases {
		if c.attr.Key != c.attrKey {
			t.Fatalf("%s: expected key %s got %s", c.name, c.attrKey, c.attr.Key)
		}
		if c.attr.Value.String() != c.attrVal {
			t.Fatalf("%s: expected value %s got %s", c.name, c.attrVal, c.attr.Value.String())
		}
	}
}

func TestErrorAndDuration(t *testing.T) {
	if got := Error(nil); got.Value.String() != "" {
		t.Fatalf("nil error should render empty, got %q", got.Value.String())
	}
	if got := Error(errors.New("boom")); got.Value.String() != "boom" {
		t.Fatalf("expected boom got %q", got.Value.String())
	}
	if got := Elapsed(1500 * time.Microsecond); got.Value.Float64() != 1.5 {
		t.Fatalf("expected 1.5ms got %v", got.Value.Float64())
	}
}
