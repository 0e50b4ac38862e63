package publish

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestExpand(t *testing.T) {
	macros := Macros{"package": "app", "version": "1.2.3", "nested": "{package}"}
	tests := []struct {
		name, in, want string
	}{
		{"simple", "{package}/{version}", "app/1.2.3"},
		{"repeated", "{package}-{package}", "app-app"},
		{"unknown left verbatim", "{package}/{nope}/x", "app/{nope}/x"},
		{"no rescan", "{nested}", "{package}"},
		{"unclosed", "lib/{package", "lib/{package"},
		{"inner brace", "{a{package}", "{aapp"},
		{"empty key", "{}", "{}"},
		{"no macros", "plain/path", "plain/path"},
		{"stray close", "a}b", "a}b"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Expand(tt.in, macros))
		})
	}
}

func TestExpandWithoutMacrosIsIdentity(t *testing.T) {
	for _, s := range []string{"", "{x}", "a/{b}/{c", "{{}}"} {
		assert.Equal(t, s, Expand(s, nil))
	}
}

func TestStandardMacrosSnapshot(t *testing.T) {
	ts := time.Date(2024, 3, 9, 14, 5, 6, 0, time.UTC)
	m := StandardMacros(State{
		Repository:  "libs-snapshot-local",
		Package:     "app",
		Version:     "1.2.3",
		BranchTag:   "feature-x",
		BuildNumber: "42",
		Timestamp:   ts,
	})

	assert.Equal(t, "FEATURE-X", m["branchtag-uc"])
	assert.Equal(t, "20240309.140506", m["timestamp"])
	assert.Equal(t, "feature-x.20240309.140506.42", m["prerelease"])
	assert.Equal(t, "1.2.3-feature-x.20240309.140506.42", m["publishversion"])
}

func TestStandardMacrosRelease(t *testing.T) {
	m := StandardMacros(State{
		Repository: "libs-release-local",
		Package:    "app",
		Version:    "1.3.0-rc.202401010000",
		Prerelease: "rc",
		BranchTag:  "staging",
		Timestamp:  time.Now(),
		Release:    true,
	})

	assert.Equal(t, "1.3.0-rc.202401010000", m["publishversion"])
	assert.Equal(t, "rc", m["prerelease"])
}

func TestFileMacros(t *testing.T) {
	tests := []struct {
		file, base, name, ext string
	}{
		{"dist/app-1.2.3.tgz", "1.2.3", "app", ".tgz"},
		{"dist/app-v1.2.3-snapshot.20240101.tar.gz", "1.2.3", "app", ".tar.gz"},
		{"build/libs/app_1.2.3.jar", "1.2.3", "app", ".jar"},
		{"dist/app-1.2.30.tgz", "1.2.3", "app-1.2.30", ".tgz"},
		{"dist/app-2.0.0.tgz", "1.2.3", "app-2.0.0", ".tgz"},
		{"dist/1.2.3.zip", "1.2.3", "1.2.3", ".zip"},
		{"README", "1.2.3", "README", ""},
	}
	for _, tt := range tests {
		t.Run(tt.file, func(t *testing.T) {
			m := FileMacros(tt.file, tt.base)
			assert.Equal(t, tt.name, m["filename"])
			assert.Equal(t, tt.ext, m["fileext"])
		})
	}
}
