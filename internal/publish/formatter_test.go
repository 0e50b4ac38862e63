package publish

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatterUploadSpec(t *testing.T) {
	macros := StandardMacros(State{
		Repository: "libs-snapshot-local",
		Package:    "app",
		Version:    "1.2.3",
		BranchTag:  "master",
		Timestamp:  time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	})

	spec := NewFormatter().UploadSpec([]string{"dist/app-1.2.3.tgz"}, "1.2.3", macros)
	require.Len(t, spec.Files, 1)
	assert.Equal(t, "dist/app-1.2.3.tgz", spec.Files[0].Pattern)
	assert.Equal(t,
		"libs-snapshot-local/app/1.2.3-master.20240101.000000/app-1.2.3-master.20240101.000000.tgz",
		spec.Files[0].Target)
}

func TestFormatterRepublishDoesNotDoubleVersion(t *testing.T) {
	macros := StandardMacros(State{Repository: "r", Package: "app", Version: "1.2.3", Release: true})
	f := &Formatter{PathTemplate: "{repository}/{package}", FileTemplate: "{filename}-{publishversion}{fileext}"}

	first := f.Target("app.tgz", "1.2.3", macros)
	second := f.Target("app-1.2.3.tgz", "1.2.3", macros)
	assert.Equal(t, "r/app/app-1.2.3.tgz", first)
	assert.Equal(t, first, second)
}

func TestFormatterKeepsUnknownMacros(t *testing.T) {
	f := &Formatter{PathTemplate: "{repository}/{team}/"}
	assert.Equal(t, "r/{team}/", f.TargetPath(Macros{"repository": "r"}))
}
