package workspace

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDirReadWrite(t *testing.T) {
	d, err := Open(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, d.Write("build/out/app.txt", []byte("hello")))
	assert.True(t, d.Exists("build/out/app.txt"))
	assert.False(t, d.Exists("build/missing.txt"))

	data, err := d.Read("build/out/app.txt")
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))

	_, err = d.Read("nope")
	require.Error(t, err)
}

func TestDirConfinesEscapingPaths(t *testing.T) {
	root := t.TempDir()
	d, err := Open(root)
	require.NoError(t, err)

	require.NoError(t, d.Write("../../escape.txt", []byte("x")))
	_, err = os.Stat(filepath.Join(root, "escape.txt"))
	require.NoError(t, err, "write must land inside the workspace")
}

func TestDirGlob(t *testing.T) {
	d, err := Open(t.TempDir())
	require.NoError(t, err)
	for _, f := range []string{"dist/b.tgz", "dist/a.tgz", "dist/readme.md"} {
		require.NoError(t, d.Write(f, []byte(f)))
	}

	got, err := d.Glob("dist/*.tgz")
	require.NoError(t, err)
	assert.Equal(t, []string{"dist/a.tgz", "dist/b.tgz"}, got)

	_, err = d.Glob("/etc/*")
	require.Error(t, err)
}

func TestOpenRejectsFiles(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(f, nil, 0o600))

	_, err := Open(f)
	require.Error(t, err)
	_, err = Open(filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
}
