package shell

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/pipelib/internal/foundation/errors"
)

func TestRunCapturesOutput(t *testing.T) {
	r := New(t.TempDir(), "GREETING=hi")

	res, err := r.Run(t.Context(), `echo "$GREETING"; echo oops >&2`)
	require.NoError(t, err)
	assert.Equal(t, "hi\n", res.Stdout)
	assert.Equal(t, "oops\n", res.Stderr)
	assert.Equal(t, 0, res.ExitCode)
}

func TestRunNonZeroExit(t *testing.T) {
	r := New(t.TempDir())

	res, err := r.Run(t.Context(), "exit 3")
	require.Error(t, err)
	assert.Equal(t, 3, res.ExitCode)
	assert.True(t, errors.HasCategory(err, errors.CategoryShell))
}

func TestRunUsesWorkingDirectory(t *testing.T) {
	dir := t.TempDir()
	res, err := New(dir).Run(t.Context(), "pwd")
	require.NoError(t, err)
	assert.Equal(t, filepath.Base(dir), filepath.Base(strings.TrimSpace(res.Stdout)))
}

func TestRunHonorsContextDeadline(t *testing.T) {
	ctx, cancel := context.WithTimeout(t.Context(), 50*time.Millisecond)
	defer cancel()

	_, err := New(t.TempDir()).Run(ctx, "sleep 5")
	require.Error(t, err)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}
