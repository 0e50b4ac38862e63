package scheduler

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/pipelib/internal/foundation/errors"
)

func TestScheduleCron(t *testing.T) {
	t.Run("returns job id for valid cron", func(t *testing.T) {
		s, err := NewScheduler(nil)
		require.NoError(t, err)
		t.Cleanup(func() { _ = s.Stop() })

		id, err := s.ScheduleCron("nightly", "0 2 * * *", func() {})
		require.NoError(t, err)
		require.NotEmpty(t, id)
		require.NoError(t, s.Remove(id))
	})

	t.Run("rejects invalid cron", func(t *testing.T) {
		s, err := NewScheduler(nil)
		require.NoError(t, err)
		t.Cleanup(func() { _ = s.Stop() })

		_, err = s.ScheduleCron("nightly", "this is not a cron", func() {})
		require.Error(t, err)
		assert.True(t, errors.HasCategory(err, errors.CategoryConfig))
	})
}

func TestScheduleEvery(t *testing.T) {
	s, err := NewScheduler(nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Stop() })

	_, err = s.ScheduleEvery("poll", 0, func() {})
	require.Error(t, err)

	var runs atomic.Int32
	id, err := s.ScheduleEvery("poll", 20*time.Millisecond, func() { runs.Add(1) })
	require.NoError(t, err)
	s.Start()
	require.Eventually(t, func() bool { return runs.Load() >= 2 }, 2*time.Second, 5*time.Millisecond)

	next, err := s.NextRun(id)
	require.NoError(t, err)
	assert.False(t, next.IsZero())

	_, err = s.NextRun("00000000-0000-0000-0000-000000000000")
	assert.True(t, errors.HasCategory(err, errors.CategoryNotFound))
}

func TestRunFuncAppliesTimeout(t *testing.T) {
	var deadline atomic.Bool
	RunFunc(context.Background(), time.Minute, func(ctx context.Context) error {
		_, ok := ctx.Deadline()
		deadline.Store(ok)
		return nil
	})()
	assert.True(t, deadline.Load())
}

func TestConfigWatcherReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pipelib.yaml")
	require.NoError(t, os.WriteFile(path, []byte("project: {}\n"), 0o600))

	var reloads atomic.Int32
	w, err := NewConfigWatcher(path, func(context.Context) error {
		reloads.Add(1)
		return nil
	})
	require.NoError(t, err)
	w.SetDebounce(10 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx))
	t.Cleanup(func() { _ = w.Stop() })

	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.txt"), []byte("x"), 0o600))
	require.NoError(t, os.WriteFile(path, []byte("project: {name: app}\n"), 0o600))
	require.Eventually(t, func() bool { return reloads.Load() >= 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, w.Stop())
	require.NoError(t, w.Stop())
}
