package stage

import (
	"context"
	"errors"
	"testing"

	ferrors "git.home.luguber.info/inful/pipelib/internal/foundation/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunnerSequencesAndPropagates(t *testing.T) {
	var order []string
	body := func(name string, err error) Body {
		return func(context.Context) error {
			order = append(order, name)
			return err
		}
	}

	r := NewRegistry()
	require.NoError(t, r.Declare(&Stage{Name: "checkout", Kind: KindCheckout, Body: body("checkout", nil)}))
	require.NoError(t, r.Declare(&Stage{Name: "build", Kind: KindBuild, Body: body("build", errors.New("compile error"))}))
	require.NoError(t, r.Declare(&Stage{Name: "test", Kind: KindTest, Body: body("test", nil)}))
	require.NoError(t, r.Declare(&Stage{Name: "report", ResultThreshold: ResultFailure, Body: body("report", nil)}))

	result, err := (&Runner{Registry: r, Executor: NewExecutor()}).Run(t.Context())

	assert.Equal(t, ResultFailure, result)
	require.Error(t, err)
	se, ok := AsStageError(err)
	require.True(t, ok)
	assert.Equal(t, "build", se.Stage)

	assert.Equal(t, []string{"checkout", "build", "report"}, order)
	test, _ := r.Lookup("test")
	assert.Equal(t, StatusSkipped, test.Status())
}

func TestRunnerAbortLeavesRemainingNotRun(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Declare(&Stage{Name: "release", Kind: KindRelease, Body: func(context.Context) error {
		return ferrors.AbortedError("aborted by operator").Build()
	}}))
	require.NoError(t, r.Declare(&Stage{Name: "notify", ResultThreshold: ResultNotBuilt, Body: noop}))

	result, err := (&Runner{Registry: r}).Run(t.Context())

	assert.Equal(t, ResultNotBuilt, result)
	assert.True(t, IsAbort(err))
	notify, _ := r.Lookup("notify")
	assert.Equal(t, StatusNotRun, notify.Status())
}

func TestRunnerUnifiedSetupFailure(t *testing.T) {
	r := NewRegistry()
	ran := false
	require.NoError(t, r.Declare(&Stage{Name: "build", Kind: KindBuild, Body: func(context.Context) error { ran = true; return nil }}))
	require.NoError(t, r.Declare(&Stage{Name: "publish", Kind: KindPublish, SetupErr: errors.New("no targets")}))
	require.NoError(t, r.Declare(&Stage{Name: "release", Kind: KindRelease, SetupErr: errors.New("no approvers")}))

	result, err := (&Runner{Registry: r}).Run(t.Context())

	assert.True(t, ran, "stages before the failing one still run")
	assert.Equal(t, ResultFailure, result)
	require.Error(t, err)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryConfig))
	assert.Contains(t, err.Error(), `"publish"`)

	release, _ := r.Lookup("release")
	assert.Equal(t, StatusSkipped, release.Status())
}

func TestRunnerIgnoresSetupFailureOfSkippedStage(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Declare(&Stage{Name: "build", Kind: KindBuild, Body: noop}))
	require.NoError(t, r.Declare(&Stage{
		Name:          "release",
		Kind:          KindRelease,
		SetupErr:      errors.New("unknown level"),
		ShouldExecute: func() bool { return false },
	}))

	result, err := (&Runner{Registry: r}).Run(t.Context())

	require.NoError(t, err)
	assert.Equal(t, ResultSuccess, result)
	release, _ := r.Lookup("release")
	assert.Equal(t, StatusSkipped, release.Status())
	name, setupErr := r.FirstFailing()
	assert.Equal(t, "release", name)
	assert.Error(t, setupErr)
}

func TestRunnerCISkipHidesSetupFailure(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Declare(&Stage{Name: "checkout", Kind: KindCheckout, Body: noop}))
	require.NoError(t, r.Declare(&Stage{Name: "publish", Kind: KindPublish, SetupErr: errors.New("no repository")}))
	e := NewExecutor()
	e.SkipMarker = func() bool { return true }

	result, err := (&Runner{Registry: r, Executor: e}).Run(t.Context())

	require.NoError(t, err)
	assert.Equal(t, ResultSuccess, result)
}

func TestRunnerCanceledContext(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Declare(&Stage{Name: "build", Body: noop}))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := (&Runner{Registry: r}).Run(ctx)

	assert.Equal(t, ResultNotBuilt, result)
	assert.True(t, IsAbort(err))
}
