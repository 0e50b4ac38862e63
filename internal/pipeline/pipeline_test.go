package pipeline

import (
	"context"
	stderrors "errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/pipelib/internal/approval"
	"git.home.luguber.info/inful/pipelib/internal/branch"
	"git.home.luguber.info/inful/pipelib/internal/ci"
	"git.home.luguber.info/inful/pipelib/internal/eventstore"
	"git.home.luguber.info/inful/pipelib/internal/flavor"
	"git.home.luguber.info/inful/pipelib/internal/foundation/errors"
	"git.home.luguber.info/inful/pipelib/internal/retry"
	"git.home.luguber.info/inful/pipelib/internal/stage"
	"git.home.luguber.info/inful/pipelib/internal/storage"
	"git.home.luguber.info/inful/pipelib/internal/workspace"
)

const (
	passingReport = `<testsuite name="unit"><testcase name="a"/><testcase name="b"/></testsuite>`
	failingReport = `<testsuite name="unit"><testcase name="a"><failure/></testcase></testsuite>`
)

var t0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

type fakeSCM struct {
	branch  string
	message string
	tags    map[string]bool
	commits []string
	pushes  int
}

func (f *fakeSCM) CurrentBranch(context.Context) (string, error)     { return f.branch, nil }
func (f *fakeSCM) LastCommitMessage(context.Context) (string, error) { return f.message, nil }
func (f *fakeSCM) TagExists(_ context.Context, tag string) (bool, error) {
	return f.tags[tag], nil
}

func (f *fakeSCM) CreateTag(_ context.Context, tag, _ string) error {
	f.tags[tag] = true
	return nil
}

func (f *fakeSCM) Commit(_ context.Context, message string, _ ...string) error {
	f.commits = append(f.commits, message)
	return nil
}

func (f *fakeSCM) Push(context.Context) error {
	f.pushes++
	return nil
}

type fakeShell struct {
	ws       *workspace.Dir
	report   string
	testErr  error
	commands []string
}

func (f *fakeShell) Run(_ context.Context, cmd string) (ci.ShellResult, error) {
	f.commands = append(f.commands, cmd)
	switch cmd {
	case "make build":
		return ci.ShellResult{}, f.ws.Write("dist/app-1.2.3.tgz", []byte("tarball"))
	case "make test":
		if f.report != "" {
			if err := f.ws.Write("build/test-results/unit.xml", []byte(f.report)); err != nil {
				return ci.ShellResult{}, err
			}
		}
		return ci.ShellResult{ExitCode: 1}, f.testErr
	}
	return ci.ShellResult{}, nil
}

type fakeInput struct {
	choice  ci.Choice
	err     error
	calls   int
	request ci.InputRequest
	timeout time.Duration
}

func (f *fakeInput) RequestChoice(_ context.Context, req ci.InputRequest, timeout time.Duration) (ci.Choice, error) {
	f.calls++
	f.request = req
	f.timeout = timeout
	return f.choice, f.err
}

type fakeNotifier struct {
	mu   sync.Mutex
	msgs []ci.Message
}

func (f *fakeNotifier) Notify(_ context.Context, msg ci.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = append(f.msgs, msg)
	return nil
}

type harness struct {
	ws       *workspace.Dir
	scm      *fakeSCM
	shell    *fakeShell
	input    *fakeInput
	notifier *fakeNotifier
	repo     *storage.MockRepository
	events   eventstore.Store
	resolver *branch.Resolver
}

func newHarness(t *testing.T, branchName, message string) *harness {
	t.Helper()
	ws, err := workspace.Open(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, ws.Write("VERSION", []byte("1.2.3\n")))
	resolver, err := branch.NewDefaultResolver()
	require.NoError(t, err)
	return &harness{
		ws:       ws,
		scm:      &fakeSCM{branch: branchName, message: message, tags: map[string]bool{}},
		shell:    &fakeShell{ws: ws, report: passingReport},
		input:    &fakeInput{},
		notifier: &fakeNotifier{},
		repo:     storage.NewMockRepository(),
		resolver: resolver,
	}
}

func (h *harness) pipeline(t *testing.T, params Params) *Pipeline {
	t.Helper()
	p := New(Options{
		Flavor:     flavor.Generic(""),
		Resolver:   h.resolver,
		Package:    "app",
		Recipients: []string{"team@example.com"},
	}, Deps{
		Shell:     h.shell,
		Files:     h.ws,
		SCM:       h.scm,
		Artifacts: h.repo,
		Input:     h.input,
		Notifier:  h.notifier,
		Events:    h.events,
		Clock:     clockwork.NewFakeClockAt(t0),
	}, params)
	p.Negotiator().PreWait = 0
	return p
}

func declareAll(t *testing.T, p *Pipeline) {
	t.Helper()
	require.NoError(t, p.DeclareBuildStage(BuildArgs{}))
	require.NoError(t, p.DeclareTestStage(TestArgs{}))
	require.NoError(t, p.DeclarePublishStage(PublishArgs{
		Repository: "libs-snapshot-local",
		Poll:       retry.NewPolicy(retry.ModeFixed, time.Millisecond, time.Millisecond, 3),
	}))
	require.NoError(t, p.DeclareReleaseStage(ReleaseArgs{
		Repository: "libs-release-local",
		Approvers:  []string{"alice"},
	}))
}

func statuses(p *Pipeline) map[string]stage.Status {
	out := map[string]stage.Status{}
	for _, s := range p.Stages() {
		out[s.Name] = s.Status()
	}
	return out
}

func TestSnapshotBuildOnDevelop(t *testing.T) {
	h := newHarness(t, "develop", "add feature")
	p := h.pipeline(t, Params{})
	declareAll(t, p)

	result, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, stage.ResultSuccess, result)
	assert.Equal(t, map[string]stage.Status{
		"Checkout": stage.StatusSuccess,
		"Build":    stage.StatusSuccess,
		"Test":     stage.StatusSuccess,
		"Publish":  stage.StatusSuccess,
		"Release":  stage.StatusSkipped,
	}, statuses(p))

	assert.Equal(t, []string{
		"libs-snapshot-local/app/1.2.3-develop.20240101.000000/app-1.2.3-develop.20240101.000000.tgz",
	}, h.repo.Targets())
	assert.Equal(t, 0, h.input.calls)
	assert.Empty(t, h.scm.tags)
	assert.Equal(t, "develop", p.Context().Match.Tag)
}

func TestFormalReleaseOnMaster(t *testing.T) {
	h := newHarness(t, "master", "merge release branch")
	h.input.choice = ci.Choice{Option: "2.0.0", Approver: "alice"}
	p := h.pipeline(t, Params{PerformRelease: true})
	declareAll(t, p)

	result, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, stage.ResultSuccess, result)
	assert.Equal(t, stage.StatusSuccess, statuses(p)["Release"])

	assert.Equal(t, 1, h.input.calls)
	assert.Equal(t, []string{"1.2.3", "2.0.0", "1.3.0", "1.2.4"}, h.input.request.Options)
	assert.Equal(t, 29*time.Minute, h.input.timeout)

	pc := p.Context()
	require.NotNil(t, pc.Decision)
	assert.Equal(t, "alice", pc.Decision.Approver)
	assert.Equal(t, "v2.0.0", pc.ReleaseTag)
	assert.True(t, h.scm.tags["v2.0.0"])
	assert.Equal(t, []string{"libs-release-local/app/2.0.0/app-2.0.0.tgz"}, pc.ReleasedTargets)
	assert.Contains(t, h.repo.Targets(), "libs-release-local/app/2.0.0/app-2.0.0.tgz")

	assert.Equal(t, "2.0.1", pc.NextDevVersion)
	raw, err := h.ws.Read("VERSION")
	require.NoError(t, err)
	assert.Equal(t, "2.0.1\n", string(raw))
	assert.Equal(t, []string{"Prepare next development version 2.0.1"}, h.scm.commits)
	assert.Equal(t, 2, h.scm.pushes)

	subjects := make([]string, 0, len(h.notifier.msgs))
	for _, m := range h.notifier.msgs {
		subjects = append(subjects, m.Subject)
	}
	assert.Equal(t, []string{
		"[app] release approval needed",
		"[app] released 2.0.0",
		"[app] master SUCCESS",
	}, subjects)
}

func TestAutoDeployPrereleaseOnDevelop(t *testing.T) {
	h := newHarness(t, "develop", "bump deps")
	p := h.pipeline(t, Params{PerformRelease: true})
	declareAll(t, p)

	result, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, stage.ResultSuccess, result)

	pc := p.Context()
	require.NotNil(t, pc.Decision)
	assert.Equal(t, approval.AutoApproved, pc.Decision.Approver)
	assert.Equal(t, "1.2.3-beta.202401010000", pc.Decision.Version())
	assert.Equal(t, 0, h.input.calls)
	assert.Empty(t, h.scm.commits, "prereleases do not bump the development version")
	assert.Equal(t, []string{"libs-release-local/app/1.2.3-beta.202401010000/app-1.2.3-beta.202401010000.tgz"}, pc.ReleasedTargets)
}

func TestReleaseOnUnprotectedBranchFailsCheckout(t *testing.T) {
	h := newHarness(t, "feature/login", "wip")
	p := h.pipeline(t, Params{PerformRelease: true})
	declareAll(t, p)

	result, err := p.Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, stage.ResultFailure, result)
	assert.True(t, errors.HasCategory(err, errors.CategoryConfig))
	assert.Equal(t, map[string]stage.Status{
		"Checkout": stage.StatusFail,
		"Build":    stage.StatusSkipped,
		"Test":     stage.StatusSkipped,
		"Publish":  stage.StatusSkipped,
		"Release":  stage.StatusSkipped,
	}, statuses(p))
	assert.Empty(t, h.shell.commands)
	assert.Equal(t, "feature-login", p.Context().Match.Tag)
}

func TestCISkipMarker(t *testing.T) {
	h := newHarness(t, "master", "Update README [skip ci]")
	p := h.pipeline(t, Params{PerformRelease: true})
	declareAll(t, p)

	result, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, stage.ResultSuccess, result)
	assert.True(t, p.Context().CISkip)
	for _, s := range p.Stages()[1:] {
		assert.Equal(t, stage.StatusSkipped, s.Status(), s.Name)
		assert.Equal(t, stage.SkipReasonCISkip, s.SkipReason(), s.Name)
	}
	assert.Empty(t, h.shell.commands)
}

func TestHasSkipMarker(t *testing.T) {
	assert.True(t, HasSkipMarker("fix typo [CI SKIP]"))
	assert.True(t, HasSkipMarker("[skip ci] docs"))
	assert.False(t, HasSkipMarker("skip the ci for now"))
}

func TestTestFailuresMakeRunUnstable(t *testing.T) {
	h := newHarness(t, "develop", "refactor")
	h.shell.report = failingReport
	h.shell.testErr = stderrors.New("exit status 1")
	p := h.pipeline(t, Params{})
	declareAll(t, p)

	result, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, stage.ResultUnstable, result)
	st := statuses(p)
	assert.Equal(t, stage.StatusUnstable, st["Test"])
	assert.Equal(t, stage.StatusSkipped, st["Publish"], "publish threshold is SUCCESS")
	publishStage, _ := p.registry.Lookup("Publish")
	assert.Equal(t, stage.SkipReasonThreshold, publishStage.SkipReason())
}

func TestFailingTestCommandWithPassingReports(t *testing.T) {
	h := newHarness(t, "develop", "refactor")
	h.shell.testErr = stderrors.New("exit status 1")
	p := h.pipeline(t, Params{})
	declareAll(t, p)

	result, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, stage.ResultSuccess, result)
}

func TestMissingReportsFailTest(t *testing.T) {
	h := newHarness(t, "develop", "refactor")
	h.shell.report = ""
	p := h.pipeline(t, Params{})
	declareAll(t, p)

	result, err := p.Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, stage.ResultFailure, result)
	se, ok := stage.AsStageError(err)
	require.True(t, ok)
	assert.Equal(t, stage.KindTest, se.Kind)
	assert.Equal(t, stage.StatusFail, statuses(p)["Test"])
}

func TestApprovalAbortStopsRun(t *testing.T) {
	h := newHarness(t, "master", "release")
	h.input.err = ci.ErrInputInterrupted
	p := h.pipeline(t, Params{PerformRelease: true})
	declareAll(t, p)
	require.NoError(t, p.DeclareStage(StageArgs{Name: "Deploy", Command: "./deploy.sh"}))

	result, err := p.Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, stage.ResultNotBuilt, result)
	assert.True(t, stage.IsAbort(err))
	assert.ErrorIs(t, err, approval.ErrAborted)
	st := statuses(p)
	assert.Equal(t, stage.StatusFail, st["Release"])
	assert.Equal(t, stage.StatusNotRun, st["Deploy"])
	assert.Empty(t, h.scm.tags)
}

func TestExistingTagFailsRelease(t *testing.T) {
	h := newHarness(t, "master", "release")
	h.scm.tags["v1.2.3"] = true
	h.input.choice = ci.Choice{Option: "1.2.3", Approver: "alice"}
	p := h.pipeline(t, Params{PerformRelease: true})
	declareAll(t, p)

	result, err := p.Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, stage.ResultFailure, result)
	assert.True(t, errors.HasCategory(err, errors.CategorySCM))
	se, ok := stage.AsStageError(err)
	require.True(t, ok)
	assert.Equal(t, stage.KindRelease, se.Kind)
}

func TestDeclarationErrors(t *testing.T) {
	h := newHarness(t, "develop", "x")
	p := h.pipeline(t, Params{})
	require.NoError(t, p.DeclareBuildStage(BuildArgs{}))

	var dup *stage.DuplicateStageError
	require.ErrorAs(t, p.DeclareBuildStage(BuildArgs{Name: "Build again"}), &dup)

	// Validation failures are deferred until the stage is reached.
	require.NoError(t, p.DeclarePublishStage(PublishArgs{}))
	require.NoError(t, p.DeclareStage(StageArgs{Name: "Lint", Command: "make lint"}))

	result, err := p.Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, stage.ResultFailure, result)
	assert.True(t, errors.HasCategory(err, errors.CategoryConfig))
	st := statuses(p)
	assert.Equal(t, stage.StatusSuccess, st["Build"])
	assert.Equal(t, stage.StatusFail, st["Publish"])
	name, setupErr := p.registry.FirstFailing()
	assert.Equal(t, "Publish", name)
	assert.Error(t, setupErr)
}

func TestSetupErrorOfSkippedReleaseIsNotReported(t *testing.T) {
	h := newHarness(t, "develop", "add feature")
	p := h.pipeline(t, Params{})
	require.NoError(t, p.DeclareBuildStage(BuildArgs{}))
	require.NoError(t, p.DeclareReleaseStage(ReleaseArgs{Level: "huge"}))

	result, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, stage.ResultSuccess, result)
	release, _ := p.registry.Lookup("Release")
	assert.Equal(t, stage.StatusSkipped, release.Status())
	assert.Equal(t, stage.SkipReasonPredicate, release.SkipReason())
}

func TestSetupErrorOfReachedReleaseFailsRun(t *testing.T) {
	h := newHarness(t, "develop", "add feature")
	p := h.pipeline(t, Params{PerformRelease: true})
	require.NoError(t, p.DeclareBuildStage(BuildArgs{}))
	require.NoError(t, p.DeclareReleaseStage(ReleaseArgs{Level: "huge"}))

	result, err := p.Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, stage.ResultFailure, result)
	assert.True(t, errors.HasCategory(err, errors.CategoryConfig))
	assert.Equal(t, stage.StatusFail, statuses(p)["Release"])
	assert.Equal(t, 0, h.input.calls)
}

func TestCISkipWithSetupError(t *testing.T) {
	h := newHarness(t, "master", "docs [skip ci]")
	p := h.pipeline(t, Params{})
	require.NoError(t, p.DeclareBuildStage(BuildArgs{}))
	require.NoError(t, p.DeclarePublishStage(PublishArgs{}))

	result, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, stage.ResultSuccess, result)
	assert.Equal(t, stage.StatusSkipped, statuses(p)["Publish"])
	name, setupErr := p.registry.FirstFailing()
	assert.Equal(t, "Publish", name)
	assert.Error(t, setupErr)
}

func TestReleaseRequiresProtectedBranch(t *testing.T) {
	hotfix := branch.Policy{Pattern: "hotfix/.*", AllowRelease: true, AllowFormalRelease: true, ReleaseTag: "hotfix"}

	tests := []struct {
		name      string
		protected bool
		wantErr   bool
	}{
		{name: "unprotected", protected: false, wantErr: true},
		{name: "protected", protected: true, wantErr: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, "hotfix/login", "fix login")
			h.input.choice = ci.Choice{Option: "1.2.4", Approver: "alice"}
			policy := hotfix
			policy.Protected = tt.protected
			var err error
			h.resolver, err = branch.NewDefaultResolver(policy)
			require.NoError(t, err)

			p := h.pipeline(t, Params{PerformRelease: true})
			declareAll(t, p)

			result, err := p.Run(context.Background())
			if !tt.wantErr {
				require.NoError(t, err)
				assert.Equal(t, stage.ResultSuccess, result)
				assert.True(t, h.scm.tags["v1.2.4"])
				return
			}
			require.Error(t, err)
			assert.True(t, errors.HasCategory(err, errors.CategoryConfig))
			assert.False(t, p.Context().ReleasePermitted())
			assert.Equal(t, stage.StatusFail, statuses(p)["Checkout"])
			assert.Equal(t, stage.StatusSkipped, statuses(p)["Release"])
			assert.Empty(t, h.scm.tags)
			assert.Empty(t, h.repo.Targets())
		})
	}
}

func TestInvalidPrereleaseFailsCheckout(t *testing.T) {
	h := newHarness(t, "develop", "x")
	p := h.pipeline(t, Params{PerformRelease: true, Prerelease: "rc 1"})
	declareAll(t, p)

	_, err := p.Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryValidation))
	assert.Equal(t, stage.StatusFail, statuses(p)["Checkout"])
}

func TestHistoryIsRecordedAndPruned(t *testing.T) {
	store, err := eventstore.NewSQLiteStore(filepath.Join(t.TempDir(), "events.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	for i := 0; i < 3; i++ {
		h := newHarness(t, "develop", "change")
		h.events = store
		policies := branch.DefaultPolicies()
		for j := range policies {
			if policies[j].Pattern == "develop" {
				policies[j].BuildHistory = 2
			}
		}
		h.resolver, err = branch.NewResolver(policies...)
		require.NoError(t, err)

		p := h.pipeline(t, Params{})
		declareAll(t, p)
		_, err = p.Run(context.Background())
		require.NoError(t, err)
	}

	runs, err := eventstore.History(context.Background(), store, "develop", 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "SUCCESS", runs[0].Result)
	assert.Equal(t, "app", runs[0].Package)
	assert.Len(t, runs[0].Stages, 5)
}
