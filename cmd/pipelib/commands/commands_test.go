package commands

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alecthomas/kong"
	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/pipelib/internal/config"
	"git.home.luguber.info/inful/pipelib/internal/eventstore"
	"git.home.luguber.info/inful/pipelib/internal/scheduler"
)

func parse(t *testing.T, args ...string) (*kong.Context, *CLI) {
	t.Helper()
	var cli CLI
	parser, err := kong.New(&cli, kong.Vars{"version": "test"}, kong.Exit(func(int) { t.Fatal("unexpected exit") }))
	require.NoError(t, err)
	ctx, err := parser.Parse(args)
	require.NoError(t, err)
	return ctx, &cli
}

func initRepo(t *testing.T, dir string) {
	t.Helper()
	repo, err := gogit.PlainInit(dir, false)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "VERSION"), []byte("1.4.0\n"), 0o600))
	wt, err := repo.Worktree()
	require.NoError(t, err)
	_, err = wt.Add("VERSION")
	require.NoError(t, err)
	_, err = wt.Commit("initial", &gogit.CommitOptions{
		Author: &object.Signature{Name: "t", Email: "t@example.com", When: time.Now()},
	})
	require.NoError(t, err)
}

func TestParseCommands(t *testing.T) {
	ctx, cli := parse(t, "-c", "x.yaml", "run", "--release", "--prerelease", "rc", "--build-number", "42")
	assert.Equal(t, "run", ctx.Command())
	assert.Equal(t, "x.yaml", cli.Config)
	assert.True(t, cli.Run.Release)
	assert.Equal(t, "rc", cli.Run.Prerelease)
	assert.Equal(t, "42", cli.Run.BuildNumber)

	ctx, cli = parse(t, "history", "develop", "-n", "5")
	assert.Contains(t, ctx.Command(), "history")
	assert.Equal(t, "develop", cli.History.Branch)
	assert.Equal(t, 5, cli.History.Limit)

	ctx, cli = parse(t, "branch")
	assert.Equal(t, "branch", ctx.Command())
}

func TestInitWritesPipelineFile(t *testing.T) {
	dir := t.TempDir()
	ctx, cli := parse(t, "init", "-o", dir)
	require.NoError(t, ctx.Run(&Global{}, cli))

	_, err := config.Load(filepath.Join(dir, config.DefaultFile))
	require.NoError(t, err)

	ctx, cli = parse(t, "init", "-o", dir)
	require.Error(t, ctx.Run(&Global{}, cli))
}

func TestCandidatesWithExplicitBase(t *testing.T) {
	ctx, cli := parse(t, "candidates", "--base", "1.2.3", "--level", "minor")
	require.NoError(t, ctx.Run(&Global{}, cli))

	require.Error(t, printCandidates("not-a-version", "", "", time.Now()))
	require.Error(t, printCandidates("1.0.0", "huge", "", time.Now()))
	require.Error(t, printCandidates("1.0.0", "", "bad label", time.Now()))
}

func TestRunEndToEnd(t *testing.T) {
	dir := t.TempDir()
	ws := filepath.Join(dir, "ws")
	require.NoError(t, os.MkdirAll(ws, 0o750))
	initRepo(t, ws)

	cfgPath := filepath.Join(dir, "pipelib.yaml")
	doc := `
project:
  name: app
  workspace: ` + ws + `
stages:
  build:
    command: "mkdir -p dist && echo payload > dist/app.tgz"
  test:
    command: "mkdir -p build/test-results && echo '<testsuite tests=\"2\"></testsuite>' > build/test-results/unit.xml"
publish:
  root: ` + filepath.Join(dir, "artifacts") + `
events:
  path: ` + filepath.Join(dir, "events.db") + `
`
	require.NoError(t, os.WriteFile(cfgPath, []byte(doc), 0o600))

	ctx, cli := parse(t, "-c", cfgPath, "run")
	require.NoError(t, ctx.Run(&Global{}, cli))

	matches, err := filepath.Glob(filepath.Join(dir, "artifacts", "libs-snapshot-local", "app", "*", "*.tgz"))
	require.NoError(t, err)
	require.Len(t, matches, 1)

	store, err := eventstore.NewSQLiteStore(filepath.Join(dir, "events.db"))
	require.NoError(t, err)
	defer func() { _ = store.Close() }()
	runs, err := eventstore.History(t.Context(), store, "master", 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "SUCCESS", runs[0].Result)

	ctx, cli = parse(t, "-c", cfgPath, "history")
	require.NoError(t, ctx.Run(&Global{}, cli))
	ctx, cli = parse(t, "-c", cfgPath, "branch", "develop")
	require.NoError(t, ctx.Run(&Global{}, cli))
	ctx, cli = parse(t, "-c", cfgPath, "candidates", "--branch", "develop")
	require.NoError(t, ctx.Run(&Global{}, cli))
}

func TestServiceAppliesSchedule(t *testing.T) {
	dir := t.TempDir()
	initRepo(t, dir)
	cfg, err := config.Parse([]byte(`
project: {name: app, workspace: `+dir+`}
events: {disabled: true}
publish: {root: `+filepath.Join(dir, "artifacts")+`}
schedule: {cron: "0 3 * * *"}
`), config.FormatYAML)
	require.NoError(t, err)

	sched := newTestScheduler(t)
	svc := &service{parent: t.Context(), sh: newShared(), sched: sched}
	require.NoError(t, svc.apply(t.Context(), cfg))
	first := svc.jobID
	require.NotEmpty(t, first)

	cfg.Schedule = config.ScheduleConfig{Every: time.Hour, Timeout: time.Minute}
	require.NoError(t, svc.apply(t.Context(), cfg))
	assert.NotEqual(t, first, svc.jobID)

	runs, err := svc.History(t.Context(), "", 10)
	require.NoError(t, err)
	assert.Empty(t, runs)
	svc.close()
}

func TestServiceReloadRefreshesApproverTokens(t *testing.T) {
	dir := t.TempDir()
	initRepo(t, dir)
	load := func(token string) *config.Config {
		cfg, err := config.Parse([]byte(`
project: {name: app, workspace: `+dir+`}
events: {disabled: true}
publish: {root: `+filepath.Join(dir, "artifacts")+`}
release: {approvers: [alice]}
approval:
  channel: http
  tokens: {`+token+`: alice}
`), config.FormatYAML)
		require.NoError(t, err)
		return cfg
	}

	svc := &service{parent: t.Context(), sh: newShared(), sched: newTestScheduler(t)}
	require.NoError(t, svc.apply(t.Context(), load("first")))
	srv := svc.server(":0")
	t.Cleanup(svc.close)

	status := func(token string) int {
		req := httptest.NewRequest(http.MethodDelete, "/approvals/missing", nil)
		req.Header.Set("X-Approver-Token", token)
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, req)
		return rec.Code
	}
	assert.Equal(t, http.StatusForbidden, status("second"))

	require.NoError(t, svc.apply(t.Context(), load("second")))
	assert.Equal(t, http.StatusForbidden, status("first"))
	assert.Equal(t, http.StatusNotFound, status("second"))
}

func newTestScheduler(t *testing.T) *scheduler.Scheduler {
	t.Helper()
	s, err := scheduler.NewScheduler(nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Stop() })
	return s
}
