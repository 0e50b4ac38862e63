package metrics

import (
	"context"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/pipelib/internal/approval"
	"git.home.luguber.info/inful/pipelib/internal/stage"
)

func TestPrometheusRecorder(t *testing.T) {
	reg := prom.NewRegistry()
	pr := NewPrometheusRecorder(reg)
	pr.ObserveStageDuration("build", 150*time.Millisecond)
	pr.ObservePipelineDuration(500 * time.Millisecond)
	pr.IncStageStatus("build", "SUCCESS")
	pr.IncPipelineResult("SUCCESS")
	pr.IncNegotiation("timeout")
	pr.ObserveApprovalWait(time.Minute)
	pr.IncPollAttempt("artifact_visible")

	mfs, err := reg.Gather()
	require.NoError(t, err)
	assert.Len(t, mfs, 7)
	assert.InDelta(t, 1, testutil.ToFloat64(pr.stageStatus.WithLabelValues("build", "SUCCESS")), 0)
}

func TestNilRecorderIsSafe(t *testing.T) {
	var pr *PrometheusRecorder
	pr.ObserveStageDuration("x", time.Second)
	pr.IncPipelineResult("FAILURE")
	pr.IncNegotiation("aborted")
}

func TestStageObserver(t *testing.T) {
	reg := prom.NewRegistry()
	pr := NewPrometheusRecorder(reg)

	r := stage.NewRegistry()
	ok := &stage.Stage{Name: "build", Kind: stage.KindBuild, Body: func(context.Context) error { return nil }}
	skipped := &stage.Stage{Name: "publish", Kind: stage.KindPublish, ShouldExecute: func() bool { return false }, Body: func(context.Context) error { return nil }}
	require.NoError(t, r.Declare(ok))
	require.NoError(t, r.Declare(skipped))

	exec := stage.NewExecutor()
	exec.Observer = StageObserver{Recorder: pr}
	_, err := (&stage.Runner{Registry: r, Executor: exec}).Run(t.Context())
	require.NoError(t, err)

	assert.InDelta(t, 1, testutil.ToFloat64(pr.stageStatus.WithLabelValues("build", "SUCCESS")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(pr.stageStatus.WithLabelValues("publish", "SKIPPED")), 0)
	assert.Equal(t, 1, testutil.CollectAndCount(pr.stageDuration))
}

func TestNegotiationObserver(t *testing.T) {
	pr := NewPrometheusRecorder(prom.NewRegistry())
	obs := NegotiationObserver{Recorder: pr}
	obs.OnNegotiated(t.Context(), approval.OutcomeAutoDeploy, 0)
	obs.OnNegotiated(t.Context(), approval.OutcomeTimeout, 29*time.Minute)

	assert.InDelta(t, 1, testutil.ToFloat64(pr.negotiations.WithLabelValues("auto_deploy")), 0)
	assert.Equal(t, 1, testutil.CollectAndCount(pr.approvalWait))
}

func TestHTTPHandlerServesRegistry(t *testing.T) {
	reg := prom.NewRegistry()
	NewPrometheusRecorder(reg).IncPipelineResult("SUCCESS")

	srv := httptest.NewServer(HTTPHandler(reg))
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "pipelib_pipeline_results_total")
}
