package metrics

import (
	"sync"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

const namespace = "pipelib"

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	once             sync.Once
	stageDuration    *prom.HistogramVec
	pipelineDuration prom.Histogram
	stageStatus      *prom.CounterVec
	pipelineResult   *prom.CounterVec
	negotiations     *prom.CounterVec
	approvalWait     prom.Histogram
	pollAttempts     *prom.CounterVec
}

// NewPrometheusRecorder constructs and registers Prometheus metrics (idempotent).
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{}
	pr.once.Do(func() {
		pr.stageDuration = prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Duration of individual pipeline stages",
			Buckets:   prom.ExponentialBuckets(0.5, 2, 12),
		}, []string{"stage"})
		pr.pipelineDuration = prom.NewHistogram(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "pipeline_duration_seconds",
			Help:      "Total pipeline run duration",
			Buckets:   prom.ExponentialBuckets(1, 2, 14),
		})
		pr.stageStatus = prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "stage_status_total",
			Help:      "Final stage statuses",
		}, []string{"stage", "status"})
		pr.pipelineResult = prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "pipeline_results_total",
			Help:      "Pipeline runs by final result",
		}, []string{"result"})
		pr.negotiations = prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "version_negotiations_total",
			Help:      "Release version negotiations by outcome",
		}, []string{"outcome"})
		pr.approvalWait = prom.NewHistogram(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "approval_wait_seconds",
			Help:      "Time spent waiting for a human version choice",
			Buckets:   prom.ExponentialBuckets(1, 2, 14),
		})
		pr.pollAttempts = prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "poll_attempts_total",
			Help:      "Fixed-interval poll attempts by operation",
		}, []string{"operation"})
		reg.MustRegister(pr.stageDuration, pr.pipelineDuration, pr.stageStatus, pr.pipelineResult,
			pr.negotiations, pr.approvalWait, pr.pollAttempts)
	})
	return pr
}

func (p *PrometheusRecorder) ObserveStageDuration(stage string, d time.Duration) {
	if p == nil || p.stageDuration == nil {
		return
	}
	p.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

func (p *PrometheusRecorder) ObservePipelineDuration(d time.Duration) {
	if p == nil || p.pipelineDuration == nil {
		return
	}
	p.pipelineDuration.Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncStageStatus(stage, status string) {
	if p == nil || p.stageStatus == nil {
		return
	}
	p.stageStatus.WithLabelValues(stage, status).Inc()
}

func (p *PrometheusRecorder) IncPipelineResult(result string) {
	if p == nil || p.pipelineResult == nil {
		return
	}
	p.pipelineResult.WithLabelValues(result).Inc()
}

func (p *PrometheusRecorder) IncNegotiation(outcome string) {
	if p == nil || p.negotiations == nil {
		return
	}
	p.negotiations.WithLabelValues(outcome).Inc()
}

func (p *PrometheusRecorder) ObserveApprovalWait(d time.Duration) {
	if p == nil || p.approvalWait == nil {
		return
	}
	p.approvalWait.Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncPollAttempt(operation string) {
	if p == nil || p.pollAttempts == nil {
		return
	}
	p.pollAttempts.WithLabelValues(operation).Inc()
}
