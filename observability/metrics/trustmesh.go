package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// TrustMetrics exposes the counters and gauges the core publishes about its
// own operation: vote throughput, PageRank convergence, path-cache hit rate,
// anomaly alerts, scheduler run health, and webhook delivery drops. Modelled
// directly on PotsoMetrics' sync.Once singleton and CounterVec/GaugeVec
// registration pattern. Every series is registered on first use; the vote,
// active-endorsement, path-cache and alert series have no caller in this
// module and stay at their zero value.
type TrustMetrics struct {
	votesProcessed      *prometheus.CounterVec
	endorsementsActive  prometheus.Gauge
	pagerankIterations  prometheus.Gauge
	pagerankConvergence prometheus.Gauge
	pathCacheHits       *prometheus.CounterVec
	alertsEmitted       *prometheus.CounterVec
	schedulerRuns       *prometheus.CounterVec
	schedulerDuration   *prometheus.GaugeVec
	webhookDropped      *prometheus.CounterVec
	intakeRejected      *prometheus.CounterVec
}

var (
	trustOnce     sync.Once
	trustRegistry *TrustMetrics
)

// TrustMesh returns the process-wide metrics singleton, registering it with
// the default Prometheus registry on first use.
func TrustMesh() *TrustMetrics {
	trustOnce.Do(func() {
		trustRegistry = &TrustMetrics{
			votesProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "trustmesh_votes_processed_total",
				Help: "Count of vote submissions accepted by polarity.",
			}, []string{"polarity"}),
			endorsementsActive: prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "trustmesh_endorsements_active",
				Help: "Current count of active, unexpired endorsements.",
			}),
			pagerankIterations: prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "trustmesh_authority_pagerank_iterations",
				Help: "Iteration count of the most recent PageRank recompute.",
			}),
			pagerankConvergence: prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "trustmesh_authority_pagerank_delta",
				Help: "Maximum per-node delta at the final PageRank iteration.",
			}),
			pathCacheHits: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "trustmesh_path_cache_total",
				Help: "Trust path lookups by cache outcome (hit, miss, stale).",
			}, []string{"outcome"}),
			alertsEmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "trustmesh_anomaly_alerts_total",
				Help: "Anomaly alerts emitted by type and severity.",
			}, []string{"type", "severity"}),
			schedulerRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "trustmesh_scheduler_runs_total",
				Help: "Scheduled job executions by job name and outcome.",
			}, []string{"job", "outcome"}),
			schedulerDuration: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Name: "trustmesh_scheduler_run_seconds",
				Help: "Duration in seconds of the most recent run of each job.",
			}, []string{"job"}),
			webhookDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "trustmesh_webhook_dropped_total",
				Help: "Webhook notifications dropped by reason.",
			}, []string{"reason"}),
			intakeRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "trustmesh_intake_rejected_total",
				Help: "Inbound intake requests rejected by reason (backpressure, validation).",
			}, []string{"reason"}),
		}
		prometheus.MustRegister(
			trustRegistry.votesProcessed,
			trustRegistry.endorsementsActive,
			trustRegistry.pagerankIterations,
			trustRegistry.pagerankConvergence,
			trustRegistry.pathCacheHits,
			trustRegistry.alertsEmitted,
			trustRegistry.schedulerRuns,
			trustRegistry.schedulerDuration,
			trustRegistry.webhookDropped,
			trustRegistry.intakeRejected,
		)
	})
	return trustRegistry
}

func (m *TrustMetrics) ObserveVote(polarity string) {
	if m == nil {
		return
	}
	m.votesProcessed.WithLabelValues(polarity).Inc()
}

func (m *TrustMetrics) SetEndorsementsActive(count float64) {
	if m == nil {
		return
	}
	m.endorsementsActive.Set(count)
}

func (m *TrustMetrics) ObservePageRank(iterations int, delta float64) {
	if m == nil {
		return
	}
	m.pagerankIterations.Set(float64(iterations))
	m.pagerankConvergence.Set(delta)
}

func (m *TrustMetrics) ObservePathCache(outcome string) {
	if m == nil {
		return
	}
	m.pathCacheHits.WithLabelValues(outcome).Inc()
}

func (m *TrustMetrics) ObserveAlert(alertType, severity string) {
	if m == nil {
		return
	}
	m.alertsEmitted.WithLabelValues(alertType, severity).Inc()
}

func (m *TrustMetrics) ObserveSchedulerRun(job, outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.schedulerRuns.WithLabelValues(job, outcome).Inc()
	m.schedulerDuration.WithLabelValues(job).Set(seconds)
}

func (m *TrustMetrics) IncWebhookDropped(reason string) {
	if m == nil {
		return
	}
	m.webhookDropped.WithLabelValues(reason).Inc()
}

func (m *TrustMetrics) IncIntakeRejected(reason string) {
	if m == nil {
		return
	}
	m.intakeRejected.WithLabelValues(reason).Inc()
}
