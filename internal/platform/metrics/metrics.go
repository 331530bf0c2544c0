package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors of the proving and submission pipeline.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	ProvingDuration    *prometheus.HistogramVec
	StageFailures      *prometheus.CounterVec
	ChainQueries       *prometheus.CounterVec
	NullifierChecks    *prometheus.CounterVec
	Submissions        *prometheus.CounterVec
	VKFetches          *prometheus.CounterVec
	HistoryEnrichments *prometheus.CounterVec
}

// New registers all collectors on reg. Pass prometheus.DefaultRegisterer in
// production and a fresh registry in tests.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		ProvingDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "starkshield_proving_duration_seconds",
			Help:    "Time spent in the proving backend, labeled by predicate",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 40, 80},
		}, []string{"predicate"}),
		StageFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "starkshield_stage_failures_total",
			Help: "Lifecycle failures, labeled by the stage that failed",
		}, []string{"stage"}),
		ChainQueries: f.NewCounterVec(prometheus.CounterOpts{
			Name: "starkshield_chain_queries_total",
			Help: "Registry RPC calls, labeled by method and outcome",
		}, []string{"method", "outcome"}),
		NullifierChecks: f.NewCounterVec(prometheus.CounterOpts{
			Name: "starkshield_nullifier_checks_total",
			Help: "Nullifier reuse checks, labeled by phase and status",
		}, []string{"phase", "status"}),
		Submissions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "starkshield_submissions_total",
			Help: "Registry submissions, labeled by outcome",
		}, []string{"outcome"}),
		VKFetches: f.NewCounterVec(prometheus.CounterOpts{
			Name: "starkshield_vk_fetches_total",
			Help: "Verifying key loads, labeled by outcome (hit, loaded, failed)",
		}, []string{"outcome"}),
		HistoryEnrichments: f.NewCounterVec(prometheus.CounterOpts{
			Name: "starkshield_history_enrichments_total",
			Help: "History entries refreshed from chain, labeled by result",
		}, []string{"result"}),
	}
}

func (m *Metrics) ObserveProving(predicate string, d time.Duration) {
	if m == nil {
		return
	}
	m.ProvingDuration.WithLabelValues(predicate).Observe(d.Seconds())
}

func (m *Metrics) IncStageFailure(stage string) {
	if m == nil {
		return
	}
	m.StageFailures.WithLabelValues(stage).Inc()
}

func (m *Metrics) IncChainQuery(method, outcome string) {
	if m == nil {
		return
	}
	m.ChainQueries.WithLabelValues(method, outcome).Inc()
}

func (m *Metrics) IncNullifierCheck(phase, status string) {
	if m == nil {
		return
	}
	m.NullifierChecks.WithLabelValues(phase, status).Inc()
}

func (m *Metrics) IncSubmission(outcome string) {
	if m == nil {
		return
	}
	m.Submissions.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncVKFetch(outcome string) {
	if m == nil {
		return
	}
	m.VKFetches.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncHistoryEnrichment(result string) {
	if m == nil {
		return
	}
	m.HistoryEnrichments.WithLabelValues(result).Inc()
}
