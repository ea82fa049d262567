package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles the pipeline's Prometheus collectors. Constructed once at
// process start and passed by reference; there is no package-level registry.
type Metrics struct {
	registry *prometheus.Registry

	convictionEvals  *prometheus.CounterVec
	convictionScores *prometheus.HistogramVec
	plansGenerated   *prometheus.CounterVec
	gateVetoes       *prometheus.CounterVec
	slippageBps      prometheus.Histogram
}

// New creates and registers the collector set on a fresh registry.
func New() *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.convictionEvals = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "edgecore_conviction_evaluations_total",
		Help: "Conviction evaluations by symbol and resulting bias.",
	}, []string{"symbol", "bias"})

	m.convictionScores = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "edgecore_conviction_score",
		Help:    "Distribution of conviction scores.",
		Buckets: prometheus.LinearBuckets(0, 10, 11),
	}, []string{"symbol"})

	m.plansGenerated = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "edgecore_execution_plans_total",
		Help: "Execution plans generated by strategy.",
	}, []string{"strategy"})

	m.gateVetoes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "edgecore_adverse_gate_vetoes_total",
		Help: "Adverse-selection gate failures by failing check.",
	}, []string{"check"})

	m.slippageBps = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "edgecore_plan_slippage_bps",
		Help:    "Modeled slippage of generated plans in basis points.",
		Buckets: prometheus.ExponentialBuckets(0.5, 2, 12),
	})

	m.registry.MustRegister(
		m.convictionEvals,
		m.convictionScores,
		m.plansGenerated,
		m.gateVetoes,
		m.slippageBps,
	)
	return m
}

// Registry exposes the registry for the /metrics handler.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// ObserveConviction records one conviction evaluation.
func (m *Metrics) ObserveConviction(symbol, bias string, score float64) {
	m.convictionEvals.WithLabelValues(symbol, bias).Inc()
	m.convictionScores.WithLabelValues(symbol).Observe(score)
}

// ObservePlan records one generated execution plan.
func (m *Metrics) ObservePlan(strategy string, slippageBps float64) {
	m.plansGenerated.WithLabelValues(strategy).Inc()
	m.slippageBps.Observe(slippageBps)
}

// ObserveGateVeto records an adverse-selection gate failure.
func (m *Metrics) ObserveGateVeto(check string) {
	m.gateVetoes.WithLabelValues(check).Inc()
}
