package predictionmarket

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics collects Prometheus metrics for market sessions. A nil *Metrics
// records nothing.
type Metrics struct {
	registry *prometheus.Registry

	RefreshTotal     *prometheus.CounterVec
	RefreshDuration  prometheus.Histogram
	SubmissionsTotal *prometheus.CounterVec
	StaleResults     prometheus.Counter
	SessionEpoch     prometheus.Gauge
	PoolTotal        *prometheus.GaugeVec
	SessionStatus    *prometheus.GaugeVec
}

// NewMetrics creates a metrics collector with its own registry
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		RefreshTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "prediction_market_refresh_total",
				Help: "Synchronization passes by result",
			},
			[]string{"result"},
		),
		RefreshDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "prediction_market_refresh_duration_seconds",
				Help:    "Latency of a synchronization pass",
				Buckets: prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms to ~10s
			},
		),
		SubmissionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "prediction_market_submissions_total",
				Help: "Wager submissions by side and result",
			},
			[]string{"side", "result"},
		),
		StaleResults: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "prediction_market_stale_results_total",
				Help: "Async results dropped because the session moved on",
			},
		),
		SessionEpoch: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "prediction_market_session_epoch",
				Help: "Current session epoch",
			},
		),
		PoolTotal: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "prediction_market_pool_total",
				Help: "Pool total per side in whole units from the last published snapshot",
			},
			[]string{"side"},
		),
		SessionStatus: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "prediction_market_session_status",
				Help: "1 for the current session status, 0 otherwise",
			},
			[]string{"status"},
		),
	}

	m.registry.MustRegister(
		m.RefreshTotal,
		m.RefreshDuration,
		m.SubmissionsTotal,
		m.StaleResults,
		m.SessionEpoch,
		m.PoolTotal,
		m.SessionStatus,
	)
	return m
}

// Registry returns the prometheus registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) recordRefresh(result string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.RefreshTotal.WithLabelValues(result).Inc()
	m.RefreshDuration.Observe(elapsed.Seconds())
}

func (m *Metrics) recordSubmission(side Side, result string) {
	if m == nil {
		return
	}
	m.SubmissionsTotal.WithLabelValues(side.String(), result).Inc()
}

func (m *Metrics) recordStale() {
	if m == nil {
		return
	}
	m.StaleResults.Inc()
}

func (m *Metrics) setEpoch(epoch uint64) {
	if m == nil {
		return
	}
	m.SessionEpoch.Set(float64(epoch))
}

func (m *Metrics) setStatus(status Status) {
	if m == nil {
		return
	}
	for _, s := range []Status{StatusDisconnected, StatusReady, StatusUnsupportedNetwork, StatusMarketUnavailable, StatusNoAccount} {
		v := 0.0
		if s == status {
			v = 1
		}
		m.SessionStatus.WithLabelValues(s.String()).Set(v)
	}
}

func (m *Metrics) setPool(snap *MarketSnapshot) {
	if m == nil || snap == nil {
		return
	}
	for _, side := range Sides {
		m.PoolTotal.WithLabelValues(side.String()).Set(snap.Pool[side].InexactFloat64())
	}
}
