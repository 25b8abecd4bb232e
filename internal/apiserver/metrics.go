package apiserver

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/matopiba/forecast-pipeline/internal/cache"
)

// collector exposes the latest published snapshot's shape as Prometheus
// gauges, read fresh from the hot cache on every scrape rather than
// pushed from the orchestrator.
type collector struct {
	cache *cache.Gateway

	cacheUp          *prometheus.Desc
	citiesSucceeded  *prometheus.Desc
	citiesAttempted  *prometheus.Desc
	successRate      *prometheus.Desc
	validationR2     *prometheus.Desc
	validationRMSE   *prometheus.Desc
}

func newCollector(cacheGateway *cache.Gateway) *collector {
	return &collector{
		cache: cacheGateway,
		cacheUp: prometheus.NewDesc(
			"matopiba_cache_up", "1 if the hot cache holds a non-expired snapshot.", nil, nil),
		citiesSucceeded: prometheus.NewDesc(
			"matopiba_cities_succeeded", "Cities with a computed forecast in the latest run.", nil, nil),
		citiesAttempted: prometheus.NewDesc(
			"matopiba_cities_attempted", "Cities attempted in the latest run.", nil, nil),
		successRate: prometheus.NewDesc(
			"matopiba_success_rate", "Fraction of attempted cities that succeeded in the latest run.", nil, nil),
		validationR2: prometheus.NewDesc(
			"matopiba_validation_r2", "R-squared of model vs provider ETo in the latest run.", nil, nil),
		validationRMSE: prometheus.NewDesc(
			"matopiba_validation_rmse_mm_day", "RMSE (mm/day) of model vs provider ETo in the latest run.", nil, nil),
	}
}

func (c *collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.cacheUp
	ch <- c.citiesSucceeded
	ch <- c.citiesAttempted
	ch <- c.successRate
	ch <- c.validationR2
	ch <- c.validationRMSE
}

// RunMetrics holds the counters and histogram updated after each run
// (by the daemon's wrapper around the orchestrator), since run outcomes
// are events, not state the cache can be polled for.
type RunMetrics struct {
	runTotal    *prometheus.CounterVec
	runDuration prometheus.Histogram
}

// NewRunMetrics builds and registers the per-run counters on reg.
func NewRunMetrics(reg prometheus.Registerer) *RunMetrics {
	m := &RunMetrics{
		runTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "matopiba_run_total",
			Help: "Completed orchestration runs by outcome.",
		}, []string{"outcome"}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "matopiba_run_duration_seconds",
			Help:    "Wall-clock duration of each orchestration run.",
			Buckets: prometheus.DefBuckets,
		}),
	}
	reg.MustRegister(m.runTotal, m.runDuration)
	return m
}

// Observe records one run's outcome and duration.
func (m *RunMetrics) Observe(outcome string, durationS float64) {
	m.runTotal.WithLabelValues(outcome).Inc()
	m.runDuration.Observe(durationS)
}

func (c *collector) Collect(ch chan<- prometheus.Metric) {
	meta, err := c.cache.GetMetadata()
	if err != nil {
		ch <- prometheus.MustNewConstMetric(c.cacheUp, prometheus.GaugeValue, 0)
		return
	}
	ch <- prometheus.MustNewConstMetric(c.cacheUp, prometheus.GaugeValue, 1)
	ch <- prometheus.MustNewConstMetric(c.citiesSucceeded, prometheus.GaugeValue, float64(meta.NCitiesSucceeded))
	ch <- prometheus.MustNewConstMetric(c.citiesAttempted, prometheus.GaugeValue, float64(meta.NCitiesAttempted))
	ch <- prometheus.MustNewConstMetric(c.successRate, prometheus.GaugeValue, meta.SuccessRate)

	snap, err := c.cache.GetSnapshot()
	if err != nil {
		return
	}
	ch <- prometheus.MustNewConstMetric(c.validationR2, prometheus.GaugeValue, snap.Validation.R2)
	ch <- prometheus.MustNewConstMetric(c.validationRMSE, prometheus.GaugeValue, snap.Validation.RMSEMMDay)
}
