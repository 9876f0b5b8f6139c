// Package metrics exposes engine observations through a dedicated
// Prometheus registry.
package metrics

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/luxfi/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// EngineMetrics collects trade, funding and claim observations plus basic
// runtime stats. It satisfies the engine's Metrics interface.
type EngineMetrics struct {
	namespace string
	registry  *prometheus.Registry
	logger    log.Logger

	tradesTotal  prometheus.CounterVec
	tradeLatency prometheus.Histogram
	claimsTotal  prometheus.CounterVec

	openInterest prometheus.GaugeVec
	impactPool   prometheus.GaugeVec

	memoryUsage prometheus.Gauge
	goroutines  prometheus.Gauge
}

// New creates the registry and registers all collectors.
func New(namespace string) (*EngineMetrics, error) {
	logger := log.Root().New("module", "metrics")
	registry := prometheus.NewRegistry()

	m := &EngineMetrics{
		namespace: namespace,
		registry:  registry,
		logger:    logger,

		tradesTotal: *prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "trades_total",
			Help:      "Trades by kind and terminal state",
		}, []string{"kind", "state"}),

		tradeLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "trade_latency_seconds",
			Help:      "Trade execution latency in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 14),
		}),

		claimsTotal: *prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "claims_total",
			Help:      "Claims processed by kind",
		}, []string{"kind"}),

		openInterest: *prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "open_interest_usd",
			Help:      "Open interest in USD by market and side",
		}, []string{"market", "side"}),

		impactPool: *prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "position_impact_pool_tokens",
			Help:      "Position impact pool balance in index tokens",
		}, []string{"market"}),

		memoryUsage: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "memory_usage_bytes",
			Help:      "Current memory usage in bytes",
		}),

		goroutines: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "goroutines_count",
			Help:      "Current number of goroutines",
		}),
	}

	registry.MustRegister(
		m.tradesTotal,
		m.tradeLatency,
		m.claimsTotal,
		m.openInterest,
		m.impactPool,
		m.memoryUsage,
		m.goroutines,
	)
	return m, nil
}

// Registry returns the underlying registry for embedding into servers.
func (m *EngineMetrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns an HTTP handler serving the registry.
func (m *EngineMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// StartServer serves /metrics on the given port.
func (m *EngineMetrics) StartServer(port string) error {
	m.logger.Info("Starting Prometheus metrics server", "port", port)

	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	go func() {
		if err := http.ListenAndServe(":"+port, mux); err != nil {
			m.logger.Error("Metrics server failed", "error", err)
		}
	}()
	return nil
}

// ObserveTrade records one trade attempt with its latency.
func (m *EngineMetrics) ObserveTrade(kind, state string, seconds float64) {
	m.tradesTotal.WithLabelValues(kind, state).Inc()
	if seconds > 0 {
		m.tradeLatency.Observe(seconds)
	}
}

// ObserveClaim records a processed claim.
func (m *EngineMetrics) ObserveClaim(kind string) {
	m.claimsTotal.WithLabelValues(kind).Inc()
}

// SetOpenInterest updates the open interest gauge for one side.
func (m *EngineMetrics) SetOpenInterest(market, side string, usd float64) {
	m.openInterest.WithLabelValues(market, side).Set(usd)
}

// SetImpactPool updates the impact pool gauge.
func (m *EngineMetrics) SetImpactPool(market string, tokens float64) {
	m.impactPool.WithLabelValues(market).Set(tokens)
}

// CollectSystemMetrics samples runtime stats until the context is done.
func (m *EngineMetrics) CollectSystemMetrics(ctx context.Context) {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			var memStats runtime.MemStats
			runtime.ReadMemStats(&memStats)
			m.memoryUsage.Set(float64(memStats.Alloc))
			m.goroutines.Set(float64(runtime.NumGoroutine()))
		}
	}
}
