package observability

import (
	"fmt"
	"math"
	"math/big"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type moduleMetrics struct {
	requests  *prometheus.CounterVec
	errors    *prometheus.CounterVec
	latency   *prometheus.HistogramVec
	throttles *prometheus.CounterVec
}

type registryMetrics struct {
	transactions *prometheus.CounterVec
	rejected     *prometheus.CounterVec
	applyLatency prometheus.Histogram
	escrowed     *prometheus.GaugeVec
	events       *prometheus.CounterVec
	archiveFails prometheus.Counter
	subscribers  prometheus.Gauge
}

var (
	moduleMetricsOnce sync.Once
	moduleRegistry    *moduleMetrics

	registryMetricsOnce sync.Once
	registryRegistry    *registryMetrics
)

// ModuleMetrics returns the lazily-initialised module metrics registry used to
// record RPC module activity.
func ModuleMetrics() *moduleMetrics {
	moduleMetricsOnce.Do(func() {
		moduleRegistry = &moduleMetrics{
			requests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "pettrace",
				Subsystem: "rpc",
				Name:      "requests_total",
				Help:      "Total JSON-RPC requests segmented by module and method.",
			}, []string{"module", "method", "outcome"}),
			errors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "pettrace",
				Subsystem: "rpc",
				Name:      "errors_total",
				Help:      "Total JSON-RPC errors segmented by module, method, and status code.",
			}, []string{"module", "method", "status"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "pettrace",
				Subsystem: "rpc",
				Name:      "request_duration_seconds",
				Help:      "Latency distribution for JSON-RPC handlers.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"module", "method"}),
			throttles: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "pettrace",
				Subsystem: "rpc",
				Name:      "throttles_total",
				Help:      "Count of requests rejected due to throttling policies.",
			}, []string{"module", "reason"}),
		}
		prometheus.MustRegister(
			moduleRegistry.requests,
			moduleRegistry.errors,
			moduleRegistry.latency,
			moduleRegistry.throttles,
		)
	})
	return moduleRegistry
}

// Observe records the outcome of a module request. The status code should be
// the HTTP status that was ultimately written to the response writer.
func (m *moduleMetrics) Observe(module, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	if module == "" {
		module = "unknown"
	}
	if method == "" {
		method = "unknown"
	}
	outcome := "success"
	if status >= 400 {
		outcome = "error"
	}
	m.requests.WithLabelValues(module, method, outcome).Inc()
	if status >= 400 {
		m.errors.WithLabelValues(module, method, fmt.Sprintf("%d", status)).Inc()
	}
	m.latency.WithLabelValues(module, method).Observe(duration.Seconds())
}

// RecordThrottle increments the throttle counter for the supplied module and
// reason. Reasons should be stable strings such as "rate_limit" so dashboards
// and alerts remain consistent.
func (m *moduleMetrics) RecordThrottle(module, reason string) {
	if m == nil {
		return
	}
	if module == "" {
		module = "unknown"
	}
	if reason == "" {
		reason = "unspecified"
	}
	m.throttles.WithLabelValues(module, reason).Inc()
}

// Registry returns the metrics tracking transaction application and escrow
// balances.
func Registry() *registryMetrics {
	registryMetricsOnce.Do(func() {
		registryRegistry = &registryMetrics{
			transactions: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "pettrace",
				Subsystem: "registry",
				Name:      "transactions_total",
				Help:      "Applied transactions segmented by type and outcome.",
			}, []string{"type", "status"}),
			rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "pettrace",
				Subsystem: "registry",
				Name:      "rejected_transactions_total",
				Help:      "Transactions refused before execution, by reason.",
			}, []string{"reason"}),
			applyLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
				Namespace: "pettrace",
				Subsystem: "registry",
				Name:      "apply_duration_seconds",
				Help:      "Time spent applying and committing a transaction.",
				Buckets:   prometheus.DefBuckets,
			}),
			escrowed: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Namespace: "pettrace",
				Subsystem: "registry",
				Name:      "escrow_balance",
				Help:      "Registry account balance in whole units, by asset.",
			}, []string{"asset"}),
			events: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "pettrace",
				Subsystem: "registry",
				Name:      "events_total",
				Help:      "Committed events segmented by type.",
			}, []string{"type"}),
			archiveFails: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "pettrace",
				Subsystem: "registry",
				Name:      "archive_failures_total",
				Help:      "Events that could not be written to the event archive.",
			}),
			subscribers: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "pettrace",
				Subsystem: "registry",
				Name:      "event_subscribers",
				Help:      "Connected websocket event subscribers.",
			}),
		}
		prometheus.MustRegister(
			registryRegistry.transactions,
			registryRegistry.rejected,
			registryRegistry.applyLatency,
			registryRegistry.escrowed,
			registryRegistry.events,
			registryRegistry.archiveFails,
			registryRegistry.subscribers,
		)
	})
	return registryRegistry
}

func (m *registryMetrics) RecordTransaction(txType, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.transactions.WithLabelValues(txType, status).Inc()
	m.applyLatency.Observe(duration.Seconds())
}

func (m *registryMetrics) RecordRejected(reason string) {
	if m == nil {
		return
	}
	if reason == "" {
		reason = "unspecified"
	}
	m.rejected.WithLabelValues(reason).Inc()
}

func (m *registryMetrics) RecordEvent(eventType string) {
	if m == nil {
		return
	}
	m.events.WithLabelValues(eventType).Inc()
}

func (m *registryMetrics) RecordArchiveFailure() {
	if m == nil {
		return
	}
	m.archiveFails.Inc()
}

func (m *registryMetrics) SubscriberDelta(delta int) {
	if m == nil {
		return
	}
	m.subscribers.Add(float64(delta))
}

// SetEscrowBalance publishes amount, given in base units with the supplied
// decimals, as a float gauge.
func (m *registryMetrics) SetEscrowBalance(asset string, amount *big.Int, decimals uint8) {
	if m == nil {
		return
	}
	m.escrowed.WithLabelValues(asset).Set(scaleAmount(amount, decimals))
}

func scaleAmount(amount *big.Int, decimals uint8) float64 {
	if amount == nil {
		return 0
	}
	value, _ := new(big.Float).SetInt(amount).Float64()
	if decimals == 0 {
		return value
	}
	return value / math.Pow10(int(decimals))
}
