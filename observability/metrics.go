package observability

import (
	"fmt"
	"math"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type rpcMetrics struct {
	requests *prometheus.CounterVec
	errors   *prometheus.CounterVec
	latency  *prometheus.HistogramVec
}

// MarketMetrics bundles collectors tracking lending market activity.
type MarketMetrics struct {
	operations  *prometheus.CounterVec
	outcomes    *prometheus.CounterVec
	revenue     *prometheus.CounterVec
	escrow      *prometheus.GaugeVec
	paramUpdate prometheus.Counter
}

var (
	rpcMetricsOnce sync.Once
	rpcRegistry    *rpcMetrics

	marketMetricsOnce sync.Once
	marketRegistry    *MarketMetrics
)

// RPCMetrics returns the lazily-initialised registry used to record JSON-RPC
// handler activity.
func RPCMetrics() *rpcMetrics {
	rpcMetricsOnce.Do(func() {
		rpcRegistry = &rpcMetrics{
			requests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "hlp",
				Subsystem: "rpc",
				Name:      "requests_total",
				Help:      "Total JSON-RPC requests segmented by method and outcome.",
			}, []string{"method", "outcome"}),
			errors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "hlp",
				Subsystem: "rpc",
				Name:      "errors_total",
				Help:      "Total JSON-RPC errors segmented by method and status code.",
			}, []string{"method", "status"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "hlp",
				Subsystem: "rpc",
				Name:      "request_duration_seconds",
				Help:      "Latency distribution for JSON-RPC handlers.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"method"}),
		}
		prometheus.MustRegister(
			rpcRegistry.requests,
			rpcRegistry.errors,
			rpcRegistry.latency,
		)
	})
	return rpcRegistry
}

// Observe records the outcome of an RPC request. The status code should be the
// HTTP status ultimately written to the response writer.
func (m *rpcMetrics) Observe(method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	if method == "" {
		method = "unknown"
	}
	outcome := "success"
	if status >= 400 {
		outcome = "error"
	}
	m.requests.WithLabelValues(method, outcome).Inc()
	if status >= 400 {
		m.errors.WithLabelValues(method, fmt.Sprintf("%d", status)).Inc()
	}
	m.latency.WithLabelValues(method).Observe(duration.Seconds())
}

// Market exposes the singleton metrics registry for the lending engine.
func Market() *MarketMetrics {
	marketMetricsOnce.Do(func() {
		marketRegistry = &MarketMetrics{
			operations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "hlp",
				Subsystem: "lending",
				Name:      "operations_total",
				Help:      "Count of lending operations segmented by operation and outcome.",
			}, []string{"operation", "outcome"}),
			outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "hlp",
				Subsystem: "lending",
				Name:      "loan_outcomes_total",
				Help:      "Count of loans reaching a terminal status.",
			}, []string{"status"}),
			revenue: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "hlp",
				Subsystem: "lending",
				Name:      "protocol_revenue_total",
				Help:      "Cumulative protocol revenue in integer token units, per token.",
			}, []string{"token"}),
			escrow: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Namespace: "hlp",
				Subsystem: "lending",
				Name:      "escrow_collateral",
				Help:      "Collateral currently held in escrow, in integer token units per token.",
			}, []string{"token"}),
			paramUpdate: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "hlp",
				Subsystem: "lending",
				Name:      "param_updates_total",
				Help:      "Count of applied administrative parameter updates.",
			}),
		}
		prometheus.MustRegister(
			marketRegistry.operations,
			marketRegistry.outcomes,
			marketRegistry.revenue,
			marketRegistry.escrow,
			marketRegistry.paramUpdate,
		)
	})
	return marketRegistry
}

// RecordOperation counts one lending operation and its outcome.
func (m *MarketMetrics) RecordOperation(operation string, err error) {
	if m == nil {
		return
	}
	op := strings.TrimSpace(operation)
	if op == "" {
		op = "unknown"
	}
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	m.operations.WithLabelValues(op, outcome).Inc()
}

// RecordOutcome counts a loan reaching a terminal status.
func (m *MarketMetrics) RecordOutcome(status string) {
	if m == nil {
		return
	}
	m.outcomes.WithLabelValues(labelToken(status)).Inc()
}

// RecordRevenue accumulates protocol revenue for a token.
func (m *MarketMetrics) RecordRevenue(token string, amount *big.Int) {
	if m == nil {
		return
	}
	value := bigToFloat(amount)
	if value <= 0 {
		return
	}
	m.revenue.WithLabelValues(labelToken(token)).Add(value)
}

// SetEscrow updates the escrowed collateral gauge for a token.
func (m *MarketMetrics) SetEscrow(token string, amount *big.Int) {
	if m == nil {
		return
	}
	m.escrow.WithLabelValues(labelToken(token)).Set(bigToFloat(amount))
}

// RevenueVec exposes the protocol revenue collector, mainly for tests.
func (m *MarketMetrics) RevenueVec() *prometheus.CounterVec {
	return m.revenue
}

// EscrowGauge exposes the escrowed collateral gauge, mainly for tests.
func (m *MarketMetrics) EscrowGauge() *prometheus.GaugeVec {
	return m.escrow
}

// RecordParamUpdate counts one applied parameter update.
func (m *MarketMetrics) RecordParamUpdate() {
	if m == nil {
		return
	}
	m.paramUpdate.Inc()
}

func labelToken(token string) string {
	trimmed := strings.TrimSpace(token)
	if trimmed == "" {
		return "UNKNOWN"
	}
	return strings.ToUpper(trimmed)
}

func bigToFloat(value *big.Int) float64 {
	if value == nil {
		return 0
	}
	floatVal, acc := new(big.Float).SetInt(value).Float64()
	if acc != big.Exact {
		// Guard against NaN/Inf when conversion fails.
		if math.IsNaN(floatVal) || math.IsInf(floatVal, 0) {
			return 0
		}
	}
	return floatVal
}
