package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(
		toolInvocationsTotal,
		guardShortCircuits,
		invokeLatencyMs,
		quotaBlocks,
	)
}

var (
	toolInvocationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tool_invocations_total",
			Help: "Tool invocations through the middleware pipeline, by tool and outcome.",
		},
		[]string{"tool", "status"},
	)

	guardShortCircuits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "guard_short_circuits_total",
			Help: "Invocations rejected by a guard before reaching the backend.",
		},
		[]string{"guard"},
	)

	invokeLatencyMs = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tool_invoke_latency_ms",
			Help:    "End-to-end pipeline latency distribution in milliseconds.",
			Buckets: []float64{10, 25, 50, 100, 200, 400, 800, 1600, 3000, 5000},
		},
		[]string{"tool", "success"},
	)

	quotaBlocks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quota_blocks_total",
			Help: "Count of pre-charge affordability blocks per tool/sku.",
		},
		[]string{"tool", "sku"},
	)
)

func IncToolInvocation(tool, status string) {
	toolInvocationsTotal.WithLabelValues(norm(tool), norm(status)).Inc()
}

func IncGuardShortCircuit(guard string) {
	guardShortCircuits.WithLabelValues(norm(guard)).Inc()
}

func ObserveInvoke(tool string, latencyMs int, success bool) {
	invokeLatencyMs.WithLabelValues(norm(tool), strconv.FormatBool(success)).
		Observe(float64(latencyMs))
}

func QuotaBlocked(tool, sku string) {
	quotaBlocks.WithLabelValues(norm(tool), norm(sku)).Inc()
}
