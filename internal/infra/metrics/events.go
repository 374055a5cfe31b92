package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(eventsEmittedTotal, planStepsTotal, planRetriesTotal) }

var eventsEmittedTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "events_emitted_total",
		Help: "Physical events produced by the event router, by sink.",
	},
	[]string{"sink"}, // 'ui', 'context'
)

var planStepsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "plan_steps_total",
		Help: "Plan steps driven to a terminal status.",
	},
	[]string{"status"}, // 'success', 'failed'
)

var planRetriesTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "plan_hallucination_retries_total",
		Help: "Dispatches retried because the confirmed-invocation counter stalled.",
	},
)

func IncEventEmitted(sink string) {
	eventsEmittedTotal.WithLabelValues(norm(sink)).Inc()
}

func IncPlanStep(status string) {
	planStepsTotal.WithLabelValues(norm(status)).Inc()
}

func IncPlanRetry() { planRetriesTotal.Inc() }
