package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(jobsReconciledTotal, backendQueriesTotal) }

var jobsReconciledTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "jobs_reconciled_total",
		Help: "Job records driven to a terminal state, labeled by status.",
	},
	[]string{"status"}, // 'succeeded', 'failed'
)

var backendQueriesTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "job_backend_queries_total",
		Help: "Status/result queries issued to the compute backend, by operation.",
	},
	[]string{"op"}, // 'status', 'result', 'submit'
)

func IncJobReconciled(status string) {
	jobsReconciledTotal.WithLabelValues(norm(status)).Inc()
}

func IncBackendQuery(op string) {
	backendQueriesTotal.WithLabelValues(norm(op)).Inc()
}
