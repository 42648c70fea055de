package metrics

import (
	"time"

	"crm-sync/core/reconcile"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Path is where the metrics endpoint is mounted.
const Path = "/metrics"

var (
	auditsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "crm_sync_audits_total",
		Help: "Audit runs by record type and final status",
	}, []string{"record_type", "status"})

	discrepanciesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "crm_sync_discrepancies_total",
		Help: "Discrepancies found by audits",
	}, []string{"record_type", "type"})

	pollRecordsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "crm_sync_poll_records_total",
		Help: "Records imported by polls",
	}, []string{"record_type", "kind"})

	runDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "crm_sync_run_duration_seconds",
		Help:    "Duration of audit and poll runs",
		Buckets: []float64{0.1, 0.5, 1, 5, 15, 60, 300, 900},
	}, []string{"kind", "record_type"})

	jobAttemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "crm_sync_job_attempts_total",
		Help: "Job attempts by job name and outcome",
	}, []string{"job", "outcome"})

	remoteCallsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "crm_sync_remote_calls_total",
		Help: "Calls to the remote API by method and status class",
	}, []string{"method", "status"})

	remoteCallDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "crm_sync_remote_call_duration_seconds",
		Help:    "Latency of remote API calls",
		Buckets: prometheus.DefBuckets,
	}, []string{"method"})
)

// ObserveAudit records a finished audit.
func ObserveAudit(result *reconcile.AuditResult, elapsed time.Duration) {
	if result == nil {
		return
	}
	auditsTotal.WithLabelValues(result.RecordType, string(result.Status)).Inc()
	for t, n := range result.CountByType() {
		discrepanciesTotal.WithLabelValues(result.RecordType, string(t)).Add(float64(n))
	}
	runDuration.WithLabelValues("audit", result.RecordType).Observe(elapsed.Seconds())
}

// ObservePoll records a finished poll.
func ObservePoll(recordType string, result *reconcile.PollResult, elapsed time.Duration) {
	if result == nil {
		return
	}
	pollRecordsTotal.WithLabelValues(recordType, "created").Add(float64(result.Created))
	pollRecordsTotal.WithLabelValues(recordType, "updated").Add(float64(result.Updated))
	pollRecordsTotal.WithLabelValues(recordType, "deleted").Add(float64(result.Deleted))
	runDuration.WithLabelValues("poll", recordType).Observe(elapsed.Seconds())
}

// ObserveJobAttempt records one job attempt. outcome is success, retry, invalid or failed.
func ObserveJobAttempt(job, outcome string) {
	jobAttemptsTotal.WithLabelValues(job, outcome).Inc()
}

// ObserveRemoteCall records one remote API call. status is the HTTP status class, e.g. "2xx", or "error".
func ObserveRemoteCall(method, status string, elapsed time.Duration) {
	remoteCallsTotal.WithLabelValues(method, status).Inc()
	remoteCallDuration.WithLabelValues(method).Observe(elapsed.Seconds())
}

// Register mounts the Prometheus handler on the router.
func Register(app fiber.Router) {
	app.Get(Path, adaptor.HTTPHandler(promhttp.Handler()))
}
