package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"crm-sync/core/reconcile"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveAudit(t *testing.T) {
	result := reconcile.NewAuditResult("run-1", reconcile.Partition{RecordType: "MetricsAudit"})
	result.Add(reconcile.Discrepancy{Type: reconcile.DiscrepancyMismatchingRecords})
	result.Add(reconcile.Discrepancy{Type: reconcile.DiscrepancyMismatchingRecords})
	result.Finish()

	ObserveAudit(result, time.Second)
	ObserveAudit(nil, time.Second)

	assert.Equal(t, 1.0, testutil.ToFloat64(auditsTotal.WithLabelValues("MetricsAudit", string(reconcile.AuditFailure))))
	assert.Equal(t, 2.0, testutil.ToFloat64(discrepanciesTotal.WithLabelValues("MetricsAudit", string(reconcile.DiscrepancyMismatchingRecords))))
}

func TestObservePoll(t *testing.T) {
	ObservePoll("MetricsPoll", &reconcile.PollResult{Created: 3, Deleted: 1}, time.Millisecond)

	assert.Equal(t, 3.0, testutil.ToFloat64(pollRecordsTotal.WithLabelValues("MetricsPoll", "created")))
	assert.Equal(t, 0.0, testutil.ToFloat64(pollRecordsTotal.WithLabelValues("MetricsPoll", "updated")))
	assert.Equal(t, 1.0, testutil.ToFloat64(pollRecordsTotal.WithLabelValues("MetricsPoll", "deleted")))
}

func TestRegister(t *testing.T) {
	ObserveJobAttempt("metrics_test_job", "success")
	ObserveRemoteCall("GET metrics_test", "2xx", time.Millisecond)

	app := fiber.New()
	Register(app)

	resp, err := app.Test(httptest.NewRequest("GET", Path, nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `crm_sync_job_attempts_total{job="metrics_test_job",outcome="success"} 1`)
	assert.Contains(t, string(body), "crm_sync_remote_call_duration_seconds")
}
