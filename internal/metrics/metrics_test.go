package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordAuditRejections(t *testing.T) {
	before := testutil.ToFloat64(tenantAuditRejections)
	RecordAuditRejections(2)
	assert.Equal(t, before+2, testutil.ToFloat64(tenantAuditRejections))
}

func TestRecordTenantDecision(t *testing.T) {
	before := testutil.ToFloat64(tenantFilterDecisions.WithLabelValues("worker"))
	RecordTenantDecision("worker")
	assert.Equal(t, before+1, testutil.ToFloat64(tenantFilterDecisions.WithLabelValues("worker")))
}

func TestHandler_ExposesCollectors(t *testing.T) {
	RecordSLAPrediction(12, "medium")
	ObserveDependency("embedding", time.Now())

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "claimd_sla_predictions_total")
	assert.Contains(t, w.Body.String(), "claimd_dependency_latency_seconds")
}
