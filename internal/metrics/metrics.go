// Package metrics holds the Prometheus collectors exposed on /metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "claimd_http_requests_total",
	Help: "Total number of requests labelled by route and status",
}, []string{"route", "status"})

var tenantFilterDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "claimd_tenant_filter_decisions_total",
	Help: "Tenant predicates built, labelled by branch",
}, []string{"branch"})

var tenantAuditRejections = promauto.NewCounter(prometheus.CounterOpts{
	Name: "claimd_tenant_audit_rejections_total",
	Help: "Search results removed by the post-retrieval access audit",
})

var queriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "claimd_rag_queries_total",
	Help: "RAG queries labelled by role and outcome",
}, []string{"role", "outcome"})

var syncedChunks = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "claimd_ingestion_chunks_total",
	Help: "Chunks written to the vector index labelled by trigger",
}, []string{"trigger"})

var syncErrors = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "claimd_ingestion_errors_total",
	Help: "Ingestion failures labelled by trigger",
}, []string{"trigger"})

var slaPredictedHours = promauto.NewHistogram(prometheus.HistogramOpts{
	Name:    "claimd_sla_predicted_hours",
	Help:    "Predicted resolution hours",
	Buckets: []float64{1, 2, 4, 8, 16, 24, 48, 72, 120, 240},
})

var slaRiskLevels = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "claimd_sla_predictions_total",
	Help: "SLA predictions labelled by risk level",
}, []string{"risk"})

var dependencyLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "claimd_dependency_latency_seconds",
	Help:    "Latency of external service calls.",
	Buckets: []float64{.05, .1, .25, .5, 1, 2, 5, 10, 30},
}, []string{"service"})

var jobRounds = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "claimd_job_rounds_total",
	Help: "Background job rounds labelled by job and outcome",
}, []string{"job", "outcome"})

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

func ObserveHTTPRequest(route string, status int) {
	httpRequestsTotal.WithLabelValues(route, strconv.Itoa(status)).Inc()
}

func RecordTenantDecision(branch string) {
	tenantFilterDecisions.WithLabelValues(branch).Inc()
}

func RecordAuditRejections(n int) {
	tenantAuditRejections.Add(float64(n))
}

func RecordQuery(role, outcome string) {
	queriesTotal.WithLabelValues(role, outcome).Inc()
}

func RecordSyncedChunks(trigger string, n int) {
	syncedChunks.WithLabelValues(trigger).Add(float64(n))
}

func RecordSyncError(trigger string) {
	syncErrors.WithLabelValues(trigger).Inc()
}

func RecordSLAPrediction(hours float64, risk string) {
	slaPredictedHours.Observe(hours)
	slaRiskLevels.WithLabelValues(risk).Inc()
}

// ObserveDependency records the time since start for an outbound call.
func ObserveDependency(service string, start time.Time) {
	dependencyLatency.WithLabelValues(service).Observe(time.Since(start).Seconds())
}

func RecordJobRound(job, outcome string) {
	jobRounds.WithLabelValues(job, outcome).Inc()
}
