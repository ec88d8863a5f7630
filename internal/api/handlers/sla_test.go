package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartclaim/triage/internal/sla"
)

func decodeData[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var resp struct {
		Data T `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.Data
}

func newTestSLAHandler() *SLAHandler {
	h := NewSLAHandler(sla.NewEngine(nil, nil, nil), sla.NewTracker(), nil)
	h.now = func() time.Time { return time.Date(2026, 10, 21, 10, 0, 0, 0, time.UTC) }
	return h
}

func TestSLAHandler_Predict(t *testing.T) {
	h := newTestSLAHandler()

	w := httptest.NewRecorder()
	h.Predict(w, httptest.NewRequest(http.MethodPost, "/sla/predict",
		strings.NewReader(`{"category": "maintenance", "priority": "medium"}`)))

	require.Equal(t, http.StatusOK, w.Code)

	p := decodeData[sla.Prediction](t, w)
	assert.Equal(t, 48.0, p.PredictedHours)
	assert.Equal(t, sla.SourceBaseline, p.ModelSource)
	assert.NotEmpty(t, p.Factors)
	assert.Equal(t, time.Date(2026, 10, 23, 10, 0, 0, 0, time.UTC), p.Deadline.UTC())

	assert.Equal(t, int64(1), h.tracker.Summary().TotalPredictions)
}

func TestSLAHandler_PredictRejectsBadInput(t *testing.T) {
	h := newTestSLAHandler()

	for _, body := range []string{
		`{"category": "maintenance", "priority": "medium", "eta": 3}`,
		`{"priority": "medium"}`,
		`not json`,
	} {
		w := httptest.NewRecorder()
		h.Predict(w, httptest.NewRequest(http.MethodPost, "/sla/predict", strings.NewReader(body)))
		assert.Equal(t, http.StatusBadRequest, w.Code, body)
	}
	assert.Zero(t, h.tracker.Summary().TotalPredictions)
}

func TestSLAHandler_PredictFromAggregation(t *testing.T) {
	h := newTestSLAHandler()

	w := httptest.NewRecorder()
	h.PredictFromAggregation(w, httptest.NewRequest(http.MethodPost, "/sla/predict-from-aggregation",
		strings.NewReader(`{
			"final_category": "safety",
			"final_priority": "critical",
			"has_visual_evidence": true,
			"sla_hints": {"visual_severity": "critical"}
		}`)))

	require.Equal(t, http.StatusOK, w.Code)

	p := decodeData[sla.Prediction](t, w)
	assert.Equal(t, 1.0, p.PredictedHours)
	assert.Equal(t, sla.RiskCritical, p.RiskLevel)
}

func TestSLAHandler_PredictFromAggregation_FullAggregatorBody(t *testing.T) {
	h := newTestSLAHandler()

	w := httptest.NewRecorder()
	h.PredictFromAggregation(w, httptest.NewRequest(http.MethodPost, "/sla/predict-from-aggregation",
		strings.NewReader(`{
			"sources_used": ["text", "image"],
			"final_category": "maintenance",
			"final_priority": "medium",
			"category_confidence": 0.7,
			"category_votes": [{"source": "text", "category": "maintenance", "confidence": 0.7, "weight": 0.4}],
			"unified_summary": "Conveyor belt squeaks",
			"all_keywords": ["conveyor"],
			"has_visual_evidence": false,
			"detected_objects": [],
			"requires_human_review": false,
			"human_review_reasons": [],
			"sla_hints": {"visual_severity": null, "has_visual_evidence": false, "category": "maintenance",
				"priority": "medium", "confidence": 0.7, "requires_human_review": false, "source_count": 2},
			"processing_time_ms": 12.5,
			"aggregation_version": "1.0.0"
		}`)))

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, int64(1), h.tracker.Summary().TotalPredictions)
}

func TestSLAHandler_Config(t *testing.T) {
	h := newTestSLAHandler()

	w := httptest.NewRecorder()
	h.Config(w, httptest.NewRequest(http.MethodGet, "/sla/config", nil))

	require.Equal(t, http.StatusOK, w.Code)

	resp := decodeData[map[string]any](t, w)
	assert.Equal(t, false, resp["ml_model_available"])
	assert.Equal(t, 4.0, resp["review_buffer_hours"])
	base, ok := resp["base_sla_hours"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 4.0, base["safety"])
}

func TestSLAHandler_Metrics(t *testing.T) {
	h := newTestSLAHandler()

	for _, body := range []string{
		`{"category": "maintenance", "priority": "medium"}`,
		`{"category": "safety", "priority": "critical"}`,
	} {
		w := httptest.NewRecorder()
		h.Predict(w, httptest.NewRequest(http.MethodPost, "/sla/predict", strings.NewReader(body)))
		require.Equal(t, http.StatusOK, w.Code)
	}

	w := httptest.NewRecorder()
	h.Metrics(w, httptest.NewRequest(http.MethodGet, "/sla/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)

	s := decodeData[sla.Summary](t, w)
	assert.Equal(t, int64(2), s.TotalPredictions)
	assert.Equal(t, int64(1), s.PredictionsByRisk[sla.RiskCritical])
}
