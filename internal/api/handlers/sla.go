package handlers

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/smartclaim/triage/internal/api"
	"github.com/smartclaim/triage/internal/metrics"
	"github.com/smartclaim/triage/internal/sla"
)

type SLAHandler struct {
	engine  *sla.Engine
	tracker *sla.Tracker
	now     func() time.Time
	logger  *zap.Logger
}

func NewSLAHandler(engine *sla.Engine, tracker *sla.Tracker, logger *zap.Logger) *SLAHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if tracker == nil {
		tracker = sla.NewTracker()
	}
	return &SLAHandler{engine: engine, tracker: tracker, now: time.Now, logger: logger.Named("sla_handler")}
}

type SLAConfigResponse struct {
	sla.Tables
	ModelAvailable bool `json:"ml_model_available"`
}

func (h *SLAHandler) Predict(w http.ResponseWriter, r *http.Request) {
	in, err := sla.DecodeInput(r.Body)
	if err != nil {
		api.HandleError(w, err)
		return
	}
	h.respond(w, in)
}

func (h *SLAHandler) PredictFromAggregation(w http.ResponseWriter, r *http.Request) {
	in, err := sla.DecodeAggregated(r.Body)
	if err != nil {
		api.HandleError(w, err)
		return
	}
	h.respond(w, in)
}

func (h *SLAHandler) respond(w http.ResponseWriter, in sla.Input) {
	p := h.engine.Predict(in, h.now())
	h.tracker.Record(p)
	metrics.RecordSLAPrediction(p.PredictedHours, string(p.RiskLevel))

	h.logger.Info("sla prediction",
		zap.String("category", in.Category),
		zap.String("priority", in.Priority),
		zap.Float64("hours", p.PredictedHours),
		zap.String("risk", string(p.RiskLevel)),
	)
	api.Success(w, http.StatusOK, p)
}

func (h *SLAHandler) Config(w http.ResponseWriter, r *http.Request) {
	api.Success(w, http.StatusOK, SLAConfigResponse{
		Tables:         h.engine.Tables(),
		ModelAvailable: h.engine.ModelAvailable(),
	})
}

func (h *SLAHandler) Metrics(w http.ResponseWriter, r *http.Request) {
	api.Success(w, http.StatusOK, h.tracker.Summary())
}
