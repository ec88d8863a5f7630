package sla

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"slices"

	"go.uber.org/zap"

	"github.com/smartclaim/triage/internal/storage"
)

// Feature names understood by trained models.
const (
	FeatureCategory       = "category_encoded"
	FeaturePriority       = "priority_encoded"
	FeatureDescriptionLen = "description_length"
	FeatureAttachments    = "has_attachments"
	FeatureVisual         = "has_visual_evidence"
	FeatureSeverity       = "visual_severity_encoded"
	FeatureSourceCount    = "source_count"
	FeatureConfidence     = "confidence_score"
	FeatureReview         = "requires_human_review"
	FeatureHour           = "hour_of_day"
	FeatureWeekday        = "day_of_week"
	FeatureWorkload       = "department_workload"
)

// FeatureNames lists every feature in model order.
var FeatureNames = []string{
	FeatureCategory, FeaturePriority, FeatureDescriptionLen, FeatureAttachments,
	FeatureVisual, FeatureSeverity, FeatureSourceCount, FeatureConfidence,
	FeatureReview, FeatureHour, FeatureWeekday, FeatureWorkload,
}

// Estimate sources.
const (
	SourceModel    = "model"
	SourceFallback = "fallback"
	SourceBaseline = "baseline"
)

const (
	defaultModelConfidence = 0.75
	fallbackConfidence     = 0.3
	baselineConfidence     = 0.5
	baselineHours          = 36.0
)

var (
	priorityOffsets = map[Priority]float64{
		PriorityCritical: -20,
		PriorityHigh:     -10,
		PriorityMedium:   0,
		PriorityLow:      12,
	}
	categoryOffsets = map[Category]float64{
		CategorySafety:      -15,
		CategoryQuality:     -5,
		CategoryMaintenance: 10,
		CategoryLogistics:   0,
		CategoryHR:          15,
		CategoryIT:          -5,
	}
)

// Features encodes an input for a trained model. Unset temporal and
// workload values take mid-week, midday and half-load defaults.
func Features(in Input) map[string]float64 {
	hour, weekday, workload := 12.0, 2.0, 0.5
	if in.HourOfDay != nil {
		hour = float64(*in.HourOfDay)
	}
	if in.DayOfWeek != nil {
		weekday = float64(*in.DayOfWeek)
	}
	if in.DepartmentWorkload != nil {
		workload = *in.DepartmentWorkload
	}
	sources := in.SourceCount
	if sources == 0 {
		sources = defaultSourceCount
	}
	return map[string]float64{
		FeatureCategory:       float64(slices.Index(categories, ParseCategory(in.Category))),
		FeaturePriority:       float64(ParsePriority(in.Priority).rank()),
		FeatureDescriptionLen: float64(in.DescriptionLength),
		FeatureAttachments:    boolFeature(in.HasAttachments),
		FeatureVisual:         boolFeature(in.HasVisualEvidence),
		FeatureSeverity:       float64(severityRank(in.VisualSeverity)),
		FeatureSourceCount:    float64(sources),
		FeatureConfidence:     in.confidence(),
		FeatureReview:         boolFeature(in.RequiresHumanReview),
		FeatureHour:           hour,
		FeatureWeekday:        weekday,
		FeatureWorkload:       workload,
	}
}

func severityRank(s string) int {
	if s == "" {
		return 1
	}
	return ParsePriority(s).rank()
}

func boolFeature(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// Regressor is a trained resolution-time model.
type Regressor interface {
	Predict(features map[string]float64) (float64, error)
	// Confidence is the model's self-reported reliability in [0, 1].
	Confidence() float64
}

// LinearModel is the serialized model artifact.
type LinearModel struct {
	Name            string             `json:"name"`
	Intercept       float64            `json:"intercept"`
	Coefficients    map[string]float64 `json:"coefficients"`
	ModelConfidence *float64           `json:"confidence,omitempty"`
}

func (m *LinearModel) Predict(features map[string]float64) (float64, error) {
	y := m.Intercept
	for name, coef := range m.Coefficients {
		v, ok := features[name]
		if !ok {
			return 0, fmt.Errorf("feature %q missing", name)
		}
		y += coef * v
	}
	if math.IsNaN(y) || math.IsInf(y, 0) {
		return 0, errors.New("model produced a non-finite estimate")
	}
	return y, nil
}

func (m *LinearModel) Confidence() float64 {
	if m.ModelConfidence == nil {
		return defaultModelConfidence
	}
	return *m.ModelConfidence
}

func (m *LinearModel) validate() error {
	if len(m.Coefficients) == 0 {
		return errors.New("model has no coefficients")
	}
	for name := range m.Coefficients {
		if !slices.Contains(FeatureNames, name) {
			return fmt.Errorf("unknown feature %q", name)
		}
	}
	if c := m.ModelConfidence; c != nil && (*c <= 0 || *c > 1) {
		return fmt.Errorf("confidence %v outside (0, 1]", *c)
	}
	return nil
}

// ParseModel decodes and validates a model artifact.
func ParseModel(data []byte) (*LinearModel, error) {
	var m LinearModel
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to decode model: %w", err)
	}
	if err := m.validate(); err != nil {
		return nil, fmt.Errorf("invalid model: %w", err)
	}
	return &m, nil
}

// ObjectGetter fetches artifacts from object storage.
type ObjectGetter interface {
	GetObject(ctx context.Context, bucket, key string) ([]byte, error)
}

// LoadModel reads a model from a local path or an s3://bucket/key URI.
// objects may be nil when path is local.
func LoadModel(ctx context.Context, path string, objects ObjectGetter) (*LinearModel, error) {
	var (
		data []byte
		err  error
	)
	if storage.IsURI(path) {
		if objects == nil {
			return nil, fmt.Errorf("model path %s needs object storage configuration", path)
		}
		bucket, key, perr := storage.ParseURI(path)
		if perr != nil {
			return nil, perr
		}
		data, err = objects.GetObject(ctx, bucket, key)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read model %s: %w", path, err)
	}
	return ParseModel(data)
}

// ModelEstimate is the statistical side of a prediction.
type ModelEstimate struct {
	Hours      float64
	Confidence float64
	Source     string
}

// ModelEngine runs the trained model when one is loaded and the statistical
// baseline otherwise.
type ModelEngine struct {
	model  Regressor
	logger *zap.Logger
}

// NewModelEngine accepts a nil model.
func NewModelEngine(model Regressor, logger *zap.Logger) *ModelEngine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ModelEngine{model: model, logger: logger.Named("sla_model")}
}

func (m *ModelEngine) Available() bool {
	return m.model != nil
}

func (m *ModelEngine) Predict(in Input) ModelEstimate {
	if m.model == nil {
		return ModelEstimate{Hours: baseline(in), Confidence: baselineConfidence, Source: SourceBaseline}
	}
	hours, err := m.model.Predict(Features(in))
	if err != nil {
		m.logger.Error("model prediction failed", zap.Error(err))
		return ModelEstimate{Hours: baseline(in), Confidence: fallbackConfidence, Source: SourceFallback}
	}
	return ModelEstimate{Hours: math.Max(minHours, hours), Confidence: m.model.Confidence(), Source: SourceModel}
}

func baseline(in Input) float64 {
	h := baselineHours + priorityOffsets[ParsePriority(in.Priority)] + categoryOffsets[ParseCategory(in.Category)]
	return math.Max(minHours, h)
}
