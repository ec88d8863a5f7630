package sla

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// wednesday is mid-week so no weekend buffer applies.
var wednesday = time.Date(2026, 10, 21, 10, 0, 0, 0, time.UTC)

var allCategories = []string{"safety", "quality", "maintenance", "logistics", "hr", "IT", "legal", "finance", "other"}

type failingModel struct{}

func (failingModel) Predict(map[string]float64) (float64, error) {
	return 0, errors.New("boom")
}

func (failingModel) Confidence() float64 { return 0.9 }

func TestEngine_PriorityMonotonicity(t *testing.T) {
	engine := NewEngine(nil, nil, nil)
	priorities := []string{"low", "medium", "high", "critical"}

	variants := []Input{
		{},
		{HasVisualEvidence: true, VisualSeverity: "high"},
		{RequiresHumanReview: true},
		{SourceCount: 4, DepartmentWorkload: floatPtr(0.95)},
	}

	for _, category := range allCategories {
		for _, v := range variants {
			prev := -1.0
			for _, priority := range priorities {
				in := v
				in.Category = category
				in.Priority = priority

				hours := engine.Predict(in, wednesday).PredictedHours
				if prev >= 0 {
					assert.LessOrEqual(t, hours, prev, "%s %s %+v", category, priority, v)
				}
				prev = hours
			}
		}
	}
}

func TestEngine_ReviewAddsFixedBuffer(t *testing.T) {
	engine := NewEngine(nil, nil, nil)

	for _, category := range allCategories {
		for _, priority := range []string{"low", "medium", "high", "critical"} {
			for sources := 1; sources <= 3; sources++ {
				in := Input{Category: category, Priority: priority, SourceCount: sources}
				without := engine.Predict(in, wednesday)

				in.RequiresHumanReview = true
				with := engine.Predict(in, wednesday)

				assert.InDelta(t, reviewBufferHours, with.PredictedHours-without.PredictedHours, 1e-9,
					"%s %s sources=%d", category, priority, sources)
			}
		}
	}
}

func TestEngine_SafetyCriticalVersusLow(t *testing.T) {
	engine := NewEngine(nil, nil, nil)

	critical := engine.Predict(Input{
		Category:          "safety",
		Priority:          "critical",
		HasVisualEvidence: true,
		VisualSeverity:    "critical",
	}, wednesday)
	low := engine.Predict(Input{Category: "safety", Priority: "low"}, wednesday)

	assert.LessOrEqual(t, critical.PredictedHours, low.PredictedHours)
	assert.Equal(t, 1.0, critical.PredictedHours)
	assert.Equal(t, 6.0, low.PredictedHours)

	assert.Equal(t, RiskCritical, critical.RiskLevel)
	assert.InDelta(t, 0.207, critical.BreachProbability, 1e-9)
	assert.Equal(t, RiskMedium, low.RiskLevel)
	assert.InDelta(t, 0.11, low.BreachProbability, 1e-9)
}

func TestEngine_CriticalPriorityAlwaysCritical(t *testing.T) {
	engine := NewEngine(nil, nil, nil)

	for _, category := range allCategories {
		p := engine.Predict(Input{Category: category, Priority: "critical", ConfidenceScore: floatPtr(1)}, wednesday)
		assert.Equal(t, RiskCritical, p.RiskLevel, category)
	}
}

func TestRiskLevel_ProbabilityOnlyRaises(t *testing.T) {
	assert.Equal(t, RiskCritical, riskLevel(0.35, PriorityLow))
	assert.Equal(t, RiskHigh, riskLevel(0.25, PriorityLow))
	assert.Equal(t, RiskMedium, riskLevel(0.15, PriorityLow))
	assert.Equal(t, RiskLow, riskLevel(0.05, PriorityLow))
	assert.Equal(t, RiskCritical, riskLevel(0, PriorityCritical))
	assert.Equal(t, RiskHigh, riskLevel(0, PriorityHigh))
	assert.Equal(t, RiskCritical, riskLevel(0.31, PriorityHigh))
}

func TestBreachProbability(t *testing.T) {
	assert.InDelta(t, 0.15*1.3, breachProbability(4, PriorityCritical, 1), 1e-9)
	assert.InDelta(t, 0.12*1.0, breachProbability(8, PriorityHigh, 1), 1e-9)
	assert.InDelta(t, 0.10*0.9, breachProbability(24, PriorityMedium, 1), 1e-9)
	assert.InDelta(t, 0.08*0.8, breachProbability(48, PriorityLow, 1), 1e-9)
	assert.InDelta(t, 0.10*0.8*1.3, breachProbability(100, PriorityMedium, 0), 1e-9)
}

func TestEngine_NoModelIsRuleOnly(t *testing.T) {
	engine := NewEngine(nil, nil, nil)
	assert.False(t, engine.ModelAvailable())

	p := engine.Predict(Input{Category: "maintenance", Priority: "medium"}, wednesday)

	assert.Equal(t, 48.0, p.PredictedHours)
	assert.Equal(t, 48.0, p.RuleHours)
	assert.Equal(t, 46.0, p.ModelHours)
	assert.Equal(t, SourceBaseline, p.ModelSource)
	assert.Equal(t, 0.5, p.ModelConfidence)
	assert.Equal(t, 1.0, p.RuleWeight)
	assert.Equal(t, 0.0, p.ModelWeight)
	assert.Equal(t, 0.85, p.Confidence)
	assert.Contains(t, p.Explanation, "Final prediction: 48.0 hours")
	assert.True(t, wednesday.Add(48*time.Hour).Equal(p.Deadline))
}

func TestEngine_TrainedModelIsWeightedByConfidence(t *testing.T) {
	model := &LinearModel{
		Intercept:       20,
		Coefficients:    map[string]float64{FeatureDescriptionLen: 0.01},
		ModelConfidence: floatPtr(0.5),
	}
	engine := NewEngine(nil, NewModelEngine(model, nil), nil)
	require.True(t, engine.ModelAvailable())

	p := engine.Predict(Input{Category: "maintenance", Priority: "medium", DescriptionLength: 1000}, wednesday)

	assert.Equal(t, SourceModel, p.ModelSource)
	assert.InDelta(t, 30.0, p.ModelHours, 1e-9)
	assert.InDelta(t, 0.2, p.ModelWeight, 1e-9)
	assert.InDelta(t, 0.8, p.RuleWeight, 1e-9)
	assert.InDelta(t, 44.4, p.PredictedHours, 1e-9)
	assert.InDelta(t, 0.78, p.Confidence, 1e-9)
	assert.Contains(t, p.Explanation, "Model predicts 30.0h (weight: 20%). Combined prediction: 44.4h")
}

func TestEngine_ModelFailureFallsBackToRules(t *testing.T) {
	engine := NewEngine(nil, NewModelEngine(failingModel{}, nil), nil)

	p := engine.Predict(Input{Category: "maintenance", Priority: "medium"}, wednesday)

	assert.Equal(t, SourceFallback, p.ModelSource)
	assert.Equal(t, 0.3, p.ModelConfidence)
	assert.Equal(t, 46.0, p.ModelHours)
	assert.Equal(t, 48.0, p.PredictedHours)
	assert.Equal(t, 1.0, p.RuleWeight)
	assert.Equal(t, 0.85, p.Confidence)
}

func TestEngine_WeekendFromClock(t *testing.T) {
	engine := NewEngine(nil, nil, nil)
	saturday := time.Date(2026, 10, 24, 9, 0, 0, 0, time.UTC)

	p := engine.Predict(Input{Category: "maintenance", Priority: "medium"}, saturday)
	assert.Equal(t, 64.0, p.PredictedHours)

	p = engine.Predict(Input{Category: "maintenance", Priority: "medium", DayOfWeek: intPtr(1)}, saturday)
	assert.Equal(t, 48.0, p.PredictedHours)
}
