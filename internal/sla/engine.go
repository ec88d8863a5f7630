package sla

import (
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"
)

const (
	maxModelWeight = 0.4
	ruleConfidence = 0.85
)

var breachBase = map[Priority]float64{
	PriorityCritical: 0.15,
	PriorityHigh:     0.12,
	PriorityMedium:   0.10,
	PriorityLow:      0.08,
}

// Engine blends the rule and model estimates.
type Engine struct {
	rules  *RuleEngine
	model  *ModelEngine
	logger *zap.Logger
}

func NewEngine(rules *RuleEngine, model *ModelEngine, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if rules == nil {
		rules = NewRuleEngine()
	}
	if model == nil {
		model = NewModelEngine(nil, logger)
	}
	return &Engine{rules: rules, model: model, logger: logger.Named("sla")}
}

func (e *Engine) Tables() Tables {
	return e.rules.Tables()
}

func (e *Engine) ModelAvailable() bool {
	return e.model.Available()
}

// Predict estimates resolution time for in as submitted at now.
func (e *Engine) Predict(in Input, now time.Time) Prediction {
	in = in.WithDefaults(now)
	priority := ParsePriority(in.Priority)

	ruleHours, factors, ruleNote := e.rules.Predict(in)
	est := e.model.Predict(in)

	ruleWeight, modelWeight := 1.0, 0.0
	final := ruleHours
	if est.Source == SourceModel {
		modelWeight = maxModelWeight * est.Confidence
		ruleWeight = 1 - modelWeight
		final = ruleHours*ruleWeight + est.Hours*modelWeight
	}
	final = round(final, 1)

	confidence := ruleConfidence
	if modelWeight > 0 {
		confidence = ruleConfidence*ruleWeight + est.Confidence*modelWeight
	}

	breach := breachProbability(final, priority, in.confidence())

	p := Prediction{
		PredictedHours:    final,
		BreachProbability: round(breach, 3),
		RiskLevel:         riskLevel(breach, priority),
		Explanation:       explain(ruleNote, est, modelWeight, final),
		Confidence:        round(confidence, 2),
		Factors:           factors,
		RuleHours:         ruleHours,
		ModelHours:        round(est.Hours, 1),
		ModelSource:       est.Source,
		ModelConfidence:   est.Confidence,
		RuleWeight:        round(ruleWeight, 2),
		ModelWeight:       round(modelWeight, 2),
		Deadline:          now.Add(time.Duration(final * float64(time.Hour))).UTC(),
	}

	e.logger.Debug("sla predicted",
		zap.Float64("hours", p.PredictedHours),
		zap.String("risk", string(p.RiskLevel)),
		zap.String("model_source", est.Source),
	)
	return p
}

// breachProbability scales the priority base rate by how tight the window
// is and by the caller's uncertainty.
func breachProbability(hours float64, priority Priority, confidence float64) float64 {
	base, ok := breachBase[priority]
	if !ok {
		base = breachBase[PriorityMedium]
	}

	var tight float64
	switch {
	case hours < 8:
		tight = 1.3
	case hours < 24:
		tight = 1.0
	case hours < 48:
		tight = 0.9
	default:
		tight = 0.8
	}

	uncertainty := 1 + (1-confidence)*0.3
	return math.Min(1, math.Max(0, base*tight*uncertainty))
}

// riskLevel lets probability raise the level above what priority implies,
// never lower it.
func riskLevel(breach float64, priority Priority) RiskLevel {
	switch {
	case priority == PriorityCritical || breach > 0.3:
		return RiskCritical
	case priority == PriorityHigh || breach > 0.2:
		return RiskHigh
	case breach > 0.1:
		return RiskMedium
	default:
		return RiskLow
	}
}

func explain(ruleNote string, est ModelEstimate, modelWeight, final float64) string {
	if modelWeight > 0 {
		return fmt.Sprintf("%s Model predicts %.1fh (weight: %.0f%%). Combined prediction: %.1fh",
			ruleNote, est.Hours, modelWeight*100, final)
	}
	return fmt.Sprintf("%s Final prediction: %.1f hours", ruleNote, final)
}
