package sla

import "sync"

// Summary is the running prediction summary served on /sla/metrics.
type Summary struct {
	TotalPredictions     int64               `json:"total_predictions"`
	AvgPredictedHours    float64             `json:"avg_predicted_hours"`
	AvgBreachProbability float64             `json:"avg_breach_probability"`
	PredictionsByRisk    map[RiskLevel]int64 `json:"predictions_by_risk"`
}

// Tracker accumulates predictions. Safe for concurrent use.
type Tracker struct {
	mu        sync.Mutex
	total     int64
	sumHours  float64
	sumBreach float64
	byRisk    map[RiskLevel]int64
}

func NewTracker() *Tracker {
	return &Tracker{byRisk: map[RiskLevel]int64{
		RiskLow: 0, RiskMedium: 0, RiskHigh: 0, RiskCritical: 0,
	}}
}

func (t *Tracker) Record(p Prediction) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.total++
	t.sumHours += p.PredictedHours
	t.sumBreach += p.BreachProbability
	t.byRisk[p.RiskLevel]++
}

func (t *Tracker) Summary() Summary {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := Summary{
		TotalPredictions:  t.total,
		PredictionsByRisk: make(map[RiskLevel]int64, len(t.byRisk)),
	}
	for k, v := range t.byRisk {
		s.PredictionsByRisk[k] = v
	}
	if t.total > 0 {
		s.AvgPredictedHours = t.sumHours / float64(t.total)
		s.AvgBreachProbability = t.sumBreach / float64(t.total)
	}
	return s
}
