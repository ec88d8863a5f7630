package sla

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTracker_Summary(t *testing.T) {
	tracker := NewTracker()

	empty := tracker.Summary()
	assert.Zero(t, empty.TotalPredictions)
	assert.Zero(t, empty.AvgPredictedHours)
	assert.Len(t, empty.PredictionsByRisk, 4)

	tracker.Record(Prediction{PredictedHours: 10, BreachProbability: 0.1, RiskLevel: RiskLow})
	tracker.Record(Prediction{PredictedHours: 30, BreachProbability: 0.3, RiskLevel: RiskCritical})

	s := tracker.Summary()
	assert.Equal(t, int64(2), s.TotalPredictions)
	assert.InDelta(t, 20.0, s.AvgPredictedHours, 1e-9)
	assert.InDelta(t, 0.2, s.AvgBreachProbability, 1e-9)
	assert.Equal(t, int64(1), s.PredictionsByRisk[RiskLow])
	assert.Equal(t, int64(1), s.PredictionsByRisk[RiskCritical])
	assert.Equal(t, int64(0), s.PredictionsByRisk[RiskHigh])
}

func TestTracker_Concurrent(t *testing.T) {
	tracker := NewTracker()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tracker.Record(Prediction{PredictedHours: 2, RiskLevel: RiskMedium})
		}()
	}
	wg.Wait()

	s := tracker.Summary()
	assert.Equal(t, int64(50), s.TotalPredictions)
	assert.Equal(t, int64(50), s.PredictionsByRisk[RiskMedium])
}
