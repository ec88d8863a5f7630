package sla

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const modelJSON = `{
	"name": "sla-linear",
	"intercept": 40,
	"coefficients": {"priority_encoded": -8, "requires_human_review": 5},
	"confidence": 0.9
}`

type MockObjectGetter struct {
	mock.Mock
}

func (m *MockObjectGetter) GetObject(ctx context.Context, bucket, key string) ([]byte, error) {
	args := m.Called(ctx, bucket, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func TestFeatures(t *testing.T) {
	f := Features(Input{Category: "it", Priority: "critical", VisualSeverity: "", HasAttachments: true})

	assert.Equal(t, 5.0, f[FeatureCategory])
	assert.Equal(t, 3.0, f[FeaturePriority])
	assert.Equal(t, 1.0, f[FeatureSeverity])
	assert.Equal(t, 1.0, f[FeatureAttachments])
	assert.Equal(t, 1.0, f[FeatureSourceCount])
	assert.Equal(t, 0.8, f[FeatureConfidence])
	assert.Equal(t, 12.0, f[FeatureHour])
	assert.Equal(t, 2.0, f[FeatureWeekday])
	assert.Equal(t, 0.5, f[FeatureWorkload])
	assert.Len(t, f, len(FeatureNames))

	f = Features(Input{Category: "plumbing", Priority: "low", VisualSeverity: "high", HourOfDay: intPtr(0), DepartmentWorkload: floatPtr(0)})
	assert.Equal(t, 8.0, f[FeatureCategory])
	assert.Equal(t, 0.0, f[FeaturePriority])
	assert.Equal(t, 2.0, f[FeatureSeverity])
	assert.Equal(t, 0.0, f[FeatureHour])
	assert.Equal(t, 0.0, f[FeatureWorkload])
}

func TestParseModel(t *testing.T) {
	m, err := ParseModel([]byte(modelJSON))
	require.NoError(t, err)
	assert.Equal(t, "sla-linear", m.Name)
	assert.Equal(t, 0.9, m.Confidence())

	hours, err := m.Predict(Features(Input{Category: "safety", Priority: "high", RequiresHumanReview: true}))
	require.NoError(t, err)
	assert.InDelta(t, 40-16+5, hours, 1e-9)

	_, err = ParseModel([]byte(`{"intercept": 1, "coefficients": {"moon_phase": 2}}`))
	assert.Error(t, err)

	_, err = ParseModel([]byte(`{"intercept": 1, "coefficients": {}}`))
	assert.Error(t, err)

	_, err = ParseModel([]byte(`{"intercept": 1, "coefficients": {"source_count": 1}, "confidence": 2}`))
	assert.Error(t, err)

	m, err = ParseModel([]byte(`{"intercept": 1, "coefficients": {"source_count": 1}}`))
	require.NoError(t, err)
	assert.Equal(t, defaultModelConfidence, m.Confidence())
}

func TestLoadModel_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.json")
	require.NoError(t, os.WriteFile(path, []byte(modelJSON), 0o600))

	m, err := LoadModel(context.Background(), path, nil)
	require.NoError(t, err)
	assert.Equal(t, 40.0, m.Intercept)

	_, err = LoadModel(context.Background(), filepath.Join(t.TempDir(), "missing.json"), nil)
	assert.Error(t, err)
}

func TestLoadModel_FromObjectStorage(t *testing.T) {
	ctx := context.Background()
	objects := new(MockObjectGetter)
	objects.On("GetObject", ctx, "models", "sla/current.json").Return([]byte(modelJSON), nil)
	objects.On("GetObject", ctx, "models", "sla/gone.json").Return(nil, errors.New("no such key"))

	m, err := LoadModel(ctx, "s3://models/sla/current.json", objects)
	require.NoError(t, err)
	assert.Equal(t, 0.9, m.Confidence())

	_, err = LoadModel(ctx, "s3://models/sla/gone.json", objects)
	assert.Error(t, err)

	_, err = LoadModel(ctx, "s3://models/sla/current.json", nil)
	assert.Error(t, err)

	objects.AssertExpectations(t)
}

func TestModelEngine_ClampsToOneHour(t *testing.T) {
	model := &LinearModel{Intercept: -50, Coefficients: map[string]float64{FeatureSourceCount: 1}}
	est := NewModelEngine(model, nil).Predict(Input{Category: "safety", Priority: "low"})

	assert.Equal(t, 1.0, est.Hours)
	assert.Equal(t, SourceModel, est.Source)
	assert.Equal(t, defaultModelConfidence, est.Confidence)
}

func TestModelEngine_Baseline(t *testing.T) {
	engine := NewModelEngine(nil, nil)

	tests := []struct {
		category, priority string
		hours              float64
	}{
		{"safety", "critical", 1},
		{"safety", "high", 11},
		{"hr", "low", 63},
		{"IT", "medium", 31},
		{"legal", "medium", 36},
	}
	for _, tt := range tests {
		est := engine.Predict(Input{Category: tt.category, Priority: tt.priority})
		assert.Equal(t, tt.hours, est.Hours, "%s/%s", tt.category, tt.priority)
		assert.Equal(t, SourceBaseline, est.Source)
		assert.Equal(t, baselineConfidence, est.Confidence)
	}
}
