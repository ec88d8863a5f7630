// Package sla predicts ticket resolution time and breach risk by blending a
// deterministic rule table with a trained or statistical model estimate.
package sla

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/smartclaim/triage/internal/domain"
)

type Category string

const (
	CategorySafety      Category = "safety"
	CategoryQuality     Category = "quality"
	CategoryMaintenance Category = "maintenance"
	CategoryLogistics   Category = "logistics"
	CategoryHR          Category = "hr"
	CategoryIT          Category = "IT"
	CategoryLegal       Category = "legal"
	CategoryFinance     Category = "finance"
	CategoryOther       Category = "other"
)

// categories is ordered; a category's index is its model encoding.
var categories = []Category{
	CategorySafety, CategoryQuality, CategoryMaintenance, CategoryLogistics,
	CategoryHR, CategoryIT, CategoryLegal, CategoryFinance, CategoryOther,
}

// ParseCategory is case-insensitive. Unknown values map to CategoryOther.
func ParseCategory(s string) Category {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, c := range categories {
		if strings.ToLower(string(c)) == s {
			return c
		}
	}
	return CategoryOther
}

type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// ParsePriority is case-insensitive. Unknown values map to PriorityMedium.
func ParsePriority(s string) Priority {
	switch p := Priority(strings.ToLower(strings.TrimSpace(s))); p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
		return p
	default:
		return PriorityMedium
	}
}

func (p Priority) rank() int {
	switch p {
	case PriorityLow:
		return 0
	case PriorityHigh:
		return 2
	case PriorityCritical:
		return 3
	default:
		return 1
	}
}

type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

const (
	defaultConfidence  = 0.8
	defaultSourceCount = 1
)

// Input is the prediction request. Optional numeric fields are pointers so
// that an explicit zero is distinguishable from "not provided".
type Input struct {
	Category            string   `json:"category"`
	Priority            string   `json:"priority"`
	DescriptionLength   int      `json:"description_length"`
	HasAttachments      bool     `json:"has_attachments"`
	HasVisualEvidence   bool     `json:"has_visual_evidence"`
	VisualSeverity      string   `json:"visual_severity,omitempty"`
	SourceCount         int      `json:"source_count,omitempty"`
	ConfidenceScore     *float64 `json:"confidence_score,omitempty"`
	RequiresHumanReview bool     `json:"requires_human_review"`
	DepartmentWorkload  *float64 `json:"department_workload,omitempty"`
	HourOfDay           *int     `json:"hour_of_day,omitempty"`
	DayOfWeek           *int     `json:"day_of_week,omitempty"`
	Keywords            []string `json:"keywords,omitempty"`
}

// Validate checks ranges. It does not normalize category or priority; those
// fall back to "other" and "medium".
func (in Input) Validate() error {
	if strings.TrimSpace(in.Category) == "" {
		return fmt.Errorf("%w: category is required", domain.ErrInvalidSLAInput)
	}
	if strings.TrimSpace(in.Priority) == "" {
		return fmt.Errorf("%w: priority is required", domain.ErrInvalidSLAInput)
	}
	if in.DescriptionLength < 0 {
		return fmt.Errorf("%w: description_length must be >= 0", domain.ErrInvalidSLAInput)
	}
	if in.SourceCount < 0 {
		return fmt.Errorf("%w: source_count must be >= 1", domain.ErrInvalidSLAInput)
	}
	if c := in.ConfidenceScore; c != nil && (*c < 0 || *c > 1) {
		return fmt.Errorf("%w: confidence_score must be within [0, 1]", domain.ErrInvalidSLAInput)
	}
	if w := in.DepartmentWorkload; w != nil && (*w < 0 || *w > 1) {
		return fmt.Errorf("%w: department_workload must be within [0, 1]", domain.ErrInvalidSLAInput)
	}
	if h := in.HourOfDay; h != nil && (*h < 0 || *h > 23) {
		return fmt.Errorf("%w: hour_of_day must be within [0, 23]", domain.ErrInvalidSLAInput)
	}
	if d := in.DayOfWeek; d != nil && (*d < 0 || *d > 6) {
		return fmt.Errorf("%w: day_of_week must be within [0, 6]", domain.ErrInvalidSLAInput)
	}
	return nil
}

// WithDefaults fills unset fields. Hour and weekday come from now, with
// Monday as day 0.
func (in Input) WithDefaults(now time.Time) Input {
	if in.SourceCount == 0 {
		in.SourceCount = defaultSourceCount
	}
	if in.ConfidenceScore == nil {
		c := defaultConfidence
		in.ConfidenceScore = &c
	}
	if in.HourOfDay == nil {
		h := now.Hour()
		in.HourOfDay = &h
	}
	if in.DayOfWeek == nil {
		d := (int(now.Weekday()) + 6) % 7
		in.DayOfWeek = &d
	}
	return in
}

func (in Input) confidence() float64 {
	if in.ConfidenceScore == nil {
		return defaultConfidence
	}
	return *in.ConfidenceScore
}

// DecodeInput reads a JSON Input and rejects unknown fields.
func DecodeInput(r io.Reader) (Input, error) {
	var in Input
	if err := decodeStrict(r, &in); err != nil {
		return Input{}, err
	}
	if err := in.Validate(); err != nil {
		return Input{}, err
	}
	return in, nil
}

// Hints are the SLA extras an evidence aggregator attaches.
type Hints struct {
	VisualSeverity      string   `json:"visual_severity,omitempty"`
	HasVisualEvidence   bool     `json:"has_visual_evidence,omitempty"`
	Category            string   `json:"category,omitempty"`
	Priority            string   `json:"priority,omitempty"`
	Confidence          *float64 `json:"confidence,omitempty"`
	RequiresHumanReview bool     `json:"requires_human_review,omitempty"`
	SourceCount         int      `json:"source_count,omitempty"`
}

// CategoryVote is one evidence source's category vote.
type CategoryVote struct {
	Source     string  `json:"source"`
	Category   string  `json:"category"`
	Confidence float64 `json:"confidence"`
	Weight     float64 `json:"weight"`
}

// AggregatedEvidence is the output of the upstream evidence aggregator.
// Only the classification, visual and review fields feed the prediction.
type AggregatedEvidence struct {
	SourcesUsed         []string       `json:"sources_used,omitempty"`
	FinalCategory       string         `json:"final_category"`
	FinalPriority       string         `json:"final_priority"`
	CategoryConfidence  *float64       `json:"category_confidence,omitempty"`
	CategoryVotes       []CategoryVote `json:"category_votes,omitempty"`
	UnifiedSummary      string         `json:"unified_summary,omitempty"`
	AllKeywords         []string       `json:"all_keywords,omitempty"`
	HasVisualEvidence   bool           `json:"has_visual_evidence"`
	VisualSeverity      string         `json:"visual_severity,omitempty"`
	DetectedObjects     []string       `json:"detected_objects,omitempty"`
	RequiresHumanReview bool           `json:"requires_human_review"`
	HumanReviewReasons  []string       `json:"human_review_reasons,omitempty"`
	SourceCount         int            `json:"source_count,omitempty"`
	SLAHints            *Hints         `json:"sla_hints,omitempty"`
	ProcessingTimeMS    float64        `json:"processing_time_ms,omitempty"`
	AggregationVersion  string         `json:"aggregation_version,omitempty"`
}

// ToInput maps aggregator output onto an Input. An explicit visual severity
// wins over the hint. The source count falls back to the hint, then to
// the number of sources used.
func (a AggregatedEvidence) ToInput() Input {
	severity := a.VisualSeverity
	sources := a.SourceCount
	if a.SLAHints != nil {
		if severity == "" {
			severity = a.SLAHints.VisualSeverity
		}
		if sources == 0 {
			sources = a.SLAHints.SourceCount
		}
	}
	if sources == 0 {
		sources = len(a.SourcesUsed)
	}
	return Input{
		Category:            a.FinalCategory,
		Priority:            a.FinalPriority,
		HasVisualEvidence:   a.HasVisualEvidence,
		VisualSeverity:      severity,
		SourceCount:         sources,
		ConfidenceScore:     a.CategoryConfidence,
		RequiresHumanReview: a.RequiresHumanReview,
	}
}

// DecodeAggregated reads aggregator JSON and returns the validated Input it
// maps to. Fields the aggregator adds later are ignored.
func DecodeAggregated(r io.Reader) (Input, error) {
	var a AggregatedEvidence
	if err := decode(r, &a, false); err != nil {
		return Input{}, err
	}
	in := a.ToInput()
	if err := in.Validate(); err != nil {
		return Input{}, err
	}
	return in, nil
}

func decodeStrict(r io.Reader, v any) error {
	return decode(r, v, true)
}

func decode(r io.Reader, v any, strict bool) error {
	dec := json.NewDecoder(r)
	if strict {
		dec.DisallowUnknownFields()
	}
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidSLAInput, err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: trailing data after JSON body", domain.ErrInvalidSLAInput)
	}
	return nil
}

// Factor is one named contribution to the rule estimate.
type Factor struct {
	Name   string  `json:"name"`
	Impact string  `json:"impact"`
	Weight float64 `json:"weight"`
}

const (
	ImpactPositive = "positive"
	ImpactNegative = "negative"
)

// Prediction is the combined estimate. Both component estimates and their
// blend weights are always present.
type Prediction struct {
	PredictedHours    float64   `json:"predicted_resolution_hours"`
	BreachProbability float64   `json:"breach_probability"`
	RiskLevel         RiskLevel `json:"risk_level"`
	Explanation       string    `json:"explanation"`
	Confidence        float64   `json:"confidence"`
	Factors           []Factor  `json:"factors"`
	RuleHours         float64   `json:"rule_based_hours"`
	ModelHours        float64   `json:"ml_based_hours"`
	ModelSource       string    `json:"ml_source"`
	ModelConfidence   float64   `json:"ml_confidence"`
	RuleWeight        float64   `json:"hybrid_weight_rule"`
	ModelWeight       float64   `json:"hybrid_weight_ml"`
	Deadline          time.Time `json:"sla_deadline"`
}
