package sla

import (
	"fmt"
	"maps"
	"math"
	"strings"
)

const (
	reviewBufferHours      = 4.0
	weekendBufferHours     = 16.0
	workloadThreshold      = 0.8
	workloadPenaltyPerUnit = 24.0
	sourceDiscount         = 0.95
	minHours               = 1.0
)

// Tables is the rule configuration exposed on /sla/config.
type Tables struct {
	BaseHours           map[Category]float64 `json:"base_sla_hours"`
	PriorityMultipliers map[Priority]float64 `json:"priority_multipliers"`
	SeverityMultipliers map[string]float64   `json:"visual_severity_multipliers"`
	ReviewBufferHours   float64              `json:"review_buffer_hours"`
	WeekendBufferHours  float64              `json:"weekend_buffer_hours"`
	WorkloadThreshold   float64              `json:"workload_threshold"`
	SourceDiscount      float64              `json:"source_discount"`
}

// DefaultTables returns a fresh copy of the built-in rule tables.
func DefaultTables() Tables {
	return Tables{
		BaseHours: map[Category]float64{
			CategorySafety:      4,
			CategoryQuality:     24,
			CategoryMaintenance: 48,
			CategoryLogistics:   24,
			CategoryHR:          72,
			CategoryIT:          16,
			CategoryLegal:       120,
			CategoryFinance:     72,
			CategoryOther:       48,
		},
		PriorityMultipliers: map[Priority]float64{
			PriorityCritical: 0.25,
			PriorityHigh:     0.5,
			PriorityMedium:   1.0,
			PriorityLow:      1.5,
		},
		SeverityMultipliers: map[string]float64{
			"critical": 0.5,
			"high":     0.75,
			"medium":   1.0,
			"low":      1.2,
		},
		ReviewBufferHours:  reviewBufferHours,
		WeekendBufferHours: weekendBufferHours,
		WorkloadThreshold:  workloadThreshold,
		SourceDiscount:     sourceDiscount,
	}
}

// RuleEngine is the deterministic estimator.
type RuleEngine struct {
	tables Tables
}

func NewRuleEngine() *RuleEngine {
	return &RuleEngine{tables: DefaultTables()}
}

// Tables returns a copy of the engine's rule tables.
func (r *RuleEngine) Tables() Tables {
	t := r.tables
	t.BaseHours = maps.Clone(r.tables.BaseHours)
	t.PriorityMultipliers = maps.Clone(r.tables.PriorityMultipliers)
	t.SeverityMultipliers = maps.Clone(r.tables.SeverityMultipliers)
	return t
}

// Predict computes hours from the multiplicative part (category, priority,
// visual severity, evidence sources), floors it at one hour, then adds the
// fixed buffers. Factors are listed in evaluation order.
func (r *RuleEngine) Predict(in Input) (float64, []Factor, string) {
	var (
		factors []Factor
		notes   []string
	)

	category := ParseCategory(in.Category)
	base, ok := r.tables.BaseHours[category]
	if !ok {
		base = r.tables.BaseHours[CategoryOther]
	}
	impact := ImpactNegative
	if base <= 24 {
		impact = ImpactPositive
	}
	factors = append(factors, Factor{Name: "Category: " + string(category), Impact: impact, Weight: 0.3})
	notes = append(notes, fmt.Sprintf("Base SLA for %s: %gh", category, base))

	priority := ParsePriority(in.Priority)
	mult := r.tables.PriorityMultipliers[priority]
	hours := base * mult
	switch {
	case mult < 1:
		factors = append(factors, Factor{Name: "Priority: " + string(priority), Impact: ImpactPositive, Weight: 0.25})
		notes = append(notes, fmt.Sprintf("%s priority reduces SLA by %d%%", priority, int(math.Round((1-mult)*100))))
	case mult > 1:
		factors = append(factors, Factor{Name: "Priority: " + string(priority), Impact: ImpactNegative, Weight: 0.15})
		notes = append(notes, fmt.Sprintf("%s priority extends SLA by %d%%", priority, int(math.Round((mult-1)*100))))
	}

	if in.HasVisualEvidence && in.VisualSeverity != "" {
		sev, ok := r.tables.SeverityMultipliers[strings.ToLower(in.VisualSeverity)]
		if !ok {
			sev = 1
		}
		hours *= sev
		if sev < 1 {
			factors = append(factors, Factor{Name: "Visual severity: " + in.VisualSeverity, Impact: ImpactPositive, Weight: 0.2})
			notes = append(notes, fmt.Sprintf("Visual evidence of %s severity", in.VisualSeverity))
		}
	}

	var extra float64

	if in.RequiresHumanReview {
		extra += r.tables.ReviewBufferHours
		factors = append(factors, Factor{Name: "Requires human review", Impact: ImpactNegative, Weight: 0.15})
		notes = append(notes, fmt.Sprintf("Human review required (+%gh)", r.tables.ReviewBufferHours))
	}

	if in.DayOfWeek != nil && *in.DayOfWeek >= 5 {
		extra += r.tables.WeekendBufferHours
		factors = append(factors, Factor{Name: "Weekend submission", Impact: ImpactNegative, Weight: 0.1})
		notes = append(notes, fmt.Sprintf("Weekend submission (+%gh)", r.tables.WeekendBufferHours))
	}

	if w := in.DepartmentWorkload; w != nil && *w > r.tables.WorkloadThreshold {
		penalty := (*w - r.tables.WorkloadThreshold) * workloadPenaltyPerUnit
		extra += penalty
		factors = append(factors, Factor{Name: "High department workload", Impact: ImpactNegative, Weight: 0.1})
		notes = append(notes, fmt.Sprintf("Department overloaded (+%.0fh)", penalty))
	}

	if in.SourceCount > 1 {
		hours *= math.Pow(r.tables.SourceDiscount, float64(in.SourceCount-1))
		factors = append(factors, Factor{
			Name:   fmt.Sprintf("Multiple evidence sources (%d)", in.SourceCount),
			Impact: ImpactPositive,
			Weight: 0.1,
		})
		notes = append(notes, fmt.Sprintf("%d evidence sources help diagnosis", in.SourceCount))
	}

	hours = math.Max(minHours, round(hours, 1))
	return round(hours+extra, 1), factors, strings.Join(notes, ". ")
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
