package validation

import (
	"math"

	"github.com/goclaw/taskflow/pkg/definition"
)

// ComputeQualityMetrics scores results. totalRuleCount is the number of
// rules the run was meant to cover; with no rules completeness is 100.
// The four components are rounded on their own; the overall score is the
// rounded average of the unrounded components.
func ComputeQualityMetrics(results []Result, totalRuleCount int) QualityMetrics {
	var (
		passed   int
		warnings int
		issues   IssueCounts
	)
	for _, r := range results {
		if r.Passed() {
			passed++
			continue
		}
		if r.Status == StatusWarning {
			warnings++
		}
		switch r.Severity {
		case definition.SeverityCritical:
			issues.Critical++
		case definition.SeverityHigh:
			issues.High++
		case definition.SeverityMedium:
			issues.Medium++
		case definition.SeverityLow:
			issues.Low++
		}
	}

	completeness := 100.0
	if totalRuleCount > 0 {
		completeness = clamp(100 * float64(passed) / float64(totalRuleCount))
	}
	clarity := clamp(100 - 10*float64(warnings))
	feasibility := clamp(100 - 15*float64(issues.High) - 25*float64(issues.Critical))
	alignment := clamp(100 - 5*float64(issues.Medium))
	overall := clamp((completeness + clarity + feasibility + alignment) / 4)

	return QualityMetrics{
		Completeness:      round(completeness),
		Clarity:           round(clarity),
		Feasibility:       round(feasibility),
		PriorityAlignment: round(alignment),
		OverallScore:      round(overall),
		Issues:            issues,
	}
}

func clamp(v float64) float64 {
	return math.Max(0, math.Min(100, v))
}

func round(v float64) int {
	return int(math.Round(v))
}
