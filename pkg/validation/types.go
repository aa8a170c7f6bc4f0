package validation

import "github.com/goclaw/taskflow/pkg/definition"

// ResultStatus is the verdict of one rule against one entity.
type ResultStatus string

const (
	StatusPass    ResultStatus = "pass"
	StatusFail    ResultStatus = "fail"
	StatusWarning ResultStatus = "warning"
	StatusInfo    ResultStatus = "info"
)

// Result is produced for every active rule on every run. It is never stored.
type Result struct {
	RuleID        string                  `json:"ruleId"`
	RuleName      string                  `json:"ruleName"`
	Status        ResultStatus            `json:"status"`
	Message       string                  `json:"message"`
	Field         string                  `json:"field,omitempty"`
	FieldValue    any                     `json:"fieldValue"`
	ExpectedValue any                     `json:"expectedValue,omitempty"`
	CanAutoFix    bool                    `json:"canAutoFix"`
	Severity      definition.Severity     `json:"severity"`
	Category      definition.RuleCategory `json:"category"`
}

// Passed reports whether the rule was satisfied.
func (r Result) Passed() bool {
	return r.Status == StatusPass
}

// IssueCounts counts non-passing results per rule severity.
type IssueCounts struct {
	Critical int `json:"critical"`
	High     int `json:"high"`
	Medium   int `json:"medium"`
	Low      int `json:"low"`
}

// Map returns the counts keyed by severity name.
func (c IssueCounts) Map() map[string]int {
	return map[string]int{
		string(definition.SeverityCritical): c.Critical,
		string(definition.SeverityHigh):     c.High,
		string(definition.SeverityMedium):   c.Medium,
		string(definition.SeverityLow):      c.Low,
	}
}

// QualityMetrics is the scorecard derived from one run. Every score is in
// [0, 100].
type QualityMetrics struct {
	Completeness      int         `json:"completeness"`
	Clarity           int         `json:"clarity"`
	Feasibility       int         `json:"feasibility"`
	PriorityAlignment int         `json:"priorityAlignment"`
	OverallScore      int         `json:"overallScore"`
	Issues            IssueCounts `json:"issues"`
}

// Report bundles the results of a run with their metrics.
type Report struct {
	Results []Result       `json:"results"`
	Metrics QualityMetrics `json:"metrics"`
	Passed  bool           `json:"passed"`
}
