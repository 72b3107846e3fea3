// Package scoring turns a severity summary into the site health score
// shown on the clinic dashboard.
package scoring

import "github.com/codeclinic/codeclinic/pkg/finding"

// Per-finding deductions from a perfect score of 100. A handful of
// high-risk findings should be enough to fail a site, while
// informational noise barely moves the needle.
const (
	deductHigh   = 15
	deductMedium = 8
	deductLow    = 3
	deductInfo   = 1
)

// Result is the computed site health.
type Result struct {
	Score int    `json:"score"`
	Grade string `json:"grade"`
}

// Calculate computes the health score for a severity summary. The score
// is bounded to 0-100 and fully determined by the counts.
func Calculate(s finding.Summary) Result {
	score := 100 -
		s.HighRisk*deductHigh -
		s.MediumRisk*deductMedium -
		s.LowRisk*deductLow -
		s.Info*deductInfo
	if score < 0 {
		score = 0
	}
	return Result{Score: score, Grade: Grade(score)}
}

// Grade maps a score to the letter grade used by the dashboard.
func Grade(score int) string {
	switch {
	case score >= 90:
		return "A"
	case score >= 80:
		return "B"
	case score >= 70:
		return "C"
	case score >= 60:
		return "D"
	default:
		return "F"
	}
}
