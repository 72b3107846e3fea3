package finding

// Summary counts findings by severity for the dashboard header and the
// health score calculation.
type Summary struct {
	TotalIssues int `json:"total_issues"`
	HighRisk    int `json:"high_risk"`
	MediumRisk  int `json:"medium_risk"`
	LowRisk     int `json:"low_risk"`
	Info        int `json:"info"`
}

// Summarize tallies vulnerabilities into a Summary. Unknown severities
// count as informational rather than being dropped.
func Summarize(vulns []Vulnerability) Summary {
	s := Summary{TotalIssues: len(vulns)}
	for _, v := range vulns {
		switch v.Severity {
		case High:
			s.HighRisk++
		case Medium:
			s.MediumRisk++
		case Low:
			s.LowRisk++
		default:
			s.Info++
		}
	}
	return s
}
