package finding

// Severity represents the severity level of a security finding.
// Values are lowercase strings matching what the scanner client emits
// and what the frontend renders.
type Severity string

const (
	// High represents significant impact requiring prompt fix
	// (SQL injection, stored XSS).
	High Severity = "high"

	// Medium represents moderate impact (reflected XSS, CSRF,
	// missing CSP).
	Medium Severity = "medium"

	// Low represents limited impact (missing hardening headers,
	// verbose errors).
	Low Severity = "low"

	// Informational represents findings with no direct security
	// impact.
	Informational Severity = "informational"
)

// IsValid reports whether s is a recognized severity level.
func (s Severity) IsValid() bool {
	switch s {
	case High, Medium, Low, Informational:
		return true
	}
	return false
}

// Score returns a numeric score for sorting and comparison.
// High=3, Medium=2, Low=1, Informational=0, unknown=-1.
func (s Severity) Score() int {
	switch s {
	case High:
		return 3
	case Medium:
		return 2
	case Low:
		return 1
	case Informational:
		return 0
	default:
		return -1
	}
}

// String returns the severity as a string.
func (s Severity) String() string {
	return string(s)
}

// Confidence represents how certain the scanner is about a finding.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)
