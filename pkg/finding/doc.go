// Package finding provides the canonical vulnerability finding types
// shared across the scan pipeline, the scoring engine and the quiz
// generator.
//
// The external scanner reports alerts in its own vocabulary; the zap
// package converts them into finding.Vulnerability so the rest of the
// service never depends on scanner-specific field names.
package finding
