package finding

import "errors"

// Sentinel errors for common scan failure modes.
// Callers should use errors.Is() to check for these.
var (
	// ErrScannerUnavailable indicates the external scanner could not
	// be reached (connection refused, DNS failure, non-200 probe).
	ErrScannerUnavailable = errors.New("finding: scanner unavailable")

	// ErrScanTimeout indicates a scan phase did not finish within its
	// configured deadline.
	ErrScanTimeout = errors.New("finding: scan timed out")

	// ErrTargetUnreachable indicates the target URL did not respond
	// to the pre-scan accessibility check.
	ErrTargetUnreachable = errors.New("finding: target unreachable")
)
