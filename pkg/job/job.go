// Package job defines the scan job model shared by the store, the
// orchestrator and the HTTP layer: job records, their status machine
// and the phase-weighted progress mapping.
package job

import (
	"encoding/hex"
	"time"

	"github.com/google/uuid"

	"github.com/codeclinic/codeclinic/pkg/finding"
)

// Status is the lifecycle state of a scan job.
type Status string

const (
	StatusPending             Status = "pending"
	StatusCrawling            Status = "crawling"
	StatusWaitingForSelection Status = "waiting_for_selection"
	StatusScanning            Status = "scanning"
	StatusCompleted           Status = "completed"
	StatusFailed              Status = "failed"
	StatusCancelled           Status = "cancelled"
)

// IsTerminal reports whether no further transitions are allowed.
// Failed jobs are not retried; callers resubmit instead.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// IsValid reports whether s is a known status.
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusCrawling, StatusWaitingForSelection,
		StatusScanning, StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// CanTransition reports whether moving from s to next is legal.
func (s Status) CanTransition(next Status) bool {
	if s.IsTerminal() {
		return false
	}
	switch s {
	case StatusPending:
		return next == StatusCrawling || next == StatusFailed || next == StatusCancelled
	case StatusCrawling:
		return next == StatusWaitingForSelection || next == StatusScanning ||
			next == StatusFailed || next == StatusCancelled
	case StatusWaitingForSelection:
		return next == StatusScanning || next == StatusFailed || next == StatusCancelled
	case StatusScanning:
		return next == StatusCompleted || next == StatusFailed || next == StatusCancelled
	}
	return false
}

// ScanType selects how much of the site gets scanned.
type ScanType string

const (
	// ScanFullSite crawls and scans everything automatically.
	ScanFullSite ScanType = "full_site"

	// ScanSelectivePages pauses after the crawl so the caller can pick
	// which discovered pages to scan.
	ScanSelectivePages ScanType = "selective_pages"
)

// IsValid reports whether t is a known scan type.
func (t ScanType) IsValid() bool {
	return t == ScanFullSite || t == ScanSelectivePages
}

// Phase names the current stage of a running scan.
const (
	PhaseSetup      = "setup"
	PhaseSpider     = "spider"
	PhaseActiveScan = "active_scan"
	PhaseProcessing = "processing"
	PhaseDone       = "done"
)

// Overall progress checkpoints. Each scanner phase maps into its own
// slice of the 0-100 range so the bar never moves backwards.
const (
	ProgressValidated  = 10
	ProgressSetup      = 20
	ProgressProcessing = 95
	ProgressDone       = 100
)

// SpiderProgress maps a spider percentage (0-100) into the 30-60 band.
func SpiderProgress(pct int) int {
	return clampPct(30 + pct*30/100)
}

// ActiveScanProgress maps an active scan percentage into the 70-95 band.
func ActiveScanProgress(pct int) int {
	return clampPct(70 + pct*25/100)
}

func clampPct(p int) int {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}

// Job is a single scan job record.
type Job struct {
	ID          string     `json:"id"`
	URL         string     `json:"url"`
	ScanType    ScanType   `json:"scan_type"`
	Status      Status     `json:"status"`
	Progress    int        `json:"progress"`
	Phase       string     `json:"phase,omitempty"`
	Pages       []string   `json:"pages,omitempty"`
	Error       string     `json:"error,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// New builds a pending job for url.
func New(url string, scanType ScanType) *Job {
	return &Job{
		ID:        NewID(),
		URL:       url,
		ScanType:  scanType,
		Status:    StatusPending,
		CreatedAt: time.Now().UTC(),
	}
}

// Result is the finished output of a scan.
type Result struct {
	ScanID          string                  `json:"scan_id"`
	URL             string                  `json:"url"`
	Vulnerabilities []finding.Vulnerability `json:"vulnerabilities"`
	Summary         finding.Summary         `json:"summary"`
	HealthScore     int                     `json:"health_score"`
	Grade           string                  `json:"grade"`
	PagesScanned    []string                `json:"pages_scanned,omitempty"`
	CompletedAt     time.Time               `json:"completed_at"`
}

// NewID returns a fresh scan id of the form "scan_<12 hex chars>".
func NewID() string {
	u := uuid.New()
	return "scan_" + hex.EncodeToString(u[:6])
}
