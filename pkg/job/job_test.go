package job

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusTransitions(t *testing.T) {
	t.Parallel()
	allowed := []struct{ from, to Status }{
		{StatusPending, StatusCrawling},
		{StatusPending, StatusFailed},
		{StatusCrawling, StatusScanning},
		{StatusCrawling, StatusWaitingForSelection},
		{StatusWaitingForSelection, StatusScanning},
		{StatusScanning, StatusCompleted},
		{StatusScanning, StatusFailed},
		{StatusCrawling, StatusCancelled},
	}
	for _, tt := range allowed {
		assert.True(t, tt.from.CanTransition(tt.to), "%s -> %s", tt.from, tt.to)
	}

	denied := []struct{ from, to Status }{
		{StatusPending, StatusScanning},
		{StatusPending, StatusCompleted},
		{StatusCompleted, StatusScanning},
		{StatusFailed, StatusPending},
		{StatusCancelled, StatusCrawling},
		{StatusScanning, StatusCrawling},
	}
	for _, tt := range denied {
		assert.False(t, tt.from.CanTransition(tt.to), "%s -> %s", tt.from, tt.to)
	}
}

func TestStatusTerminal(t *testing.T) {
	t.Parallel()
	for _, s := range []Status{StatusCompleted, StatusFailed, StatusCancelled} {
		assert.True(t, s.IsTerminal(), "%s", s)
	}
	for _, s := range []Status{StatusPending, StatusCrawling, StatusScanning, StatusWaitingForSelection} {
		assert.False(t, s.IsTerminal(), "%s", s)
	}
}

func TestProgressBands(t *testing.T) {
	t.Parallel()
	assert.Equal(t, 30, SpiderProgress(0))
	assert.Equal(t, 45, SpiderProgress(50))
	assert.Equal(t, 60, SpiderProgress(100))

	assert.Equal(t, 70, ActiveScanProgress(0))
	assert.Equal(t, 82, ActiveScanProgress(50))
	assert.Equal(t, 95, ActiveScanProgress(100))

	// Phases never overlap: spider tops out below the ascan floor.
	assert.Less(t, SpiderProgress(100), ActiveScanProgress(0)+10)
	assert.Equal(t, 100, ActiveScanProgress(500), "clamped")
}

func TestNewID(t *testing.T) {
	t.Parallel()
	id := NewID()
	assert.True(t, strings.HasPrefix(id, "scan_"), id)
	assert.Len(t, id, len("scan_")+12)
	assert.NotEqual(t, id, NewID())
}

func TestNewJobDefaults(t *testing.T) {
	t.Parallel()
	j := New("https://example.com", ScanFullSite)
	assert.Equal(t, StatusPending, j.Status)
	assert.Equal(t, 0, j.Progress)
	assert.False(t, j.CreatedAt.IsZero())
	assert.Nil(t, j.StartedAt)
	assert.Nil(t, j.CompletedAt)
}

func TestScanTypeValid(t *testing.T) {
	t.Parallel()
	assert.True(t, ScanFullSite.IsValid())
	assert.True(t, ScanSelectivePages.IsValid())
	assert.False(t, ScanType("quick").IsValid())
}
