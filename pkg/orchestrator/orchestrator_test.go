package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeclinic/codeclinic/pkg/finding"
	"github.com/codeclinic/codeclinic/pkg/job"
	"github.com/codeclinic/codeclinic/pkg/jobstore"
)

// fakeScanner scripts the scanner behaviour per test.
type fakeScanner struct {
	available     bool
	spiderPages   []string
	spiderErr     error
	ascanErr      error
	alerts        []finding.Vulnerability
	alertsErr     error
}

func (f *fakeScanner) Available(context.Context) bool              { return f.available }
func (f *fakeScanner) AccessURL(context.Context, string) error     { return nil }
func (f *fakeScanner) StartSpider(context.Context, string) (string, error) {
	return "1", nil
}

func (f *fakeScanner) WaitSpider(_ context.Context, _ string, progress func(int)) error {
	if f.spiderErr != nil {
		return f.spiderErr
	}
	if progress != nil {
		progress(50)
		progress(100)
	}
	return nil
}

func (f *fakeScanner) SpiderResults(context.Context, string) ([]string, error) {
	return f.spiderPages, nil
}

func (f *fakeScanner) StartActiveScan(context.Context, string) (string, error) {
	return "2", nil
}

func (f *fakeScanner) WaitActiveScan(_ context.Context, _ string, progress func(int)) error {
	if f.ascanErr != nil {
		return f.ascanErr
	}
	if progress != nil {
		progress(100)
	}
	return nil
}

func (f *fakeScanner) Alerts(context.Context, string) ([]finding.Vulnerability, error) {
	return f.alerts, f.alertsErr
}

// newTarget serves a small site so URL validation and the link
// fallback have something real to talk to.
func newTarget(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body>
			<a href="/about">About</a>
			<a href="/contact">Contact</a>
			<a href="https://elsewhere.example.com/x">External</a>
		</body></html>`)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newOrchestrator(t *testing.T, sc Scanner, store jobstore.Store) *Orchestrator {
	t.Helper()
	o := New(Config{Workers: 2}, sc, store, nil, zerolog.Nop())
	t.Cleanup(o.Close)
	return o
}

func waitForStatus(t *testing.T, store jobstore.Store, id string, want job.Status) *job.Job {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		j, err := store.Get(context.Background(), id)
		require.NoError(t, err)
		if j.Status == want {
			return j
		}
		if j.Status.IsTerminal() {
			t.Fatalf("job ended as %s (error %q), wanted %s", j.Status, j.Error, want)
		}
		select {
		case <-deadline:
			t.Fatalf("job stuck at %s, wanted %s", j.Status, want)
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestFullSiteScanCompletes(t *testing.T) {
	t.Parallel()
	target := newTarget(t)
	sc := &fakeScanner{
		available:   true,
		spiderPages: []string{target.URL + "/", target.URL + "/about"},
		alerts: []finding.Vulnerability{
			{ID: "vuln_1", Type: finding.TypeXSS, Severity: finding.High, Title: "XSS"},
			{ID: "vuln_2", Type: finding.TypeInsecureHeaders, Severity: finding.Low, Title: "Missing header"},
		},
	}
	store := jobstore.NewMemory()
	o := newOrchestrator(t, sc, store)

	j, err := o.StartScan(context.Background(), target.URL, job.ScanFullSite)
	require.NoError(t, err)

	done := waitForStatus(t, store, j.ID, job.StatusCompleted)
	assert.Equal(t, 100, done.Progress)
	assert.NotEmpty(t, done.Pages)

	res, err := store.GetResult(context.Background(), j.ID)
	require.NoError(t, err)
	assert.Len(t, res.Vulnerabilities, 2)
	assert.Equal(t, 1, res.Summary.HighRisk)
	assert.Equal(t, 82, res.HealthScore)
	assert.Equal(t, "B", res.Grade)
}

func TestSelectiveScanPausesAndResumes(t *testing.T) {
	t.Parallel()
	target := newTarget(t)
	sc := &fakeScanner{
		available:   true,
		spiderPages: []string{target.URL + "/", target.URL + "/about", target.URL + "/contact"},
		alerts:      []finding.Vulnerability{{ID: "vuln_1", Severity: finding.Medium, Title: "CSRF"}},
	}
	store := jobstore.NewMemory()
	o := newOrchestrator(t, sc, store)

	j, err := o.StartScan(context.Background(), target.URL, job.ScanSelectivePages)
	require.NoError(t, err)

	parked := waitForStatus(t, store, j.ID, job.StatusWaitingForSelection)
	require.Len(t, parked.Pages, 3)

	err = o.SelectPages(context.Background(), j.ID, []string{"https://not-discovered.example.com/"})
	assert.ErrorContains(t, err, "not discovered")

	require.NoError(t, o.SelectPages(context.Background(), j.ID, parked.Pages[:2]))
	waitForStatus(t, store, j.ID, job.StatusCompleted)

	final, err := store.Get(context.Background(), j.ID)
	require.NoError(t, err)
	assert.Len(t, final.Pages, 2, "selection replaces the discovered list")
}

func TestScannerUnavailableFailsWithFallbackPages(t *testing.T) {
	t.Parallel()
	target := newTarget(t)
	sc := &fakeScanner{available: false}
	store := jobstore.NewMemory()
	o := newOrchestrator(t, sc, store)

	j, err := o.StartScan(context.Background(), target.URL, job.ScanFullSite)
	require.NoError(t, err)

	deadline := time.After(3 * time.Second)
	for {
		got, err := store.Get(context.Background(), j.ID)
		require.NoError(t, err)
		if got.Status == job.StatusFailed {
			assert.Equal(t, "scanner unreachable", got.Error)
			assert.NotEmpty(t, got.Pages, "link fallback still discovers pages")
			return
		}
		select {
		case <-deadline:
			t.Fatalf("job stuck at %s", got.Status)
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestActiveScanTimeoutKeepsPartialResults(t *testing.T) {
	t.Parallel()
	target := newTarget(t)
	sc := &fakeScanner{
		available:   true,
		spiderPages: []string{target.URL + "/"},
		ascanErr:    fmt.Errorf("%w: deadline", finding.ErrScanTimeout),
		alerts:      []finding.Vulnerability{{ID: "vuln_1", Severity: finding.High, Title: "SQLi"}},
	}
	store := jobstore.NewMemory()
	o := newOrchestrator(t, sc, store)

	j, err := o.StartScan(context.Background(), target.URL, job.ScanFullSite)
	require.NoError(t, err)

	deadline := time.After(3 * time.Second)
	for {
		got, err := store.Get(context.Background(), j.ID)
		require.NoError(t, err)
		if got.Status == job.StatusFailed {
			assert.Equal(t, "scan timed out", got.Error)
			res, err := store.GetResult(context.Background(), j.ID)
			require.NoError(t, err, "partial result must survive the failure")
			assert.Len(t, res.Vulnerabilities, 1)
			return
		}
		select {
		case <-deadline:
			t.Fatalf("job stuck at %s", got.Status)
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestStartScanRejectsBadTargets(t *testing.T) {
	t.Parallel()
	store := jobstore.NewMemory()
	o := newOrchestrator(t, &fakeScanner{available: true}, store)

	_, err := o.StartScan(context.Background(), "ftp://example.com", job.ScanFullSite)
	assert.ErrorContains(t, err, "invalid URL")

	_, err = o.StartScan(context.Background(), "http://127.0.0.1:1", job.ScanFullSite)
	assert.True(t, errors.Is(err, finding.ErrTargetUnreachable), "got %v", err)

	target := newTarget(t)
	_, err = o.StartScan(context.Background(), target.URL, job.ScanType("quick"))
	assert.ErrorContains(t, err, "invalid scan type")
}

func TestCancelBlocksFurtherWork(t *testing.T) {
	t.Parallel()
	target := newTarget(t)
	sc := &fakeScanner{
		available:   true,
		spiderPages: []string{target.URL + "/"},
	}
	store := jobstore.NewMemory()
	o := newOrchestrator(t, sc, store)

	j, err := o.StartScan(context.Background(), target.URL, job.ScanSelectivePages)
	require.NoError(t, err)
	parked := waitForStatus(t, store, j.ID, job.StatusWaitingForSelection)

	require.NoError(t, o.Cancel(context.Background(), j.ID))
	err = o.SelectPages(context.Background(), j.ID, parked.Pages)
	assert.ErrorContains(t, err, "not awaiting selection")
}
