// Package orchestrator drives scan jobs end to end: URL validation,
// crawl, optional page selection, active scan, findings processing and
// result persistence. Jobs run on a bounded worker pool; all state
// lives in the job store so the HTTP layer stays stateless.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/codeclinic/codeclinic/pkg/finding"
	"github.com/codeclinic/codeclinic/pkg/job"
	"github.com/codeclinic/codeclinic/pkg/jobstore"
	"github.com/codeclinic/codeclinic/pkg/metrics"
	"github.com/codeclinic/codeclinic/pkg/scoring"
	"github.com/codeclinic/codeclinic/pkg/urlcheck"
	"github.com/codeclinic/codeclinic/pkg/workerpool"
	"github.com/codeclinic/codeclinic/pkg/zap"
)

// Scanner is the subset of the scanner client the orchestrator needs.
// *zap.Client satisfies it.
type Scanner interface {
	Available(ctx context.Context) bool
	AccessURL(ctx context.Context, target string) error
	StartSpider(ctx context.Context, target string) (string, error)
	WaitSpider(ctx context.Context, spiderID string, progress func(pct int)) error
	SpiderResults(ctx context.Context, spiderID string) ([]string, error)
	StartActiveScan(ctx context.Context, target string) (string, error)
	WaitActiveScan(ctx context.Context, scanID string, progress func(pct int)) error
	Alerts(ctx context.Context, baseURL string) ([]finding.Vulnerability, error)
}

// Config tunes the orchestrator.
type Config struct {
	// Workers bounds concurrent scans (default: 4).
	Workers int

	// SpiderTimeout bounds the crawl phase (default: 5m).
	SpiderTimeout time.Duration

	// ActiveScanTimeout bounds the attack phase (default: 10m).
	ActiveScanTimeout time.Duration

	// MaxPages caps the discovered page list (default: 50).
	MaxPages int

	// ValidateTimeout bounds the reachability probe (default: 10s).
	ValidateTimeout time.Duration
}

func (c *Config) defaults() {
	if c.Workers == 0 {
		c.Workers = 4
	}
	if c.SpiderTimeout == 0 {
		c.SpiderTimeout = 5 * time.Minute
	}
	if c.ActiveScanTimeout == 0 {
		c.ActiveScanTimeout = 10 * time.Minute
	}
	if c.MaxPages == 0 {
		c.MaxPages = 50
	}
	if c.ValidateTimeout == 0 {
		c.ValidateTimeout = 10 * time.Second
	}
}

// Orchestrator runs scan jobs.
type Orchestrator struct {
	cfg       Config
	scanner   Scanner
	store     jobstore.Store
	validator *urlcheck.Validator
	pool      *workerpool.Pool
	metrics   *metrics.Metrics
	log       zerolog.Logger
}

// New builds an orchestrator. metrics may be nil.
func New(cfg Config, scanner Scanner, store jobstore.Store, m *metrics.Metrics, log zerolog.Logger) *Orchestrator {
	cfg.defaults()
	return &Orchestrator{
		cfg:       cfg,
		scanner:   scanner,
		store:     store,
		validator: urlcheck.New(cfg.ValidateTimeout),
		pool:      workerpool.New(cfg.Workers),
		metrics:   m,
		log:       log.With().Str("component", "orchestrator").Logger(),
	}
}

// Close drains the worker pool.
func (o *Orchestrator) Close() { o.pool.Close() }

// ScannerAvailable reports whether the external scanner answers.
func (o *Orchestrator) ScannerAvailable(ctx context.Context) bool {
	return o.scanner.Available(ctx)
}

// StartScan validates the target, records a pending job and schedules
// it on the worker pool.
func (o *Orchestrator) StartScan(ctx context.Context, target string, scanType job.ScanType) (*job.Job, error) {
	if scanType == "" {
		scanType = job.ScanFullSite
	}
	if !scanType.IsValid() {
		return nil, fmt.Errorf("invalid scan type %q", scanType)
	}
	if !o.validator.IsValid(target) {
		return nil, fmt.Errorf("invalid URL %q", target)
	}
	target = urlcheck.Normalize(target)
	if err := o.validator.CheckAccessible(ctx, target); err != nil {
		return nil, err
	}

	j := job.New(target, scanType)
	if err := o.store.Create(ctx, j); err != nil {
		return nil, err
	}
	if o.metrics != nil {
		o.metrics.ScansStarted.Inc()
	}

	id := j.ID
	if !o.pool.Submit(func() { o.run(id) }) {
		_ = o.store.SetStatus(context.Background(), id, job.StatusFailed, "orchestrator shutting down")
		return nil, fmt.Errorf("orchestrator closed")
	}
	o.log.Info().Str("scan_id", id).Str("url", target).Str("type", string(scanType)).Msg("scan queued")
	return j, nil
}

// SelectPages resumes a selective scan with the caller's page choice.
// Every selected page must be one of the discovered ones.
func (o *Orchestrator) SelectPages(ctx context.Context, id string, pages []string) error {
	j, err := o.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if j.Status != job.StatusWaitingForSelection {
		return fmt.Errorf("scan %s is %s, not awaiting selection", id, j.Status)
	}
	if len(pages) == 0 {
		return fmt.Errorf("no pages selected")
	}
	discovered := make(map[string]struct{}, len(j.Pages))
	for _, p := range j.Pages {
		discovered[p] = struct{}{}
	}
	for _, p := range pages {
		if _, ok := discovered[p]; !ok {
			return fmt.Errorf("page %q was not discovered by the crawl", p)
		}
	}

	if err := o.store.SetPages(ctx, id, pages); err != nil {
		return err
	}
	if !o.pool.Submit(func() { o.runScanPhase(id, j.URL) }) {
		return fmt.Errorf("orchestrator closed")
	}
	o.log.Info().Str("scan_id", id).Int("pages", len(pages)).Msg("selective scan resumed")
	return nil
}

// Cancel marks a running job cancelled. The background worker notices
// on its next store update and abandons the job.
func (o *Orchestrator) Cancel(ctx context.Context, id string) error {
	return o.store.SetStatus(ctx, id, job.StatusCancelled, "")
}

// run executes the crawl phase of a job and either finishes the scan
// (full_site) or parks it for page selection.
func (o *Orchestrator) run(id string) {
	ctx := context.Background()
	log := o.log.With().Str("scan_id", id).Logger()

	j, err := o.store.Get(ctx, id)
	if err != nil {
		log.Error().Err(err).Msg("job vanished before start")
		return
	}

	if err := o.store.SetStatus(ctx, id, job.StatusCrawling, ""); err != nil {
		log.Warn().Err(err).Msg("cannot start job")
		return
	}
	o.progress(id, job.ProgressValidated, job.PhaseSetup)

	if !o.scanner.Available(ctx) {
		// Without the scanner there is nothing to scan, but a quick
		// link crawl still gives the UI a page list for the target.
		if pages := o.discoverLinks(ctx, j.URL, o.cfg.MaxPages); len(pages) > 0 {
			_ = o.store.SetPages(ctx, id, pages)
		}
		o.fail(id, finding.ErrScannerUnavailable)
		return
	}

	if err := o.scanner.AccessURL(ctx, j.URL); err != nil {
		log.Warn().Err(err).Msg("accessUrl failed, continuing")
	}
	o.progress(id, job.ProgressSetup, job.PhaseSetup)

	pages, err := o.crawl(ctx, id, j.URL)
	if err != nil {
		o.fail(id, err)
		return
	}
	if err := o.store.SetPages(ctx, id, pages); err != nil {
		log.Warn().Err(err).Msg("storing pages failed")
	}

	if j.ScanType == job.ScanSelectivePages {
		if err := o.store.SetStatus(ctx, id, job.StatusWaitingForSelection, ""); err != nil {
			log.Warn().Err(err).Msg("cannot park job for selection")
			return
		}
		log.Info().Int("pages", len(pages)).Msg("awaiting page selection")
		return
	}

	o.runScanPhase(id, j.URL)
}

// crawl runs the spider and returns the cleaned page list. When the
// spider yields nothing a plain link crawl of the homepage fills in.
func (o *Orchestrator) crawl(ctx context.Context, id, target string) ([]string, error) {
	spiderCtx, cancel := context.WithTimeout(ctx, o.cfg.SpiderTimeout)
	defer cancel()

	spiderID, err := o.scanner.StartSpider(spiderCtx, target)
	if err != nil {
		return nil, err
	}
	err = o.scanner.WaitSpider(spiderCtx, spiderID, func(pct int) {
		o.progress(id, job.SpiderProgress(pct), job.PhaseSpider)
	})
	if err != nil {
		return nil, err
	}

	raw, err := o.scanner.SpiderResults(spiderCtx, spiderID)
	if err != nil {
		return nil, err
	}
	pages := zap.CleanURLs(raw, target, o.cfg.MaxPages)
	if len(pages) == 0 {
		pages = o.discoverLinks(ctx, target, o.cfg.MaxPages)
	}
	if len(pages) == 0 {
		pages = []string{target}
	}
	return pages, nil
}

// runScanPhase executes the active scan and processes the findings.
func (o *Orchestrator) runScanPhase(id, target string) {
	ctx := context.Background()
	log := o.log.With().Str("scan_id", id).Logger()

	if err := o.store.SetStatus(ctx, id, job.StatusScanning, ""); err != nil {
		log.Warn().Err(err).Msg("cannot enter scanning state")
		return
	}

	scanCtx, cancel := context.WithTimeout(ctx, o.cfg.ActiveScanTimeout)
	defer cancel()

	scanID, err := o.scanner.StartActiveScan(scanCtx, target)
	if err != nil {
		o.fail(id, err)
		return
	}
	err = o.scanner.WaitActiveScan(scanCtx, scanID, func(pct int) {
		o.progress(id, job.ActiveScanProgress(pct), job.PhaseActiveScan)
	})
	if err != nil {
		// The scanner keeps whatever alerts it raised before the
		// deadline; save those as a partial result.
		if vulns, aerr := o.scanner.Alerts(ctx, target); aerr == nil && len(vulns) > 0 {
			o.saveResult(ctx, id, target, vulns)
		}
		o.fail(id, err)
		return
	}

	o.progress(id, job.ProgressProcessing, job.PhaseProcessing)

	vulns, err := o.scanner.Alerts(ctx, target)
	if err != nil {
		o.fail(id, err)
		return
	}
	o.saveResult(ctx, id, target, vulns)

	if err := o.store.SetStatus(ctx, id, job.StatusCompleted, ""); err != nil {
		log.Warn().Err(err).Msg("cannot complete job")
		return
	}
	o.observeCompletion(ctx, id, vulns)
	log.Info().Int("findings", len(vulns)).Msg("scan completed")
}

func (o *Orchestrator) saveResult(ctx context.Context, id, target string, vulns []finding.Vulnerability) {
	summary := finding.Summarize(vulns)
	health := scoring.Calculate(summary)

	j, err := o.store.Get(ctx, id)
	var pages []string
	if err == nil {
		pages = j.Pages
	}

	res := &job.Result{
		ScanID:          id,
		URL:             target,
		Vulnerabilities: vulns,
		Summary:         summary,
		HealthScore:     health.Score,
		Grade:           health.Grade,
		PagesScanned:    pages,
		CompletedAt:     time.Now().UTC(),
	}
	if err := o.store.SaveResult(ctx, res); err != nil {
		o.log.Error().Err(err).Str("scan_id", id).Msg("saving result failed")
	}
}

func (o *Orchestrator) observeCompletion(ctx context.Context, id string, vulns []finding.Vulnerability) {
	if o.metrics == nil {
		return
	}
	o.metrics.ScansCompleted.Inc()
	for _, v := range vulns {
		o.metrics.FindingsTotal.WithLabelValues(string(v.Severity)).Inc()
	}
	if j, err := o.store.Get(ctx, id); err == nil && j.StartedAt != nil && j.CompletedAt != nil {
		o.metrics.ScanDuration.Observe(j.CompletedAt.Sub(*j.StartedAt).Seconds())
	}
}

// fail moves the job to failed unless it was cancelled meanwhile.
func (o *Orchestrator) fail(id string, cause error) {
	ctx := context.Background()
	msg := cause.Error()
	if errors.Is(cause, finding.ErrScanTimeout) {
		msg = "scan timed out"
	} else if errors.Is(cause, finding.ErrScannerUnavailable) {
		msg = "scanner unreachable"
	}

	if err := o.store.SetStatus(ctx, id, job.StatusFailed, msg); err != nil {
		o.log.Warn().Err(err).Str("scan_id", id).Msg("cannot mark job failed")
		return
	}
	if o.metrics != nil {
		o.metrics.ScansFailed.Inc()
	}
	o.log.Warn().Str("scan_id", id).Str("reason", msg).Msg("scan failed")
}

func (o *Orchestrator) progress(id string, pct int, phase string) {
	if err := o.store.SetProgress(context.Background(), id, pct, phase); err != nil {
		o.log.Debug().Err(err).Str("scan_id", id).Msg("progress update dropped")
	}
}
