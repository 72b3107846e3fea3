// Package zap is a client for the OWASP ZAP JSON API. ZAP is consumed
// as a black box: this package starts spider and active scans, polls
// their status endpoints until completion, and converts the resulting
// alerts into finding.Vulnerability records.
package zap

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/codeclinic/codeclinic/pkg/finding"
	"github.com/codeclinic/codeclinic/pkg/httpclient"
	"github.com/codeclinic/codeclinic/pkg/retry"
)

// Config holds connection settings for the scanner.
type Config struct {
	// BaseURL of the ZAP API, e.g. "http://localhost:8080".
	BaseURL string

	// APIKey is sent as the apikey query parameter when set.
	APIKey string

	// SpiderInterval is the poll interval while the spider runs
	// (default: 2s, matching ZAP's own UI refresh).
	SpiderInterval time.Duration

	// AScanInterval is the poll interval while the active scan runs
	// (default: 3s; active scans move slower than the spider).
	AScanInterval time.Duration

	// MaxChildren caps how many child nodes the spider crawls per
	// branch (default: 50).
	MaxChildren int

	// HTTPClient overrides the shared pooled client, mainly for tests.
	HTTPClient *http.Client
}

// Client talks to a single ZAP instance.
type Client struct {
	baseURL        string
	apiKey         string
	spiderInterval time.Duration
	ascanInterval  time.Duration
	maxChildren    int
	http           *http.Client
	log            zerolog.Logger
}

// New creates a scanner client.
func New(cfg Config, log zerolog.Logger) *Client {
	if cfg.SpiderInterval == 0 {
		cfg.SpiderInterval = 2 * time.Second
	}
	if cfg.AScanInterval == 0 {
		cfg.AScanInterval = 3 * time.Second
	}
	if cfg.MaxChildren == 0 {
		cfg.MaxChildren = 50
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = httpclient.Default()
	}
	return &Client{
		baseURL:        cfg.BaseURL,
		apiKey:         cfg.APIKey,
		spiderInterval: cfg.SpiderInterval,
		ascanInterval:  cfg.AScanInterval,
		maxChildren:    cfg.MaxChildren,
		http:           hc,
		log:            log.With().Str("component", "zap").Logger(),
	}
}

// Version probes the scanner and returns its version string. A failed
// probe maps to finding.ErrScannerUnavailable so callers can degrade
// cleanly. The probe retries briefly: ZAP restarts are common in
// containerized deployments.
func (c *Client) Version(ctx context.Context) (string, error) {
	var version string
	err := retry.Do(ctx, retry.DefaultConfig(), func() error {
		var out struct {
			Version string `json:"version"`
		}
		if err := c.get(ctx, "/JSON/core/view/version/", nil, &out); err != nil {
			return err
		}
		version = out.Version
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", finding.ErrScannerUnavailable, err)
	}
	return version, nil
}

// Available reports whether the scanner answers its version endpoint.
func (c *Client) Available(ctx context.Context) bool {
	_, err := c.Version(ctx)
	return err == nil
}

// StartSpider kicks off a spider (crawl) against target and returns the
// scanner-assigned spider id.
func (c *Client) StartSpider(ctx context.Context, target string) (string, error) {
	var out struct {
		Scan string `json:"scan"`
	}
	params := url.Values{
		"url":         {target},
		"maxChildren": {strconv.Itoa(c.maxChildren)},
		"recurse":     {"true"},
	}
	if err := c.get(ctx, "/JSON/spider/action/scan/", params, &out); err != nil {
		return "", fmt.Errorf("start spider: %w", err)
	}
	if out.Scan == "" {
		return "", fmt.Errorf("start spider: scanner returned no scan id")
	}
	return out.Scan, nil
}

// SpiderStatus returns spider progress as a percentage (0-100).
func (c *Client) SpiderStatus(ctx context.Context, spiderID string) (int, error) {
	return c.status(ctx, "/JSON/spider/view/status/", spiderID)
}

// SpiderResults returns the raw URLs discovered by a finished spider.
func (c *Client) SpiderResults(ctx context.Context, spiderID string) ([]string, error) {
	var out struct {
		Results []string `json:"results"`
	}
	params := url.Values{"scanId": {spiderID}}
	if err := c.get(ctx, "/JSON/spider/view/results/", params, &out); err != nil {
		return nil, fmt.Errorf("spider results: %w", err)
	}
	return out.Results, nil
}

// AccessURL registers the target in the scanner's site tree. ZAP
// requires the URL to be known before an active scan can start.
func (c *Client) AccessURL(ctx context.Context, target string) error {
	params := url.Values{"url": {target}}
	if err := c.get(ctx, "/JSON/core/action/accessUrl/", params, nil); err != nil {
		return fmt.Errorf("access url: %w", err)
	}
	return nil
}

// StartActiveScan kicks off an active scan against target and returns
// the scanner-assigned scan id.
func (c *Client) StartActiveScan(ctx context.Context, target string) (string, error) {
	var out struct {
		Scan string `json:"scan"`
	}
	params := url.Values{
		"url":         {target},
		"recurse":     {"true"},
		"inScopeOnly": {"false"},
	}
	if err := c.get(ctx, "/JSON/ascan/action/scan/", params, &out); err != nil {
		return "", fmt.Errorf("start active scan: %w", err)
	}
	// ZAP reports errors as scan id "url_not_found" and similar.
	if _, err := strconv.Atoi(out.Scan); err != nil {
		return "", fmt.Errorf("start active scan: invalid scan id %q", out.Scan)
	}
	return out.Scan, nil
}

// ActiveScanStatus returns active scan progress as a percentage.
func (c *Client) ActiveScanStatus(ctx context.Context, scanID string) (int, error) {
	return c.status(ctx, "/JSON/ascan/view/status/", scanID)
}

// Alerts fetches all alerts recorded for baseURL and converts them to
// canonical findings.
func (c *Client) Alerts(ctx context.Context, baseURL string) ([]finding.Vulnerability, error) {
	var out struct {
		Alerts []Alert `json:"alerts"`
	}
	params := url.Values{}
	if baseURL != "" {
		params.Set("baseurl", baseURL)
	}
	if err := c.get(ctx, "/JSON/core/view/alerts/", params, &out); err != nil {
		return nil, fmt.Errorf("alerts: %w", err)
	}
	return MapAlerts(out.Alerts), nil
}

// WaitSpider polls the spider status until it reaches 100, invoking
// progress (if non-nil) with each observed percentage. The context
// deadline bounds the wait; on expiry the error wraps
// finding.ErrScanTimeout.
func (c *Client) WaitSpider(ctx context.Context, spiderID string, progress func(pct int)) error {
	return c.wait(ctx, spiderID, c.spiderInterval, c.SpiderStatus, progress)
}

// WaitActiveScan polls the active scan status until it reaches 100.
func (c *Client) WaitActiveScan(ctx context.Context, scanID string, progress func(pct int)) error {
	return c.wait(ctx, scanID, c.ascanInterval, c.ActiveScanStatus, progress)
}

func (c *Client) wait(ctx context.Context, id string, interval time.Duration,
	statusFn func(context.Context, string) (int, error), progress func(int)) error {

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		pct, err := statusFn(ctx, id)
		if err != nil {
			return err
		}
		if progress != nil {
			progress(pct)
		}
		if pct >= 100 {
			return nil
		}
		c.log.Debug().Str("id", id).Int("pct", pct).Msg("scan in progress")

		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %v", finding.ErrScanTimeout, ctx.Err())
		case <-ticker.C:
		}
	}
}

func (c *Client) status(ctx context.Context, path, id string) (int, error) {
	var out struct {
		Status string `json:"status"`
	}
	params := url.Values{"scanId": {id}}
	if err := c.get(ctx, path, params, &out); err != nil {
		return 0, fmt.Errorf("status: %w", err)
	}
	pct, err := strconv.Atoi(out.Status)
	if err != nil {
		return 0, fmt.Errorf("status: non-numeric progress %q", out.Status)
	}
	return pct, nil
}

// get performs a GET against the ZAP API and decodes the JSON response
// into out (when non-nil). The api key is appended to every request.
func (c *Client) get(ctx context.Context, path string, params url.Values, out any) error {
	if params == nil {
		params = url.Values{}
	}
	if c.apiKey != "" {
		params.Set("apikey", c.apiKey)
	}

	u := c.baseURL + path
	if enc := params.Encode(); enc != "" {
		u += "?" + enc
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("scanner responded %d: %s", resp.StatusCode, body)
	}
	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
