// Package urlcheck validates, normalizes and probes target URLs before
// a scan is accepted. Rejecting bad targets up front keeps the scanner
// from burning a session on a URL that can never respond.
package urlcheck

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/codeclinic/codeclinic/pkg/finding"
	"github.com/codeclinic/codeclinic/pkg/httpclient"
)

// Validator checks URL format and reachability.
type Validator struct {
	client *http.Client
}

// New returns a Validator with the given probe timeout.
func New(timeout time.Duration) *Validator {
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &Validator{
		client: httpclient.New(httpclient.WithTimeout(timeout)),
	}
}

// IsValid reports whether raw is a well-formed absolute http(s) URL
// with a host component.
func (v *Validator) IsValid(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	if u.Host == "" {
		return false
	}
	// A bare scheme://host needs at least one dot or be localhost to
	// be something the scanner can resolve.
	host := u.Hostname()
	if host == "" {
		return false
	}
	return true
}

// CheckAccessible probes the URL and returns ErrTargetUnreachable if it
// does not answer with a 2xx or 3xx. HEAD is tried first; some servers
// reject HEAD, so a failed HEAD falls back to GET.
func (v *Validator) CheckAccessible(ctx context.Context, raw string) error {
	status, err := v.probe(ctx, http.MethodHead, raw)
	if err != nil || status >= 400 {
		status, err = v.probe(ctx, http.MethodGet, raw)
	}
	if err != nil {
		return fmt.Errorf("%w: %v", finding.ErrTargetUnreachable, err)
	}
	if status >= 400 {
		return fmt.Errorf("%w: status %d", finding.ErrTargetUnreachable, status)
	}
	return nil
}

func (v *Validator) probe(ctx context.Context, method, raw string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, method, raw, nil)
	if err != nil {
		return 0, err
	}
	resp, err := v.client.Do(req)
	if err != nil {
		return 0, err
	}
	resp.Body.Close()
	return resp.StatusCode, nil
}

// Normalize lowercases the scheme and host and strips a trailing slash
// from non-root paths so the same target always maps to the same job
// and database row.
func Normalize(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	if len(u.Path) > 1 {
		u.Path = strings.TrimRight(u.Path, "/")
	}
	return u.String()
}

// Domain extracts the lowercase host from a URL, or "" if unparsable.
func Domain(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Host)
}

// SameDomain reports whether two URLs share a non-empty host.
func SameDomain(a, b string) bool {
	da, db := Domain(a), Domain(b)
	return da != "" && da == db
}
