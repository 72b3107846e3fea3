package orchestrator

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/codeclinic/codeclinic/pkg/httpclient"
	"github.com/codeclinic/codeclinic/pkg/urlcheck"
)

var hrefPattern = regexp.MustCompile(`href=["']([^"'#]+)["']`)

// discoverLinks fetches the target homepage and extracts same-domain
// links from its HTML. It is a best-effort stand-in for the spider when
// the scanner yields nothing; failures just return an empty list.
func (o *Orchestrator) discoverLinks(ctx context.Context, target string, max int) []string {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil
	}
	resp, err := httpclient.Default().Do(req)
	if err != nil {
		return nil
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil
	}

	base, err := url.Parse(target)
	if err != nil {
		return nil
	}

	pages := []string{urlcheck.Normalize(target)}
	seen := map[string]struct{}{pages[0]: {}}

	for _, m := range hrefPattern.FindAllStringSubmatch(string(body), -1) {
		ref, err := url.Parse(strings.TrimSpace(m[1]))
		if err != nil {
			continue
		}
		abs := base.ResolveReference(ref)
		if abs.Scheme != "http" && abs.Scheme != "https" {
			continue
		}
		if !urlcheck.SameDomain(target, abs.String()) {
			continue
		}
		abs.RawQuery = ""
		abs.Fragment = ""
		clean := urlcheck.Normalize(abs.String())
		if _, dup := seen[clean]; dup {
			continue
		}
		seen[clean] = struct{}{}
		pages = append(pages, clean)
		if len(pages) >= max {
			break
		}
	}
	return pages
}
