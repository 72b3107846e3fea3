package zap

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/codeclinic/codeclinic/pkg/finding"
	"github.com/codeclinic/codeclinic/pkg/urlcheck"
)

// Alert is a single alert as reported by the scanner's alerts view.
// Field names follow the ZAP JSON API.
type Alert struct {
	Name        string `json:"name"`
	Risk        string `json:"risk"`
	Confidence  string `json:"confidence"`
	Description string `json:"description"`
	URL         string `json:"url"`
	Param       string `json:"param"`
	Evidence    string `json:"evidence"`
	Solution    string `json:"solution"`
	CWEID       string `json:"cweid"`
}

// MapAlerts converts raw scanner alerts into deduplicated canonical
// findings. Alert ids are assigned sequentially after deduplication so
// they stay stable for a given result set.
func MapAlerts(alerts []Alert) []finding.Vulnerability {
	vulns := make([]finding.Vulnerability, 0, len(alerts))
	for _, a := range alerts {
		vulns = append(vulns, finding.Vulnerability{
			Type:        mapAlertType(a.Name),
			Severity:    mapRisk(a.Risk),
			Title:       a.Name,
			Description: a.Description,
			URL:         a.URL,
			Parameter:   a.Param,
			Evidence:    a.Evidence,
			Solution:    a.Solution,
			CWEID:       a.CWEID,
			Confidence:  mapConfidence(a.Confidence),
		})
	}
	vulns = finding.Dedupe(vulns)
	for i := range vulns {
		vulns[i].ID = fmt.Sprintf("vuln_%d", i+1)
	}
	return vulns
}

// mapAlertType buckets a ZAP alert name into a vulnerability category.
func mapAlertType(name string) finding.Type {
	n := strings.ToLower(name)
	switch {
	case strings.Contains(n, "xss"), strings.Contains(n, "cross-site scripting"):
		return finding.TypeXSS
	case strings.Contains(n, "sql") && strings.Contains(n, "injection"):
		return finding.TypeSQLInjection
	case strings.Contains(n, "csrf"), strings.Contains(n, "cross-site request forgery"):
		return finding.TypeCSRF
	case strings.Contains(n, "header"):
		return finding.TypeInsecureHeaders
	case strings.Contains(n, "ssl"), strings.Contains(n, "tls"):
		return finding.TypeSSLTLS
	case strings.Contains(n, "auth"):
		return finding.TypeAuthentication
	default:
		return finding.TypeOther
	}
}

func mapRisk(risk string) finding.Severity {
	switch risk {
	case "High":
		return finding.High
	case "Medium":
		return finding.Medium
	case "Low":
		return finding.Low
	case "Informational":
		return finding.Informational
	default:
		return finding.Low
	}
}

func mapConfidence(confidence string) finding.Confidence {
	switch confidence {
	case "High":
		return finding.ConfidenceHigh
	case "Low":
		return finding.ConfidenceLow
	default:
		return finding.ConfidenceMedium
	}
}

// CleanURLs filters spider results down to same-domain pages, strips
// query strings and fragments, removes duplicates and caps the list at
// limit. Order follows first appearance in the spider output.
func CleanURLs(raw []string, base string, limit int) []string {
	baseDomain := urlcheck.Domain(base)
	seen := make(map[string]struct{}, len(raw))
	var out []string

	for _, r := range raw {
		u, err := url.Parse(r)
		if err != nil {
			continue
		}
		if strings.ToLower(u.Host) != baseDomain {
			continue
		}
		clean := fmt.Sprintf("%s://%s%s", u.Scheme, strings.ToLower(u.Host), u.Path)
		if _, dup := seen[clean]; dup {
			continue
		}
		seen[clean] = struct{}{}
		out = append(out, clean)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out
}
