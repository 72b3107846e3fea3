package finding

import (
	"fmt"

	"github.com/spaolacci/murmur3"
)

// Type buckets scanner alert names into the vulnerability categories
// the clinic UI and quiz generator understand.
type Type string

const (
	TypeXSS             Type = "xss"
	TypeSQLInjection    Type = "sql_injection"
	TypeCSRF            Type = "csrf"
	TypeInsecureHeaders Type = "insecure_headers"
	TypeSSLTLS          Type = "ssl_tls"
	TypeAuthentication  Type = "authentication"
	TypeOther           Type = "other"
)

// Vulnerability is the canonical representation of a single finding
// returned by the external scanner.
type Vulnerability struct {
	ID          string     `json:"id"`
	Type        Type       `json:"type"`
	Severity    Severity   `json:"severity"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	URL         string     `json:"url"`
	Parameter   string     `json:"parameter,omitempty"`
	Evidence    string     `json:"evidence,omitempty"`
	Solution    string     `json:"solution,omitempty"`
	CWEID       string     `json:"cwe_id,omitempty"`
	Confidence  Confidence `json:"confidence"`
}

// DigestLine renders the finding in the compact "title - severity - url"
// form consumed by the quiz prompt builder.
func (v Vulnerability) DigestLine() string {
	return fmt.Sprintf("%s - %s - %s", v.Title, v.Severity, v.URL)
}

// DedupKey returns a stable hash identifying the finding independent of
// the scanner-assigned id. Repeated alerts for the same issue on the
// same URL and parameter collapse to one key.
func (v Vulnerability) DedupKey() uint64 {
	h := murmur3.New64()
	h.Write([]byte(v.Title))
	h.Write([]byte{0})
	h.Write([]byte(v.URL))
	h.Write([]byte{0})
	h.Write([]byte(v.Parameter))
	return h.Sum64()
}

// Dedupe removes duplicate findings, preserving first-seen order.
func Dedupe(vulns []Vulnerability) []Vulnerability {
	seen := make(map[uint64]struct{}, len(vulns))
	out := vulns[:0:0]
	for _, v := range vulns {
		k := v.DedupKey()
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, v)
	}
	return out
}
