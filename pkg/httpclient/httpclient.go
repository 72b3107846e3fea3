// Package httpclient provides a shared, pooled HTTP client factory.
// The scanner client polls the same host every few seconds for minutes
// at a time, so connection reuse matters more here than raw fan-out.
package httpclient

import (
	"crypto/tls"
	"net"
	"net/http"
	"sync"
	"time"
)

// Config holds HTTP client configuration options.
type Config struct {
	// Timeout is the total request timeout (default: 30s).
	Timeout time.Duration

	// InsecureSkipVerify skips TLS certificate verification. The
	// external scanner is usually reached over plain HTTP on
	// localhost, but targets behind self-signed certs need this.
	InsecureSkipVerify bool

	// FollowRedirects controls redirect handling. The accessibility
	// check wants the final response; status polling never redirects.
	FollowRedirects bool

	// MaxIdleConns is the maximum idle connections across all hosts
	// (default: 50).
	MaxIdleConns int

	// MaxConnsPerHost bounds connections to a single host
	// (default: 10; the poll loop only ever needs a couple).
	MaxConnsPerHost int

	// IdleConnTimeout is how long idle connections stay pooled
	// (default: 90s, comfortably longer than the poll interval).
	IdleConnTimeout time.Duration

	// DialTimeout is the timeout for establishing connections
	// (default: 10s).
	DialTimeout time.Duration
}

// DefaultConfig returns defaults tuned for long-running poll loops
// against a single scanner host.
func DefaultConfig() Config {
	return Config{
		Timeout:         30 * time.Second,
		FollowRedirects: true,
		MaxIdleConns:    50,
		MaxConnsPerHost: 10,
		IdleConnTimeout: 90 * time.Second,
		DialTimeout:     10 * time.Second,
	}
}

var (
	defaultClient *http.Client
	defaultOnce   sync.Once
)

// Default returns a shared, pre-configured HTTP client. It is safe for
// concurrent use and keeps connections to the scanner warm between
// polls. Packages should prefer Default() over creating their own
// clients unless they need different timeouts.
func Default() *http.Client {
	defaultOnce.Do(func() {
		defaultClient = New(DefaultConfig())
	})
	return defaultClient
}

// New creates a new HTTP client with the given configuration.
func New(cfg Config) *http.Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxIdleConns == 0 {
		cfg.MaxIdleConns = 50
	}
	if cfg.MaxConnsPerHost == 0 {
		cfg.MaxConnsPerHost = 10
	}
	if cfg.IdleConnTimeout == 0 {
		cfg.IdleConnTimeout = 90 * time.Second
	}
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = 10 * time.Second
	}

	dialer := &net.Dialer{
		Timeout:   cfg.DialTimeout,
		KeepAlive: 30 * time.Second,
	}

	transport := &http.Transport{
		MaxIdleConns:        cfg.MaxIdleConns,
		MaxIdleConnsPerHost: cfg.MaxConnsPerHost,
		MaxConnsPerHost:     cfg.MaxConnsPerHost,
		IdleConnTimeout:     cfg.IdleConnTimeout,

		ForceAttemptHTTP2:     true,
		ExpectContinueTimeout: 1 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,

		DialContext: dialer.DialContext,

		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: cfg.InsecureSkipVerify,
		},
	}

	client := &http.Client{
		Transport: transport,
		Timeout:   cfg.Timeout,
	}
	if !cfg.FollowRedirects {
		client.CheckRedirect = func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		}
	}
	return client
}

// WithTimeout returns DefaultConfig with the specified timeout.
func WithTimeout(timeout time.Duration) Config {
	cfg := DefaultConfig()
	cfg.Timeout = timeout
	return cfg
}
