package urlcheck

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeclinic/codeclinic/pkg/finding"
)

func TestIsValid(t *testing.T) {
	t.Parallel()
	v := New(time.Second)

	valid := []string{
		"https://example.com",
		"http://example.com/path?q=1",
		"https://sub.example.com:8443/",
		"http://localhost:3000",
	}
	for _, u := range valid {
		assert.True(t, v.IsValid(u), "expected valid: %s", u)
	}

	invalid := []string{
		"",
		"example.com",
		"ftp://example.com",
		"javascript:alert(1)",
		"https://",
		"not a url",
	}
	for _, u := range invalid {
		assert.False(t, v.IsValid(u), "expected invalid: %s", u)
	}
}

func TestCheckAccessible(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok":
			w.WriteHeader(http.StatusOK)
		case "/gone":
			w.WriteHeader(http.StatusNotFound)
		case "/headless":
			// Reject HEAD to force the GET fallback.
			if r.Method == http.MethodHead {
				w.WriteHeader(http.StatusMethodNotAllowed)
				return
			}
			w.WriteHeader(http.StatusOK)
		}
	}))
	defer srv.Close()

	v := New(2 * time.Second)
	ctx := context.Background()

	require.NoError(t, v.CheckAccessible(ctx, srv.URL+"/ok"))
	require.NoError(t, v.CheckAccessible(ctx, srv.URL+"/headless"), "HEAD rejection should fall back to GET")

	err := v.CheckAccessible(ctx, srv.URL+"/gone")
	assert.True(t, errors.Is(err, finding.ErrTargetUnreachable), "got %v", err)

	err = v.CheckAccessible(ctx, "http://127.0.0.1:1/unroutable")
	assert.True(t, errors.Is(err, finding.ErrTargetUnreachable), "got %v", err)
}

func TestNormalize(t *testing.T) {
	t.Parallel()
	cases := map[string]string{
		"HTTPS://Example.COM/Path/":  "https://example.com/Path",
		"https://example.com/":       "https://example.com/",
		"https://example.com/a?b=1":  "https://example.com/a?b=1",
		"http://EXAMPLE.com/deep///": "http://example.com/deep",
	}
	for in, want := range cases {
		assert.Equal(t, want, Normalize(in), "input %s", in)
	}
}

func TestSameDomain(t *testing.T) {
	t.Parallel()
	assert.True(t, SameDomain("https://example.com/a", "https://EXAMPLE.com/b"))
	assert.False(t, SameDomain("https://example.com", "https://other.com"))
	assert.False(t, SameDomain("", ""))
}
