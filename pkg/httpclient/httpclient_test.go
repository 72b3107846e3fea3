package httpclient

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultReturnsSameInstance(t *testing.T) {
	t.Parallel()
	a := Default()
	b := Default()
	assert.Same(t, a, b)
}

func TestNewAppliesDefaultsForZeroValues(t *testing.T) {
	t.Parallel()
	c := New(Config{})
	assert.Equal(t, 30*time.Second, c.Timeout)
	tr, ok := c.Transport.(*http.Transport)
	require.True(t, ok)
	assert.Equal(t, 50, tr.MaxIdleConns)
	assert.Equal(t, 10, tr.MaxConnsPerHost)
}

func TestFollowRedirects(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/old" {
			http.Redirect(w, r, "/new", http.StatusFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	follow := New(Config{FollowRedirects: true})
	resp, err := follow.Get(srv.URL + "/old")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	stay := New(Config{FollowRedirects: false})
	resp, err = stay.Get(srv.URL + "/old")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusFound, resp.StatusCode)
}

func TestWithTimeout(t *testing.T) {
	t.Parallel()
	cfg := WithTimeout(5 * time.Second)
	assert.Equal(t, 5*time.Second, cfg.Timeout)
	assert.True(t, cfg.FollowRedirects)
}
