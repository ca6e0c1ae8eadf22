package connectivity

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestHTTPProber_Reachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	p := NewHTTPProber(WithURL(srv.URL), WithTimeout(time.Second))
	assert.True(t, p.Probe(context.Background()), "any HTTP answer counts as reachable")
}

func TestHTTPProber_RefusedIsUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	p := NewHTTPProber(WithURL(url), WithTimeout(time.Second))
	assert.False(t, p.Probe(context.Background()))
}

func TestHTTPProber_TimeoutIsBounded(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	p := NewHTTPProber(WithURL(srv.URL), WithTimeout(50*time.Millisecond))
	start := time.Now()
	assert.False(t, p.Probe(context.Background()))
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestHTTPProber_InvalidURL(t *testing.T) {
	p := NewHTTPProber(WithURL("://nope"))
	assert.False(t, p.Probe(context.Background()))
}

func TestHTTPProber_Defaults(t *testing.T) {
	p := NewHTTPProber(WithURL(""), WithTimeout(0))
	assert.Equal(t, DefaultURL, p.URL())
	assert.Equal(t, DefaultTimeout, p.client.Timeout)
}

func TestFixedProbers(t *testing.T) {
	assert.True(t, Always(true).Probe(context.Background()))
	assert.False(t, Always(false).Probe(context.Background()))
	calls := 0
	f := Func(func(ctx context.Context) bool {
		calls++
		return calls > 1
	})
	assert.False(t, f.Probe(context.Background()))
	assert.True(t, f.Probe(context.Background()))
}
