// Package connectivity answers one question: can we reach the outside world
// right now?
package connectivity

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	DefaultURL     = "https://www.google.com"
	DefaultTimeout = 3 * time.Second
)

type Prober interface {
	// Probe never fails; any error is reported as unreachable.
	Probe(ctx context.Context) bool
}

// Func adapts a function to Prober.
type Func func(ctx context.Context) bool

func (f Func) Probe(ctx context.Context) bool {
	return f(ctx)
}

// Always is a fixed answer, for tests and for running against local services.
type Always bool

func (a Always) Probe(context.Context) bool {
	return bool(a)
}

type HTTPProber struct {
	url     string
	timeout time.Duration
	client  *http.Client
}

var _ Prober = (*HTTPProber)(nil)

type Option func(*HTTPProber)

func WithURL(url string) Option {
	return func(p *HTTPProber) {
		if url != "" {
			p.url = url
		}
	}
}

func WithTimeout(timeout time.Duration) Option {
	return func(p *HTTPProber) {
		if timeout > 0 {
			p.timeout = timeout
		}
	}
}

func WithTransport(rt http.RoundTripper) Option {
	return func(p *HTTPProber) {
		p.client.Transport = rt
	}
}

func NewHTTPProber(opts ...Option) *HTTPProber {
	p := &HTTPProber{
		url:     DefaultURL,
		timeout: DefaultTimeout,
		client:  &http.Client{},
	}
	for _, opt := range opts {
		opt(p)
	}
	p.client.Timeout = p.timeout
	return p
}

func (p *HTTPProber) URL() string {
	return p.url
}

// Probe issues a single GET. Any HTTP response, whatever its status, means the
// network is up.
func (p *HTTPProber) Probe(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		log.Warn().Err(err).Str("url", p.url).Msg("Invalid connectivity probe request")
		return false
	}

	resp, err := p.client.Do(req)
	if err != nil {
		log.Debug().Err(err).Str("url", p.url).Dur("elapsed", time.Since(start)).Msg("Connectivity probe failed")
		return false
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	log.Debug().Str("url", p.url).Int("status", resp.StatusCode).Dur("elapsed", time.Since(start)).Msg("Connectivity probe succeeded")
	return true
}
