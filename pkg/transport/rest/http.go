package rest

import (
	"net/http"
	"time"

	"github.com/saturnines/commerce-export/pkg/config"
)

// HTTPDoer is a minimal interface for HTTP clients
type HTTPDoer interface {
	Do(*http.Request) (*http.Response, error)
}

// NewHTTPClient assembles the transport chain used for every API call:
// rate limiting closest to the wire, retries around it.
func NewHTTPClient(cfg config.HTTP, base http.RoundTripper) *http.Client {
	if base == nil {
		base = http.DefaultTransport
	}

	var rt http.RoundTripper = base
	if cfg.RateLimit > 0 {
		rt = NewRateLimitTransport(rt, cfg.RateLimit, cfg.Burst)
	}
	rt = NewRetryTransport(rt, &cfg)

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &http.Client{Transport: rt, Timeout: timeout}
}
