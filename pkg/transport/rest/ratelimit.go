package rest

import (
	"net/http"

	"golang.org/x/time/rate"
)

// RateLimitTransport blocks each request until the token bucket allows it.
type RateLimitTransport struct {
	Base    http.RoundTripper
	limiter *rate.Limiter
}

// NewRateLimitTransport allows qps requests per second with the given burst.
func NewRateLimitTransport(base http.RoundTripper, qps float64, burst int) *RateLimitTransport {
	if base == nil {
		base = http.DefaultTransport
	}
	if burst <= 0 {
		burst = 1
	}
	return &RateLimitTransport{
		Base:    base,
		limiter: rate.NewLimiter(rate.Limit(qps), burst),
	}
}

func (t *RateLimitTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if err := t.limiter.Wait(req.Context()); err != nil {
		return nil, err
	}
	return t.Base.RoundTrip(req)
}
