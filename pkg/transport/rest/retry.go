package rest

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net"
	"net/http"
	"slices"
	"sync"
	"syscall"
	"time"

	"github.com/saturnines/commerce-export/pkg/config"
)

// maxBackoff caps a single retry delay
const maxBackoff = 30 * time.Second

// RetryTransport retries idempotent requests on transient network errors and
// on the configured statuses, with full jitter exponential backoff. With
// MaxAttempts <= 1 every failure is returned as is.
type RetryTransport struct {
	Base http.RoundTripper
	Cfg  *config.HTTP

	mu     sync.Mutex
	jitter *rand.Rand
	sleep  func(req *http.Request, d time.Duration) error
}

// NewRetryTransport creates a new retry transport
func NewRetryTransport(base http.RoundTripper, cfg *config.HTTP) *RetryTransport {
	if base == nil {
		base = http.DefaultTransport
	}
	return &RetryTransport{
		Base:   base,
		Cfg:    cfg,
		jitter: rand.New(rand.NewSource(time.Now().UnixNano())),
		sleep:  sleepCtx,
	}
}

func (t *RetryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.Cfg == nil || t.Cfg.MaxAttempts <= 1 {
		return t.Base.RoundTrip(req)
	}

	switch req.Method {
	case http.MethodGet, http.MethodHead,
		http.MethodPut, http.MethodDelete,
		http.MethodOptions, http.MethodTrace:
	default:
		return t.Base.RoundTrip(req)
	}

	var lastErr error
	var lastResp *http.Response

	for attempt := 0; attempt < t.Cfg.MaxAttempts; attempt++ {
		resp, err := t.Base.RoundTrip(t.cloneRequest(req))

		if err != nil {
			if !retryableError(err) {
				return nil, err
			}
			lastErr = err
		} else {
			if !slices.Contains(t.Cfg.RetryableStatuses, resp.StatusCode) {
				return resp, nil
			}
			if lastResp != nil {
				lastResp.Body.Close()
			}
			lastResp = resp
		}

		if attempt == t.Cfg.MaxAttempts-1 {
			break
		}
		if err := t.sleep(req, t.backoff(attempt)); err != nil {
			if lastResp != nil {
				lastResp.Body.Close()
			}
			return nil, err
		}
		// the retained response is superseded by the next attempt
		if lastResp != nil {
			lastResp.Body.Close()
			lastResp = nil
		}
	}

	if lastResp != nil {
		return lastResp, nil
	}
	return nil, fmt.Errorf("retry transport failed after %d attempts: %w", t.Cfg.MaxAttempts, lastErr)
}

// retryableError reports transient network failures
func retryableError(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, io.ErrUnexpectedEOF)
}

// cloneRequest makes a deep copy for safe body reuse
func (t *RetryTransport) cloneRequest(r *http.Request) *http.Request {
	r2 := r.Clone(r.Context())
	if r.Body != nil {
		buf, _ := io.ReadAll(r.Body)
		r.Body = io.NopCloser(bytes.NewReader(buf))
		r2.Body = io.NopCloser(bytes.NewReader(buf))
	}
	return r2
}

// backoff computes full jitter exponential backoff
func (t *RetryTransport) backoff(attempt int) time.Duration {
	base := time.Duration(t.Cfg.InitialBackoff * float64(time.Second))
	maxDelay := time.Duration(float64(base) * math.Pow(t.Cfg.BackoffMultiplier, float64(attempt)))
	if maxDelay > maxBackoff {
		maxDelay = maxBackoff
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	return time.Duration(t.jitter.Float64() * float64(maxDelay))
}

func sleepCtx(req *http.Request, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-req.Context().Done():
		return req.Context().Err()
	case <-timer.C:
		return nil
	}
}
