package auth

import (
	"bytes"
	"io"
	"net/http"
)

// OAuth2RoundTripper attaches the token to each request and, on a 401,
// drops the cached token and retries the request once with a fresh one.
type OAuth2RoundTripper struct {
	base   http.RoundTripper
	oauth2 *OAuth2Auth
}

// NewOAuth2RoundTripper creates a new OAuth2RoundTripper
func NewOAuth2RoundTripper(base http.RoundTripper, oauth2Auth *OAuth2Auth) *OAuth2RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	return &OAuth2RoundTripper{base: base, oauth2: oauth2Auth}
}

// RoundTrip implements http.RoundTripper
func (rt *OAuth2RoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	first := cloneRequest(req)
	if err := rt.oauth2.ApplyAuth(first); err != nil {
		return nil, err
	}

	resp, err := rt.base.RoundTrip(first)
	if err != nil || resp.StatusCode != http.StatusUnauthorized {
		return resp, err
	}
	resp.Body.Close()

	rt.oauth2.Invalidate()
	retry := cloneRequest(req)
	if err := rt.oauth2.ApplyAuth(retry); err != nil {
		return nil, err
	}
	return rt.base.RoundTrip(retry)
}

// cloneRequest creates a copy of the request with a fresh body
func cloneRequest(req *http.Request) *http.Request {
	clone := req.Clone(req.Context())
	if req.Body != nil {
		bodyBytes, _ := io.ReadAll(req.Body)
		req.Body = io.NopCloser(bytes.NewReader(bodyBytes))
		clone.Body = io.NopCloser(bytes.NewReader(bodyBytes))
	}
	return clone
}
