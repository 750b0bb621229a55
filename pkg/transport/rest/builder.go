package rest

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/saturnines/commerce-export/pkg/auth"
)

// Builder builds REST HTTP requests against <BaseURL>/<Endpoint>.
type Builder struct {
	BaseURL     string
	Endpoint    string
	Method      string
	Headers     map[string]string
	QueryParams url.Values
	AuthHandler auth.Handler
}

// NewBuilder constructs a Builder.
// Method defaults to GET if empty.
func NewBuilder(
	baseURL, endpoint, method string,
	headers map[string]string,
	params url.Values,
	authHandler auth.Handler,
) *Builder {
	if method == "" {
		method = http.MethodGet
	}
	return &Builder{
		BaseURL:     baseURL,
		Endpoint:    endpoint,
		Method:      method,
		Headers:     headers,
		QueryParams: params,
		AuthHandler: authHandler,
	}
}

// Build creates an HTTP request. Query parameters already present on the
// endpoint are kept; QueryParams override them key by key.
func (b *Builder) Build(ctx context.Context) (*http.Request, error) {
	target := strings.TrimRight(b.BaseURL, "/")
	if b.Endpoint != "" {
		target += "/" + strings.TrimLeft(b.Endpoint, "/")
	}

	req, err := http.NewRequestWithContext(ctx, b.Method, target, nil)
	if err != nil {
		return nil, err
	}

	for k, v := range b.Headers {
		req.Header.Set(k, v)
	}
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/json")
	}

	if len(b.QueryParams) > 0 {
		q := req.URL.Query()
		for k, vs := range b.QueryParams {
			q.Del(k)
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		req.URL.RawQuery = q.Encode()
	}

	if b.AuthHandler != nil {
		if err := b.AuthHandler.ApplyAuth(req); err != nil {
			return nil, err
		}
	}

	return req, nil
}
