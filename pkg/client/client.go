package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/rs/zerolog"

	"github.com/saturnines/commerce-export/pkg/auth"
	"github.com/saturnines/commerce-export/pkg/config"
	"github.com/saturnines/commerce-export/pkg/errors"
	"github.com/saturnines/commerce-export/pkg/transport/rest"
)

// maxErrorBody bounds how much of a failed response is kept in the error
const maxErrorBody = 512

// Client performs authenticated GETs against <apiURL>/<projectKey>/<endpoint>
type Client struct {
	httpClient rest.HTTPDoer
	baseURL    string
	headers    map[string]string
	auth       auth.Handler
	log        zerolog.Logger
}

// Option defines config for Client
type Option func(*Client)

// New creates a Client for one project. Auth is applied per request unless
// the HTTP client already carries it in its transport.
func New(apiURL, projectKey string, options ...Option) *Client {
	c := &Client{
		httpClient: http.DefaultClient,
		baseURL:    strings.TrimRight(apiURL, "/") + "/" + projectKey,
		headers:    make(map[string]string),
		log:        zerolog.Nop(),
	}
	for _, option := range options {
		option(c)
	}
	return c
}

// WithHTTPClient replaces the HTTP client
func WithHTTPClient(doer rest.HTTPDoer) Option {
	return func(c *Client) {
		c.httpClient = doer
	}
}

// WithAuth sets the handler applied to every request
func WithAuth(h auth.Handler) Option {
	return func(c *Client) {
		c.auth = h
	}
}

// WithHeader adds a header to all requests
func WithHeader(key, value string) Option {
	return func(c *Client) {
		c.headers[key] = value
	}
}

// WithLogger sets the logger for request tracing
func WithLogger(log zerolog.Logger) Option {
	return func(c *Client) {
		c.log = log
	}
}

// FromConfig wires region, transport chain and credentials from the export
// config. An unknown region or absent credentials fail here, before any
// request goes out.
func FromConfig(cfg *config.Export, log zerolog.Logger, base http.RoundTripper) (*Client, error) {
	ep, err := auth.ResolveRegion(cfg.Region)
	if err != nil {
		return nil, err
	}
	if cfg.APIURL != "" {
		ep.APIURL = cfg.APIURL
	}

	httpClient := rest.NewHTTPClient(cfg.HTTP, base)
	tokenClient := &http.Client{Transport: base, Timeout: httpClient.Timeout}

	handler, err := auth.FromConfig(cfg, tokenClient)
	if err != nil {
		return nil, err
	}

	opts := []Option{WithLogger(log)}
	if oauth, ok := handler.(*auth.OAuth2Auth); ok {
		httpClient.Transport = auth.NewOAuth2RoundTripper(httpClient.Transport, oauth)
	} else {
		opts = append(opts, WithAuth(handler))
	}
	opts = append(opts, WithHTTPClient(httpClient))

	return New(ep.APIURL, cfg.ProjectKey, opts...), nil
}

// BaseURL returns <apiURL>/<projectKey>
func (c *Client) BaseURL() string {
	return c.baseURL
}

// NewRequest builds an authenticated GET for endpoint with params.
func (c *Client) NewRequest(ctx context.Context, endpoint string, params url.Values) (*http.Request, error) {
	req, err := rest.NewBuilder(c.baseURL, endpoint, http.MethodGet, c.headers, params, c.auth).Build(ctx)
	if err != nil {
		if errors.Is(err, errors.ErrAuthentication) {
			return nil, err
		}
		return nil, errors.WrapError(err, errors.ErrHTTPRequest, "build request")
	}
	return req, nil
}

// Fetch sends req and decodes the JSON object it returns. Any non-2xx
// status is an ErrHTTPResponse carrying an *errors.HTTPError.
func (c *Client) Fetch(req *http.Request) (map[string]any, error) {
	c.log.Debug().Str("method", req.Method).Str("url", req.URL.String()).Msg("api request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.WrapError(err, errors.ErrHTTPRequest, fmt.Sprintf("%s %s", req.Method, req.URL.Path))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		c.log.Warn().Int("status", resp.StatusCode).Str("url", req.URL.Path).Msg("api request failed")
		return nil, errors.WrapError(
			&errors.HTTPError{StatusCode: resp.StatusCode, Status: resp.Status, Body: strings.TrimSpace(string(body))},
			errors.ErrHTTPResponse,
			fmt.Sprintf("%s %s", req.Method, req.URL.Path),
		)
	}

	var data map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, errors.WrapError(err, errors.ErrHTTPResponse, "decode response")
	}
	return data, nil
}

// Query performs a single GET and returns the parsed JSON.
func (c *Client) Query(ctx context.Context, endpoint string, params url.Values) (map[string]any, error) {
	req, err := c.NewRequest(ctx, endpoint, params)
	if err != nil {
		return nil, err
	}
	return c.Fetch(req)
}

// Get fetches a single resource, e.g. "categories/<id>".
func (c *Client) Get(ctx context.Context, endpoint string) (map[string]any, error) {
	return c.Query(ctx, endpoint, nil)
}
