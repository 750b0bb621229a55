package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saturnines/commerce-export/pkg/auth"
	"github.com/saturnines/commerce-export/pkg/config"
	"github.com/saturnines/commerce-export/pkg/errors"
)

// fakeAPI answers the token endpoint and a handful of project routes.
func fakeAPI(t *testing.T, tokenCalls *int32) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/token", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(tokenCalls, 1)
		if _, secret, _ := r.BasicAuth(); secret != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Write([]byte(`{"access_token":"tok","expires_in":3600}`))
	})
	mux.HandleFunc("/shop/categories/C1", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Write([]byte(`{"id":"C1","name":{"en":"Shoes"},"ancestors":[]}`))
	})
	mux.HandleFunc("/shop/orders", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "5", r.URL.Query().Get("limit"))
		w.Write([]byte(`{"results":[],"total":0}`))
	})
	mux.HandleFunc("/shop/broken", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"message":"boom"}`))
	})
	mux.HandleFunc("/shop/garbage", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`not json`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(srvURL, secret string) *config.Export {
	return &config.Export{
		ProjectKey: "shop",
		Region:     "EU",
		APIURL:     srvURL,
		AuthURL:    srvURL,
		Credentials: config.Credentials{
			ClientID:     "client",
			ClientSecret: secret,
			Scope:        "view_products:shop",
		},
		HTTP: config.HTTP{MaxAttempts: 1},
	}
}

func TestClient_Get(t *testing.T) {
	var tokenCalls int32
	srv := fakeAPI(t, &tokenCalls)

	c, err := FromConfig(testConfig(srv.URL, "secret"), zerolog.Nop(), nil)
	require.NoError(t, err)
	assert.Equal(t, srv.URL+"/shop", c.BaseURL())

	data, err := c.Get(context.Background(), "categories/C1")
	require.NoError(t, err)
	assert.Equal(t, "C1", data["id"])

	_, err = c.Query(context.Background(), "orders", url.Values{"limit": {"5"}})
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&tokenCalls))
}

func TestClient_ApiError(t *testing.T) {
	var tokenCalls int32
	srv := fakeAPI(t, &tokenCalls)

	c, err := FromConfig(testConfig(srv.URL, "secret"), zerolog.Nop(), nil)
	require.NoError(t, err)

	_, err = c.Get(context.Background(), "broken")
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrHTTPResponse)

	var httpErr *errors.HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusInternalServerError, httpErr.StatusCode)
	assert.Contains(t, httpErr.Body, "boom")

	_, err = c.Get(context.Background(), "garbage")
	assert.ErrorIs(t, err, errors.ErrHTTPResponse)
}

func TestClient_AuthRejected(t *testing.T) {
	var tokenCalls int32
	srv := fakeAPI(t, &tokenCalls)

	c, err := FromConfig(testConfig(srv.URL, "wrong"), zerolog.Nop(), nil)
	require.NoError(t, err)

	_, err = c.Get(context.Background(), "categories/C1")
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrAuthentication)
}

func TestFromConfig_FailsBeforeAnyRequest(t *testing.T) {
	var tokenCalls int32
	srv := fakeAPI(t, &tokenCalls)

	cfg := testConfig(srv.URL, "secret")
	cfg.Region = "APAC"
	_, err := FromConfig(cfg, zerolog.Nop(), nil)
	assert.ErrorIs(t, err, errors.ErrConfiguration)

	cfg = testConfig(srv.URL, "")
	_, err = FromConfig(cfg, zerolog.Nop(), nil)
	assert.ErrorIs(t, err, errors.ErrAuthentication)

	assert.Zero(t, atomic.LoadInt32(&tokenCalls))
}

func TestClient_StaticToken(t *testing.T) {
	var tokenCalls int32
	srv := fakeAPI(t, &tokenCalls)

	c := New(srv.URL, "shop", WithAuth(auth.NewBearerAuth("tok")), WithHeader("X-Correlation-ID", "run-1"))
	data, err := c.Get(context.Background(), "categories/C1")
	require.NoError(t, err)
	assert.Equal(t, "C1", data["id"])
	assert.Zero(t, atomic.LoadInt32(&tokenCalls))
}
