package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/saturnines/commerce-export/pkg/errors"
)

// DefaultRefreshBefore is the margin before expiry at which a token is renewed
const DefaultRefreshBefore = 60 * time.Second

// OAuth2Auth obtains and caches access tokens with the client credentials grant
type OAuth2Auth struct {
	TokenURL      string
	ClientID      string
	ClientSecret  string
	Scope         string
	RefreshBefore time.Duration

	client Doer
	now    func() time.Time

	mutex       sync.Mutex
	accessToken string
	expiresAt   time.Time
}

// TokenResponse represents the response from the OAuth2 token endpoint
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
	Scope       string `json:"scope,omitempty"`
}

// NewOAuth2Auth creates a token source for <authURL>/oauth/token. Absent
// credentials fail here, before any request is made.
func NewOAuth2Auth(authURL, clientID, clientSecret, scope string, client Doer) (*OAuth2Auth, error) {
	var missing []string
	if clientID == "" {
		missing = append(missing, "client_id")
	}
	if clientSecret == "" {
		missing = append(missing, "client_secret")
	}
	if scope == "" {
		missing = append(missing, "scope")
	}
	if len(missing) > 0 {
		return nil, errors.WrapError(
			fmt.Errorf("missing %s", strings.Join(missing, ", ")),
			errors.ErrAuthentication,
			"create oauth2 auth",
		)
	}
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}

	return &OAuth2Auth{
		TokenURL:      strings.TrimRight(authURL, "/") + "/oauth/token",
		ClientID:      clientID,
		ClientSecret:  clientSecret,
		Scope:         scope,
		RefreshBefore: DefaultRefreshBefore,
		client:        client,
		now:           time.Now,
	}, nil
}

// ApplyAuth adds the current access token to the request
func (o *OAuth2Auth) ApplyAuth(req *http.Request) error {
	token, err := o.Token(req.Context())
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	return nil
}

// Token returns a cached token, fetching a new one when none is held or the
// held one expires within RefreshBefore.
func (o *OAuth2Auth) Token(ctx context.Context) (string, error) {
	o.mutex.Lock()
	defer o.mutex.Unlock()

	if o.accessToken != "" && o.expiresAt.Sub(o.now()) > o.RefreshBefore {
		return o.accessToken, nil
	}

	resp, err := o.requestToken(ctx)
	if err != nil {
		return "", err
	}

	o.accessToken = resp.AccessToken
	if resp.ExpiresIn > 0 {
		o.expiresAt = o.now().Add(time.Duration(resp.ExpiresIn) * time.Second)
	} else {
		o.expiresAt = o.now().Add(time.Hour)
	}
	return o.accessToken, nil
}

// Invalidate drops the cached token so the next call fetches a fresh one
func (o *OAuth2Auth) Invalidate() {
	o.mutex.Lock()
	o.accessToken = ""
	o.expiresAt = time.Time{}
	o.mutex.Unlock()
}

func (o *OAuth2Auth) requestToken(ctx context.Context) (*TokenResponse, error) {
	data := url.Values{}
	data.Set("grant_type", "client_credentials")
	data.Set("scope", o.Scope)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.TokenURL, strings.NewReader(data.Encode()))
	if err != nil {
		return nil, errors.WrapError(err, errors.ErrAuthentication, "create token request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	if err := NewBasicAuth(o.ClientID, o.ClientSecret).ApplyAuth(req); err != nil {
		return nil, err
	}

	resp, err := o.client.Do(req)
	if err != nil {
		return nil, errors.WrapError(err, errors.ErrAuthentication, "token request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, errors.WrapError(
			&errors.HTTPError{StatusCode: resp.StatusCode, Status: resp.Status, Body: string(body)},
			errors.ErrAuthentication,
			"failed to get an access token",
		)
	}

	var tokenResp TokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tokenResp); err != nil {
		return nil, errors.WrapError(err, errors.ErrAuthentication, "decode token response")
	}
	if tokenResp.AccessToken == "" {
		return nil, errors.WrapError(fmt.Errorf("empty access_token"), errors.ErrAuthentication, "decode token response")
	}
	return &tokenResp, nil
}

// String returns a string representation of this auth method
func (o *OAuth2Auth) String() string {
	return fmt.Sprintf("OAuth2Auth(client_id: %s, url: %s)", o.ClientID, o.TokenURL)
}
