package auth

import (
	"fmt"
	"net/http"

	"github.com/saturnines/commerce-export/pkg/errors"
)

// BasicAuth sends client credentials as HTTP basic auth. The token endpoint
// expects the client id and secret this way.
type BasicAuth struct {
	Username string
	Password string
}

// NewBasicAuth creates a new basic authentication handler
func NewBasicAuth(username, password string) *BasicAuth {
	return &BasicAuth{
		Username: username,
		Password: password,
	}
}

// ApplyAuth adds the basic auth header to the request
func (b *BasicAuth) ApplyAuth(req *http.Request) error {
	if b.Username == "" {
		return errors.WrapError(
			fmt.Errorf("client id is required"),
			errors.ErrAuthentication,
			"apply basic auth",
		)
	}
	req.SetBasicAuth(b.Username, b.Password)
	return nil
}

// String returns a string representation of this auth method
func (b *BasicAuth) String() string {
	return fmt.Sprintf("BasicAuth(username: %s)", b.Username)
}
