package auth

import (
	"fmt"
	"net/http"

	"github.com/saturnines/commerce-export/pkg/errors"
)

// BearerAuth applies a fixed, already issued access token
type BearerAuth struct {
	Token string
}

// NewBearerAuth creates a new bearer token authentication handler
func NewBearerAuth(token string) *BearerAuth {
	return &BearerAuth{
		Token: token,
	}
}

// ApplyAuth adds the Bearer token to the Authorization header
func (b *BearerAuth) ApplyAuth(req *http.Request) error {
	if b.Token == "" {
		return errors.WrapError(
			fmt.Errorf("token is required"),
			errors.ErrAuthentication,
			"apply bearer auth",
		)
	}
	req.Header.Set("Authorization", "Bearer "+b.Token)
	return nil
}

func (b *BearerAuth) String() string {
	return "BearerAuth(token: [REDACTED])"
}
