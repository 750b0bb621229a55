package auth

import (
	"github.com/saturnines/commerce-export/pkg/config"
)

// FromConfig picks the handler for the configured credentials: a fixed
// bearer token when one is given, the client credentials grant otherwise.
func FromConfig(cfg *config.Export, client Doer) (Handler, error) {
	if cfg.Credentials.Token != "" {
		return NewBearerAuth(cfg.Credentials.Token), nil
	}

	ep, err := ResolveRegion(cfg.Region)
	if err != nil {
		return nil, err
	}
	if cfg.AuthURL != "" {
		ep.AuthURL = cfg.AuthURL
	}

	return NewOAuth2Auth(
		ep.AuthURL,
		cfg.Credentials.ClientID,
		cfg.Credentials.ClientSecret,
		cfg.Credentials.Scope,
		client,
	)
}
