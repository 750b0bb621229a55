package auth

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/saturnines/commerce-export/pkg/errors"
)

// Handler defines the interface for auth handlers
type Handler interface {
	ApplyAuth(req *http.Request) error
}

// Doer is the slice of http.Client the token source needs
type Doer interface {
	Do(*http.Request) (*http.Response, error)
}

// Region selects one of the two hosted API installations
type Region string

const (
	RegionEU Region = "EU"
	RegionUS Region = "US"
)

// Endpoints are the base URLs of a region
type Endpoints struct {
	AuthURL string
	APIURL  string
}

var regions = map[Region]Endpoints{
	RegionEU: {AuthURL: "https://auth.sphere.io", APIURL: "https://api.sphere.io"},
	RegionUS: {AuthURL: "https://auth.commercetools.co", APIURL: "https://api.commercetools.co"},
}

// ResolveRegion maps a configured region name to its base URLs.
func ResolveRegion(name string) (Endpoints, error) {
	ep, ok := regions[Region(strings.ToUpper(name))]
	if !ok {
		return Endpoints{}, errors.WrapError(
			fmt.Errorf("host %q is unknown (has to be EU or US)", name),
			errors.ErrConfiguration,
			"resolve region",
		)
	}
	return ep, nil
}
