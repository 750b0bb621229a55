package core

import (
	"context"
	"net/http"
	"net/url"

	"github.com/saturnines/commerce-export/pkg/pagination"
)

// API is the part of the query client an export drives
type API interface {
	pagination.Fetcher
	NewRequest(ctx context.Context, endpoint string, params url.Values) (*http.Request, error)
	Get(ctx context.Context, endpoint string) (map[string]any, error)
}

// Runner runs one export
type Runner interface {
	Run(ctx context.Context, tasks Tasks) (*Result, error)
}
