package pagination

import "net/http"

// Fetcher executes one page request and returns the decoded JSON envelope.
type Fetcher interface {
	Fetch(req *http.Request) (map[string]any, error)
}

// Pager drives one pagination strategy.
type Pager interface {
	// NextRequest returns the next page request, or nil when the walk is done.
	NextRequest() (*http.Request, error)
	// UpdateState records the results of the page just fetched.
	UpdateState(results []any) error
}
