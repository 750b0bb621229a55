package pagination

import (
	"fmt"

	"github.com/saturnines/commerce-export/pkg/errors"
)

// resultsOf pulls the results array out of a {results: [...], total: N} envelope.
func resultsOf(body map[string]any) ([]any, error) {
	raw, ok := body["results"]
	if !ok {
		return nil, errors.WrapError(
			fmt.Errorf("response has no results field"),
			errors.ErrPagination,
			"read page",
		)
	}
	if raw == nil {
		return []any{}, nil
	}
	results, ok := raw.([]any)
	if !ok {
		return nil, errors.WrapError(
			fmt.Errorf("results is %T, not an array", raw),
			errors.ErrPagination,
			"read page",
		)
	}
	return results, nil
}

// truncater is implemented by pagers that cap the number of records kept per page.
type truncater interface {
	Keep(results []any) []any
}
