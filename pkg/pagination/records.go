package pagination

import (
	"context"
	"fmt"
	"iter"
	"net/http"

	"github.com/saturnines/commerce-export/pkg/errors"
	"github.com/saturnines/commerce-export/pkg/jsonpath"
)

// Records lazily walks all pages of p and yields each raw record in order.
// The first error is yielded once and ends the sequence. Results that are
// not JSON objects are skipped.
func Records(ctx context.Context, f Fetcher, p Pager) iter.Seq2[map[string]any, error] {
	return func(yield func(map[string]any, error) bool) {
		for {
			if err := ctx.Err(); err != nil {
				yield(nil, err)
				return
			}

			req, err := p.NextRequest()
			if err != nil {
				yield(nil, err)
				return
			}
			if req == nil {
				return
			}

			body, err := f.Fetch(req.WithContext(ctx))
			if err != nil {
				yield(nil, err)
				return
			}
			results, err := resultsOf(body)
			if err != nil {
				yield(nil, err)
				return
			}
			if t, ok := p.(truncater); ok {
				results = t.Keep(results)
			}
			if err := p.UpdateState(results); err != nil {
				yield(nil, err)
				return
			}

			for _, r := range results {
				record, ok := r.(map[string]any)
				if !ok {
					continue
				}
				if !yield(record, nil) {
					return
				}
			}
		}
	}
}

// Count asks for an empty page and returns the envelope's total.
func Count(ctx context.Context, f Fetcher, req *http.Request) (int64, error) {
	req = req.Clone(ctx)
	q := req.URL.Query()
	q.Set("limit", "0")
	q.Set("withTotal", "true")
	req.URL.RawQuery = q.Encode()

	body, err := f.Fetch(req)
	if err != nil {
		return 0, err
	}
	total, ok := jsonpath.Int64(body, "total")
	if !ok {
		return 0, errors.WrapError(
			fmt.Errorf("response has no total"),
			errors.ErrPagination,
			"count",
		)
	}
	return total, nil
}
