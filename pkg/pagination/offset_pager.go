package pagination

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/saturnines/commerce-export/pkg/errors"
)

// OffsetPager fetches a bounded sample of at most MaxItems records in
// chunks of min(remaining, PageSize), advancing limit/offset.
type OffsetPager struct {
	BaseReq  *http.Request
	PageSize int
	MaxItems int
	SortKey  string

	offset    int
	remaining int
	limit     int
	done      bool
}

// NewOffsetPager builds an OffsetPager. Non positive sizes are configuration
// errors and are reported before any request is built.
func NewOffsetPager(req *http.Request, pageSize, maxItems, initOffset int, sortKey string) (*OffsetPager, error) {
	if maxItems <= 0 {
		return nil, errors.WrapError(
			fmt.Errorf("max items has to be larger than 0, got %d", maxItems),
			errors.ErrConfiguration,
			"offset pagination",
		)
	}
	if pageSize <= 0 {
		return nil, errors.WrapError(
			fmt.Errorf("page size has to be larger than 0, got %d", pageSize),
			errors.ErrConfiguration,
			"offset pagination",
		)
	}
	if initOffset < 0 {
		initOffset = 0
	}
	return &OffsetPager{
		BaseReq:   req,
		PageSize:  pageSize,
		MaxItems:  maxItems,
		SortKey:   sortKey,
		offset:    initOffset,
		remaining: maxItems,
	}, nil
}

// NextRequest returns the next request or nil when done.
func (p *OffsetPager) NextRequest() (*http.Request, error) {
	if p.done || p.remaining <= 0 {
		return nil, nil
	}

	p.limit = min(p.remaining, p.PageSize)
	req := p.BaseReq.Clone(p.BaseReq.Context())
	q := req.URL.Query()
	q.Set("limit", strconv.Itoa(p.limit))
	q.Set("offset", strconv.Itoa(p.offset))
	if p.SortKey != "" {
		q.Set("sort", p.SortKey+" asc")
	}
	req.URL.RawQuery = q.Encode()
	return req, nil
}

// UpdateState bumps the offset and stops early on a short page.
func (p *OffsetPager) UpdateState(results []any) error {
	p.offset += p.limit
	p.remaining -= p.limit
	if len(results) < p.limit {
		p.done = true
	}
	return nil
}

// Keep reports how many records of a page fit under the cap, for servers
// that return more than the requested limit.
func (p *OffsetPager) Keep(results []any) []any {
	if len(results) > p.limit {
		return results[:p.limit]
	}
	return results
}
