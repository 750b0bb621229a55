package pagination

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/saturnines/commerce-export/pkg/errors"
	"github.com/saturnines/commerce-export/pkg/jsonpath"
)

// WherePager walks a collection sorted by SortKey, asking each time for the
// records whose key is greater than the last one seen. It stops after a page
// shorter than PageSize, so a collection whose size is a multiple of
// PageSize costs one extra, empty page.
type WherePager struct {
	BaseReq  *http.Request
	PageSize int
	SortKey  string
	Filter   string // extra where predicate, ANDed with the cursor

	lastKey string
	done    bool
}

// NewWherePager builds a WherePager. sortKey defaults to "id".
func NewWherePager(req *http.Request, pageSize int, sortKey, filter string) (*WherePager, error) {
	if pageSize <= 0 {
		return nil, errors.WrapError(
			fmt.Errorf("page size has to be larger than 0, got %d", pageSize),
			errors.ErrConfiguration,
			"where pagination",
		)
	}
	if sortKey == "" {
		sortKey = "id"
	}
	return &WherePager{
		BaseReq:  req,
		PageSize: pageSize,
		SortKey:  sortKey,
		Filter:   filter,
	}, nil
}

// NextRequest returns the next *http.Request, or nil when there are no more pages.
func (p *WherePager) NextRequest() (*http.Request, error) {
	if p.done {
		return nil, nil
	}

	req := p.BaseReq.Clone(p.BaseReq.Context())
	q := req.URL.Query()
	q.Set("limit", strconv.Itoa(p.PageSize))
	q.Set("sort", p.SortKey+" asc")
	q.Del("where")
	if p.Filter != "" {
		q.Add("where", p.Filter)
	}
	if p.lastKey != "" {
		q.Add("where", fmt.Sprintf(`%s > "%s"`, p.SortKey, strings.ReplaceAll(p.lastKey, `"`, `\"`)))
	}
	req.URL.RawQuery = q.Encode()
	return req, nil
}

// UpdateState advances the cursor to the last record's key. A page whose
// last key does not move past the previous cursor fails, since following it
// would loop or skip records.
func (p *WherePager) UpdateState(results []any) error {
	if len(results) < p.PageSize {
		p.done = true
	}
	if len(results) == 0 {
		return nil
	}

	key, ok := jsonpath.String(results[len(results)-1], p.SortKey)
	if !ok || key == "" {
		p.done = true
		return errors.WrapError(
			fmt.Errorf("last record has no %q", p.SortKey),
			errors.ErrPagination,
			"advance cursor",
		)
	}
	if p.lastKey != "" && key <= p.lastKey {
		p.done = true
		return errors.WrapError(
			fmt.Errorf("cursor did not advance past %q (got %q)", p.lastKey, key),
			errors.ErrPagination,
			"advance cursor",
		)
	}

	p.lastKey = key
	return nil
}

// LastKey returns the cursor position, empty before the first page.
func (p *WherePager) LastKey() string {
	return p.lastKey
}
