package pagination

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saturnines/commerce-export/pkg/errors"
)

// fakeCollection serves a sorted collection with where-cursor and
// limit/offset semantics and records every query it receives.
type fakeCollection struct {
	mu      sync.Mutex
	ids     []string
	queries []map[string][]string
	stuck   bool // always serve the first page
}

func newCollection(n int) *fakeCollection {
	c := &fakeCollection{}
	for i := 0; i < n; i++ {
		c.ids = append(c.ids, fmt.Sprintf("id-%03d", i))
	}
	return c
}

func (c *fakeCollection) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	c.mu.Lock()
	defer c.mu.Unlock()

	q := r.URL.Query()
	c.queries = append(c.queries, q)

	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))

	var after string
	for _, cond := range q["where"] {
		if strings.HasPrefix(cond, `id > "`) {
			after = strings.TrimSuffix(strings.TrimPrefix(cond, `id > "`), `"`)
		}
	}

	var matching []string
	for _, id := range c.ids {
		if c.stuck || id > after {
			matching = append(matching, id)
		}
	}
	if offset > len(matching) {
		offset = len(matching)
	}
	matching = matching[offset:]
	if limit < len(matching) {
		matching = matching[:limit]
	}

	results := make([]map[string]any, 0, len(matching))
	for _, id := range matching {
		results = append(results, map[string]any{"id": id})
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"limit":   limit,
		"offset":  offset,
		"count":   len(results),
		"total":   len(c.ids),
		"results": results,
	})
}

func (c *fakeCollection) requests() []map[string][]string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]map[string][]string(nil), c.queries...)
}

// httpFetcher is the minimal Fetcher the tests need.
type httpFetcher struct{ client *http.Client }

func (f httpFetcher) Fetch(req *http.Request) (map[string]any, error) {
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return nil, errors.WrapError(&errors.HTTPError{StatusCode: resp.StatusCode, Status: resp.Status}, errors.ErrHTTPResponse, "query")
	}
	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, err
	}
	return body, nil
}

func serve(t *testing.T, h http.Handler) (*httptest.Server, *http.Request, Fetcher) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	req, err := http.NewRequest(http.MethodGet, srv.URL+"/shop/orders?staged=false", nil)
	require.NoError(t, err)
	return srv, req, httpFetcher{client: srv.Client()}
}

func collect(t *testing.T, f Fetcher, p Pager) ([]string, error) {
	t.Helper()
	var ids []string
	for rec, err := range Records(context.Background(), f, p) {
		if err != nil {
			return ids, err
		}
		ids = append(ids, rec["id"].(string))
	}
	return ids, nil
}

func TestWherePager_CompleteAndOrdered(t *testing.T) {
	tests := []struct {
		name         string
		n, pageSize  int
		wantRequests int
	}{
		{"partial last page", 7, 3, 3},
		{"exact multiple needs a closing empty page", 6, 3, 3},
		{"single short page", 2, 5, 1},
		{"empty collection", 0, 5, 1},
		{"page size one", 4, 1, 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			coll := newCollection(tt.n)
			_, req, f := serve(t, coll)

			p, err := NewWherePager(req, tt.pageSize, "id", "")
			require.NoError(t, err)

			ids, err := collect(t, f, p)
			require.NoError(t, err)
			if tt.n == 0 {
				assert.Empty(t, ids)
			} else {
				assert.Equal(t, coll.ids, ids)
			}
			assert.Len(t, coll.requests(), tt.wantRequests)
		})
	}
}

func TestWherePager_QueryShape(t *testing.T) {
	coll := newCollection(5)
	_, req, f := serve(t, coll)

	p, err := NewWherePager(req, 2, "id", `orderState = "Complete"`)
	require.NoError(t, err)
	_, err = collect(t, f, p)
	require.NoError(t, err)

	qs := coll.requests()
	require.Len(t, qs, 3)

	assert.Equal(t, []string{"2"}, qs[0]["limit"])
	assert.Equal(t, []string{"id asc"}, qs[0]["sort"])
	assert.Equal(t, []string{"false"}, qs[0]["staged"])
	assert.Equal(t, []string{`orderState = "Complete"`}, qs[0]["where"])

	assert.Equal(t, []string{`orderState = "Complete"`, `id > "id-001"`}, qs[1]["where"])
	assert.Equal(t, []string{`orderState = "Complete"`, `id > "id-003"`}, qs[2]["where"])
	assert.Equal(t, "id-004", p.LastKey())
}

func TestWherePager_CursorMustAdvance(t *testing.T) {
	coll := newCollection(4)
	coll.stuck = true
	_, req, f := serve(t, coll)

	p, err := NewWherePager(req, 2, "id", "")
	require.NoError(t, err)

	ids, err := collect(t, f, p)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrPagination)
	assert.Equal(t, []string{"id-000", "id-001"}, ids)
	assert.Len(t, coll.requests(), 2)
}

func TestWherePager_RecordWithoutKey(t *testing.T) {
	p, err := NewWherePager(httptest.NewRequest(http.MethodGet, "/x", nil), 1, "id", "")
	require.NoError(t, err)

	err = p.UpdateState([]any{map[string]any{"version": 1.0}})
	assert.ErrorIs(t, err, errors.ErrPagination)

	next, err := p.NextRequest()
	require.NoError(t, err)
	assert.Nil(t, next)
}

func TestOffsetPager_BoundedSample(t *testing.T) {
	coll := newCollection(10)
	_, req, f := serve(t, coll)

	p, err := NewOffsetPager(req, 3, 7, 0, "id")
	require.NoError(t, err)

	ids, err := collect(t, f, p)
	require.NoError(t, err)
	assert.Equal(t, coll.ids[:7], ids)

	qs := coll.requests()
	require.Len(t, qs, 3)
	var limits, offsets []string
	for _, q := range qs {
		limits = append(limits, q["limit"][0])
		offsets = append(offsets, q["offset"][0])
	}
	assert.Equal(t, []string{"3", "3", "1"}, limits)
	assert.Equal(t, []string{"0", "3", "6"}, offsets)
}

func TestOffsetPager_StopsOnShortPage(t *testing.T) {
	coll := newCollection(4)
	_, req, f := serve(t, coll)

	p, err := NewOffsetPager(req, 3, 100, 0, "")
	require.NoError(t, err)

	ids, err := collect(t, f, p)
	require.NoError(t, err)
	assert.Equal(t, coll.ids, ids)
	assert.Len(t, coll.requests(), 2)
}

func TestOffsetPager_TruncatesOversizedPage(t *testing.T) {
	srv := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"results":[{"id":"a"},{"id":"b"},{"id":"c"}]}`))
	})
	_, req, f := serve(t, srv)

	p, err := NewOffsetPager(req, 5, 2, 0, "")
	require.NoError(t, err)

	ids, err := collect(t, f, p)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, ids)
}

func TestPagers_ConfigErrorsBeforeAnyRequest(t *testing.T) {
	coll := newCollection(3)
	_, req, _ := serve(t, coll)

	_, err := NewOffsetPager(req, 3, 0, 0, "")
	assert.ErrorIs(t, err, errors.ErrConfiguration)
	_, err = NewOffsetPager(req, 3, -5, 0, "")
	assert.ErrorIs(t, err, errors.ErrConfiguration)
	_, err = NewOffsetPager(req, 0, 5, 0, "")
	assert.ErrorIs(t, err, errors.ErrConfiguration)
	_, err = NewWherePager(req, 0, "id", "")
	assert.ErrorIs(t, err, errors.ErrConfiguration)

	zero := 0
	_, err = DefaultFactory.New(req, PlanFor(3, &zero, ""))
	assert.ErrorIs(t, err, errors.ErrConfiguration)

	assert.Empty(t, coll.requests())
}

func TestRecords_PropagatesHTTPError(t *testing.T) {
	calls := 0
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 2 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"results":[{"id":"a"},{"id":"b"}]}`))
	})
	_, req, f := serve(t, h)

	p, err := NewWherePager(req, 2, "id", "")
	require.NoError(t, err)

	ids, err := collect(t, f, p)
	assert.Equal(t, []string{"a", "b"}, ids)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrHTTPResponse)

	var httpErr *errors.HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusBadGateway, httpErr.StatusCode)
}

func TestRecords_MissingResults(t *testing.T) {
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"message":"nope"}`))
	})
	_, req, f := serve(t, h)

	p, err := NewWherePager(req, 2, "id", "")
	require.NoError(t, err)
	_, err = collect(t, f, p)
	assert.ErrorIs(t, err, errors.ErrPagination)
}

func TestRecords_StopsWhenConsumerBreaks(t *testing.T) {
	coll := newCollection(10)
	_, req, f := serve(t, coll)

	p, err := NewWherePager(req, 2, "id", "")
	require.NoError(t, err)

	seen := 0
	for _, err := range Records(context.Background(), f, p) {
		require.NoError(t, err)
		seen++
		if seen == 3 {
			break
		}
	}
	assert.Len(t, coll.requests(), 2)
}

func TestRecords_CancelledContext(t *testing.T) {
	coll := newCollection(3)
	_, req, f := serve(t, coll)

	p, err := NewWherePager(req, 2, "id", "")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	for _, err := range Records(ctx, f, p) {
		assert.ErrorIs(t, err, context.Canceled)
	}
	assert.Empty(t, coll.requests())
}

func TestCount(t *testing.T) {
	coll := newCollection(42)
	_, req, f := serve(t, coll)

	total, err := Count(context.Background(), f, req)
	require.NoError(t, err)
	assert.Equal(t, int64(42), total)

	qs := coll.requests()
	require.Len(t, qs, 1)
	assert.Equal(t, []string{"0"}, qs[0]["limit"])
}

func TestFactory(t *testing.T) {
	assert.Equal(t, []string{KindOffset, KindWhere}, DefaultFactory.Kinds())

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	plan := PlanFor(50, nil, `state = "Open"`)
	assert.Equal(t, Plan{Kind: KindWhere, PageSize: 50, SortKey: "id", Filter: `state = "Open"`}, plan)
	p, err := DefaultFactory.New(req, plan)
	require.NoError(t, err)
	assert.IsType(t, &WherePager{}, p)

	sample := 10
	plan = PlanFor(50, &sample, `state = "Open"`)
	assert.Equal(t, Plan{Kind: KindOffset, PageSize: 50, MaxItems: 10, SortKey: "id"}, plan)
	p, err = DefaultFactory.New(req, plan)
	require.NoError(t, err)
	assert.IsType(t, &OffsetPager{}, p)

	_, err = DefaultFactory.New(req, Plan{Kind: "link", PageSize: 10})
	assert.ErrorIs(t, err, errors.ErrConfiguration)

	f := NewFactory()
	require.NoError(t, f.Register("custom", func(*http.Request, Plan) (Pager, error) { return nil, nil }))
	assert.ErrorIs(t, f.Register("custom", nil), errors.ErrConfiguration)
}
