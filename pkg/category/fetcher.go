package category

import (
	"context"
	"fmt"
	"net/url"

	"github.com/saturnines/commerce-export/pkg/errors"
	"github.com/saturnines/commerce-export/pkg/normalize"
)

// Fetcher loads a single category by id. An unknown id is ErrNotFound.
type Fetcher interface {
	Category(ctx context.Context, id string) (normalize.Category, error)
}

// Getter is the part of the query client APIFetcher needs.
type Getter interface {
	Get(ctx context.Context, endpoint string) (map[string]any, error)
}

// APIFetcher fetches categories one at a time from the categories endpoint.
type APIFetcher struct {
	client     Getter
	normalizer *normalize.Normalizer
}

func NewAPIFetcher(client Getter, n *normalize.Normalizer) *APIFetcher {
	return &APIFetcher{client: client, normalizer: n}
}

func (f *APIFetcher) Category(ctx context.Context, id string) (normalize.Category, error) {
	raw, err := f.client.Get(ctx, "categories/"+url.PathEscape(id))
	if err != nil {
		return normalize.Category{}, fmt.Errorf("fetch category %s: %w", id, err)
	}
	return f.normalizer.Category(raw), nil
}

// TableFetcher serves categories from a preloaded category table.
type TableFetcher struct {
	index *normalize.Index[normalize.Category]
}

func NewTableFetcher(index *normalize.Index[normalize.Category]) *TableFetcher {
	return &TableFetcher{index: index}
}

func (f *TableFetcher) Category(_ context.Context, id string) (normalize.Category, error) {
	c, ok := f.index.Lookup(id)
	if !ok {
		return normalize.Category{}, fmt.Errorf("%w: category %s", errors.ErrNotFound, id)
	}
	return c, nil
}
