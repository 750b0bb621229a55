package core

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/saturnines/commerce-export/pkg/metrics"
	"github.com/saturnines/commerce-export/pkg/normalize"
	"github.com/saturnines/commerce-export/pkg/pagination"
)

// Source collections
const (
	CollectionProducts   = "product-projections"
	CollectionOrders     = "orders"
	CollectionCustomers  = "customers"
	CollectionCategories = "categories"
)

// Collections lists every collection an export reads
var Collections = []string{CollectionProducts, CollectionOrders, CollectionCustomers, CollectionCategories}

// pageCounter counts fetched pages per collection.
type pageCounter struct {
	api        pagination.Fetcher
	collection string
	metrics    *metrics.Recorder
}

func (p pageCounter) Fetch(req *http.Request) (map[string]any, error) {
	body, err := p.api.Fetch(req)
	if err == nil {
		p.metrics.AddPage(p.collection)
	}
	return body, err
}

// params returns the query parameters every request of collection carries,
// including its configured where predicate.
func (e *Exporter) params(collection string) url.Values {
	params := url.Values{}
	if collection == CollectionProducts {
		params.Set("staged", e.cfg.Extract.Staged)
	}
	if pred := e.cfg.Extract.Where[collection]; pred != "" {
		params.Set("where", pred)
	}
	return params
}

// walk visits every raw record of collection in sort order. Without
// extract.max_items the whole collection is walked by cursor; with it, at
// most that many records are read by offset.
func (e *Exporter) walk(ctx context.Context, collection string, visit func(map[string]any)) error {
	req, err := e.api.NewRequest(ctx, collection, e.params(collection))
	if err != nil {
		return err
	}

	plan := pagination.PlanFor(e.cfg.Extract.PageSize, e.cfg.Extract.MaxItems, e.cfg.Extract.Where[collection])
	pager, err := e.pagers.New(req, plan)
	if err != nil {
		return err
	}

	fetcher := pageCounter{api: e.api, collection: collection, metrics: e.metrics}
	n := 0
	for record, err := range pagination.Records(ctx, fetcher, pager) {
		if err != nil {
			return fmt.Errorf("walk %s: %w", collection, err)
		}
		visit(record)
		n++
	}

	e.metrics.AddRecords(collection, n)
	e.log.Info().Str("collection", collection).Str("pager", plan.Kind).Int("records", n).Msg("collection walked")
	return nil
}

// collect walks collection into a table, appending one chunk per page.
func collect[T normalize.Keyed](ctx context.Context, e *Exporter, collection string, convert func(map[string]any) []T) (*normalize.Table[T], error) {
	table := &normalize.Table[T]{}
	batch := make([]T, 0, e.cfg.Extract.PageSize)
	err := e.walk(ctx, collection, func(raw map[string]any) {
		batch = append(batch, convert(raw)...)
		if len(batch) >= e.cfg.Extract.PageSize {
			table.Append(batch...)
			batch = batch[:0]
		}
	})
	if err != nil {
		return nil, err
	}
	table.Append(batch...)
	return table, nil
}

// Products reads the product table
func (e *Exporter) Products(ctx context.Context) (*normalize.Table[normalize.Product], error) {
	return collect(ctx, e, CollectionProducts, func(raw map[string]any) []normalize.Product {
		return []normalize.Product{e.normalizer.Product(raw)}
	})
}

// OrderLines reads the order table, one row per line item
func (e *Exporter) OrderLines(ctx context.Context) (*normalize.Table[normalize.OrderLine], error) {
	return collect(ctx, e, CollectionOrders, func(raw map[string]any) []normalize.OrderLine {
		return e.normalizer.OrderLines(raw)
	})
}

// Customers reads the customer table
func (e *Exporter) Customers(ctx context.Context) (*normalize.Table[normalize.Customer], error) {
	return collect(ctx, e, CollectionCustomers, func(raw map[string]any) []normalize.Customer {
		return []normalize.Customer{e.normalizer.Customer(raw)}
	})
}

// Categories reads the category table
func (e *Exporter) Categories(ctx context.Context) (*normalize.Table[normalize.Category], error) {
	return collect(ctx, e, CollectionCategories, func(raw map[string]any) []normalize.Category {
		return []normalize.Category{e.normalizer.Category(raw)}
	})
}

// Count returns the size the API reports for collection.
func (e *Exporter) Count(ctx context.Context, collection string) (int64, error) {
	req, err := e.api.NewRequest(ctx, collection, e.params(collection))
	if err != nil {
		return 0, err
	}
	n, err := pagination.Count(ctx, e.api, req)
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", collection, err)
	}
	return n, nil
}

// Counts returns the size of every collection.
func (e *Exporter) Counts(ctx context.Context) (map[string]int64, error) {
	counts := make(map[string]int64, len(Collections))
	for _, c := range Collections {
		n, err := e.Count(ctx, c)
		if err != nil {
			return nil, err
		}
		counts[c] = n
	}
	return counts, nil
}
