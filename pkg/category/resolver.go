package category

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/saturnines/commerce-export/pkg/errors"
	"github.com/saturnines/commerce-export/pkg/normalize"
	"github.com/saturnines/commerce-export/pkg/transform"
)

const (
	// SegmentSeparator joins the names of one path
	SegmentSeparator = " > "
	// PathSeparator joins the paths of a product in All mode
	PathSeparator = "; "
)

// Mode selects how many category paths a product resolves to.
type Mode string

const (
	// Single keeps the path of the product's first category
	Single Mode = "single"
	// All keeps every path
	All Mode = "all"
)

// ParseMode maps a configured category mode to a Mode.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(s)) {
	case Single, "":
		return Single, nil
	case All:
		return All, nil
	}
	return "", errors.Config("unknown category mode %q", s)
}

// Resolver turns category ids into breadcrumb paths of display names. Every
// category it loads is memoized in the cache, so a catalog sharing a handful
// of categories costs one fetch per category.
type Resolver struct {
	fetcher Fetcher
	cache   Cache
	locale  string
	log     zerolog.Logger

	segments transform.Transformer
	paths    transform.Transformer
}

// NewResolver returns a resolver rendering names in locale. A nil cache
// means a fresh MemoryCache.
func NewResolver(f Fetcher, c Cache, locale string, log zerolog.Logger) *Resolver {
	if c == nil {
		c = NewMemoryCache()
	}
	return &Resolver{
		fetcher:  f,
		cache:    c,
		locale:   locale,
		log:      log,
		segments: transform.DefaultRegistry.MustCreate("join", map[string]interface{}{"delimiter": SegmentSeparator}),
		paths:    transform.DefaultRegistry.MustCreate("join", map[string]interface{}{"delimiter": PathSeparator}),
	}
}

// Locale returns the display locale
func (r *Resolver) Locale() string { return r.locale }

// Path returns the names of the category's ancestors, root first, followed
// by the category itself.
func (r *Resolver) Path(ctx context.Context, categoryID string) ([]string, error) {
	c, err := r.category(ctx, categoryID)
	if err != nil {
		return nil, err
	}

	path := make([]string, 0, len(c.AncestorIDs)+1)
	for _, id := range c.AncestorIDs {
		a, err := r.category(ctx, id)
		if err != nil {
			return nil, err
		}
		path = append(path, a.Name[r.locale])
	}
	return append(path, c.Name[r.locale]), nil
}

// ProductPaths resolves the paths of a product's categories. Single mode
// yields at most one path.
func (r *Resolver) ProductPaths(ctx context.Context, p normalize.Product, mode Mode) ([][]string, error) {
	ids := p.CategoryIDs
	if mode == Single && len(ids) > 1 {
		ids = ids[:1]
	}

	paths := make([][]string, 0, len(ids))
	for _, id := range ids {
		path, err := r.Path(ctx, id)
		if err != nil {
			return nil, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

// ProductPathString renders ProductPaths as text. A product without
// categories yields "".
func (r *Resolver) ProductPathString(ctx context.Context, p normalize.Product, mode Mode) (string, error) {
	paths, err := r.ProductPaths(ctx, p, mode)
	if err != nil {
		return "", err
	}

	rendered := make([]string, len(paths))
	for i, path := range paths {
		s, err := r.segments.Transform(path)
		if err != nil {
			return "", err
		}
		rendered[i] = s.(string)
	}
	s, err := r.paths.Transform(rendered)
	if err != nil {
		return "", err
	}
	return s.(string), nil
}

func (r *Resolver) category(ctx context.Context, id string) (normalize.Category, error) {
	c, ok, err := r.cache.Get(ctx, id)
	if err != nil {
		r.log.Warn().Err(err).Str("category_id", id).Msg("category cache read failed")
	} else if ok {
		return c, nil
	}

	c, err = r.fetcher.Category(ctx, id)
	switch {
	case errors.Is(err, errors.ErrNotFound):
		r.log.Debug().Str("category_id", id).Msg("unknown category, rendering empty name")
		c = normalize.Category{ID: id, AncestorIDs: []string{}}
	case err != nil:
		return normalize.Category{}, fmt.Errorf("resolve category %s: %w", id, err)
	}
	if c.ID == "" {
		c.ID = id
	}

	if err := r.cache.Set(ctx, c); err != nil {
		r.log.Warn().Err(err).Str("category_id", id).Msg("category cache write failed")
	}
	return c, nil
}
