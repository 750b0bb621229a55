package pagination

import (
	"fmt"
	"net/http"
	"slices"
	"sync"

	"github.com/saturnines/commerce-export/pkg/errors"
)

// Pager kinds known to the default factory
const (
	KindWhere  = "where"
	KindOffset = "offset"
)

// Plan describes one collection walk.
type Plan struct {
	Kind     string
	PageSize int
	MaxItems int // offset walks only
	SortKey  string
	Filter   string // where walks only
}

// PlanFor picks the walk for a collection: every record by where-cursor, or
// a bounded offset sample when maxItems is set.
func PlanFor(pageSize int, maxItems *int, filter string) Plan {
	p := Plan{Kind: KindWhere, PageSize: pageSize, SortKey: "id", Filter: filter}
	if maxItems != nil {
		p.Kind = KindOffset
		p.MaxItems = *maxItems
		p.Filter = ""
	}
	return p
}

// Creator builds the pager for a plan, starting from the collection request.
type Creator func(req *http.Request, plan Plan) (Pager, error)

// Factory maps pager kinds to creators.
type Factory struct {
	mu       sync.RWMutex
	creators map[string]Creator
}

func NewFactory() *Factory {
	return &Factory{creators: make(map[string]Creator)}
}

// Register adds a creator. A kind can only be registered once.
func (f *Factory) Register(kind string, creator Creator) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.creators[kind]; exists {
		return errors.Config("pager %q already registered", kind)
	}
	f.creators[kind] = creator
	return nil
}

// New builds the pager plan asks for. Bad plans are configuration errors.
func (f *Factory) New(req *http.Request, plan Plan) (Pager, error) {
	f.mu.RLock()
	creator, ok := f.creators[plan.Kind]
	f.mu.RUnlock()
	if !ok {
		return nil, errors.Config("unsupported pager type: %s", plan.Kind)
	}
	pager, err := creator(req, plan)
	if err != nil {
		return nil, fmt.Errorf("creating %q pager: %w", plan.Kind, err)
	}
	return pager, nil
}

// Kinds returns the registered kinds, sorted.
func (f *Factory) Kinds() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	kinds := make([]string, 0, len(f.creators))
	for kind := range f.creators {
		kinds = append(kinds, kind)
	}
	slices.Sort(kinds)
	return kinds
}

// DefaultFactory knows the where and offset pagers.
var DefaultFactory = NewFactory()

func init() {
	_ = DefaultFactory.Register(KindWhere, func(req *http.Request, p Plan) (Pager, error) {
		return NewWherePager(req, p.PageSize, p.SortKey, p.Filter)
	})
	_ = DefaultFactory.Register(KindOffset, func(req *http.Request, p Plan) (Pager, error) {
		return NewOffsetPager(req, p.PageSize, p.MaxItems, 0, p.SortKey)
	})
}
