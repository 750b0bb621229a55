// pkg/transform/transform.go
package transform

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// PurchaseDateLayout renders timestamps as "DD-MM-YY HH:MM:SS.ffffff AM/PM".
const PurchaseDateLayout = "02-01-06 03:04:05.000000 PM"

// Transformer defines the interface for field transformations
type Transformer interface {
	Transform(value interface{}) (interface{}, error)
}

// Registry holds all available transformers
type Registry struct {
	mu           sync.RWMutex
	transformers map[string]TransformCreator
}

// TransformCreator creates a transformer from config
type TransformCreator func(config map[string]interface{}) (Transformer, error)

// NewRegistry creates a new transformer registry with defaults
func NewRegistry() *Registry {
	r := &Registry{
		transformers: make(map[string]TransformCreator),
	}

	r.Register("date", dateTransformCreator)
	r.Register("minor_units", minorUnitsTransformCreator)
	r.Register("join", joinTransformCreator)

	return r
}

// Register adds a new transformer type
func (r *Registry) Register(name string, creator TransformCreator) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transformers[name] = creator
}

// Create builds a transformer from config
func (r *Registry) Create(transformType string, config map[string]interface{}) (Transformer, error) {
	r.mu.RLock()
	creator, ok := r.transformers[transformType]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown transform type: %s", transformType)
	}
	return creator(config)
}

// MustCreate is Create for built-in transforms whose config is static.
func (r *Registry) MustCreate(transformType string, config map[string]interface{}) Transformer {
	t, err := r.Create(transformType, config)
	if err != nil {
		panic(err)
	}
	return t
}

// Named layouts accepted as input_format / output_format. Any other value
// is used as a Go reference layout. "Unix" renders epoch seconds.
var layouts = map[string]string{
	"RFC3339":     time.RFC3339,
	"RFC3339Nano": time.RFC3339Nano,
	"Date":        "2006-01-02",
	"Purchase":    PurchaseDateLayout,
}

func layout(name string) string {
	if l, ok := layouts[name]; ok {
		return l
	}
	return name
}

// DateTransform reformats timestamps. Strings are parsed in UTC with
// InputFormat; time values and epoch seconds are taken as they are.
type DateTransform struct {
	InputFormat  string
	OutputFormat string
}

func dateTransformCreator(config map[string]interface{}) (Transformer, error) {
	t := &DateTransform{InputFormat: "RFC3339", OutputFormat: "RFC3339"}
	if f, ok := config["input_format"].(string); ok {
		t.InputFormat = f
	}
	if f, ok := config["output_format"].(string); ok {
		t.OutputFormat = f
	}
	return t, nil
}

func (t *DateTransform) Transform(value interface{}) (interface{}, error) {
	var tm time.Time
	switch v := value.(type) {
	case nil:
		return nil, nil
	case time.Time:
		tm = v
	case int64:
		tm = time.Unix(v, 0).UTC()
	case string:
		// RFC3339 parsing also accepts fractional seconds.
		parsed, err := time.ParseInLocation(layout(t.InputFormat), v, time.UTC)
		if err != nil {
			return nil, err
		}
		tm = parsed
	default:
		return nil, fmt.Errorf("cannot parse date from %T", value)
	}

	if t.OutputFormat == "Unix" {
		return strconv.FormatInt(tm.Unix(), 10), nil
	}
	return tm.Format(layout(t.OutputFormat)), nil
}

// MinorUnitsTransform converts an integer amount in minor units (cents) to a
// major-unit decimal string, e.g. 1999 -> "19.99" and 2000 -> "20.0".
type MinorUnitsTransform struct {
	Exponent int32 // number of minor-unit digits, 2 for cents
	Places   int32 // rounding precision of the result
}

func minorUnitsTransformCreator(config map[string]interface{}) (Transformer, error) {
	t := &MinorUnitsTransform{Exponent: 2, Places: 2}

	if exp, ok := config["exponent"].(int); ok {
		if exp < 0 {
			return nil, fmt.Errorf("minor_units exponent must not be negative, got %d", exp)
		}
		t.Exponent = int32(exp)
	}
	if places, ok := config["places"].(int); ok {
		t.Places = int32(places)
	}

	return t, nil
}

func (t *MinorUnitsTransform) Transform(value interface{}) (interface{}, error) {
	var cents int64
	switch v := value.(type) {
	case nil:
		return "", nil
	case int64:
		cents = v
	case int:
		cents = int64(v)
	case string:
		if v == "" {
			return "", nil
		}
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("minor_units: %q is not an integer amount", v)
		}
		cents = n
	default:
		return nil, fmt.Errorf("minor_units: cannot convert %T", value)
	}

	return FormatAmount(decimal.New(cents, -t.Exponent).Round(t.Places)), nil
}

// FormatAmount renders a decimal with trailing zeros trimmed but at least one
// fractional digit, the way downstream merchandising tools expect it.
func FormatAmount(d decimal.Decimal) string {
	s := d.String()
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

// JoinTransform joins an array into a string
type JoinTransform struct {
	Delimiter string
}

func joinTransformCreator(config map[string]interface{}) (Transformer, error) {
	t := &JoinTransform{
		Delimiter: ",", // default
	}

	if delim, ok := config["delimiter"].(string); ok {
		t.Delimiter = delim
	}

	return t, nil
}

func (t *JoinTransform) Transform(value interface{}) (interface{}, error) {
	switch arr := value.(type) {
	case []string:
		return strings.Join(arr, t.Delimiter), nil
	case []interface{}:
		strs := make([]string, len(arr))
		for i, v := range arr {
			strs[i] = fmt.Sprintf("%v", v)
		}
		return strings.Join(strs, t.Delimiter), nil
	default:
		return nil, fmt.Errorf("join transform requires array input, got %T", value)
	}
}

// DefaultRegistry is the global transformer registry
var DefaultRegistry = NewRegistry()
