package normalize

import "strings"

// Kind says how a logical column expands into flat columns.
type Kind int

const (
	// Scalar is one column holding a string.
	Scalar Kind = iota
	// LocaleExpanded is one column per configured locale, "<name>_<locale>".
	LocaleExpanded
	// CurrencyExpanded is one column per configured currency, "<name>_<currency>".
	CurrencyExpanded
	// List is one column holding the values joined by ListSeparator.
	List
)

// ListSeparator joins list valued columns in flat output
const ListSeparator = ";"

// Column is one logical column of a schema
type Column struct {
	Name string
	Kind Kind
}

// Schema is the static, ordered column list of one collection
type Schema []Column

// Record is a normalized row that can report its logical columns. Field
// returns a string for Scalar, map[string]string for the expanded kinds and
// []string for List columns.
type Record interface {
	Field(name string) any
}

var (
	ProductSchema = Schema{
		{"id", Scalar},
		{"sku", Scalar},
		{"categoryIds", List},
		{"img", Scalar},
		{"createdAt", Scalar},
		{"name", LocaleExpanded},
		{"slug", LocaleExpanded},
		{"description", LocaleExpanded},
		{"price", CurrencyExpanded},
	}

	CategorySchema = Schema{
		{"id", Scalar},
		{"createdAt", Scalar},
		{"name", LocaleExpanded},
		{"slug", LocaleExpanded},
		{"description", LocaleExpanded},
		{"ancestorIds", List},
		{"parentId", Scalar},
	}

	OrderSchema = Schema{
		{"productId", Scalar},
		{"customerId", Scalar},
		{"customerEmail", Scalar},
		{"anonymousId", Scalar},
		{"orderId", Scalar},
		{"createdAt", Scalar},
		{"productPrice", Scalar},
		{"lineCurrency", Scalar},
		{"totalPrice", Scalar},
		{"currency", Scalar},
		{"quantity", Scalar},
		{"country", Scalar},
		{"name", LocaleExpanded},
	}

	CustomerSchema = Schema{
		{"id", Scalar},
		{"createdAt", Scalar},
		{"firstName", Scalar},
		{"middleName", Scalar},
		{"lastName", Scalar},
		{"email", Scalar},
		{"dateOfBirth", Scalar},
		{"companyName", Scalar},
		{"customerGroup_ids", List},
		{"customerGroup_names", List},
	}
)

// Columns expands the schema into flat column names.
func (s Schema) Columns(locales, currencies []string) []string {
	var cols []string
	for _, c := range s {
		switch c.Kind {
		case LocaleExpanded:
			for _, l := range locales {
				cols = append(cols, c.Name+"_"+l)
			}
		case CurrencyExpanded:
			for _, cur := range currencies {
				cols = append(cols, c.Name+"_"+cur)
			}
		default:
			cols = append(cols, c.Name)
		}
	}
	return cols
}

// Values flattens r in the order of Columns. Absent values become "", so
// every row of a collection has the same width.
func (s Schema) Values(r Record, locales, currencies []string) []string {
	var vals []string
	for _, c := range s {
		v := r.Field(c.Name)
		switch c.Kind {
		case LocaleExpanded:
			m, _ := v.(map[string]string)
			for _, l := range locales {
				vals = append(vals, m[l])
			}
		case CurrencyExpanded:
			m, _ := v.(map[string]string)
			for _, cur := range currencies {
				vals = append(vals, m[cur])
			}
		case List:
			list, _ := v.([]string)
			vals = append(vals, strings.Join(list, ListSeparator))
		default:
			s, _ := v.(string)
			vals = append(vals, s)
		}
	}
	return vals
}
