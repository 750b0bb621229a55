package normalize

import (
	"encoding/json"
	"testing"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	testLocales    = []string{"en", "de"}
	testCurrencies = []string{"USD", "EUR"}
)

func newTestNormalizer() *Normalizer {
	return New(testLocales, testCurrencies, zerolog.Nop())
}

func decode(t *testing.T, s string) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal([]byte(s), &m))
	return m
}

func TestNormalizer_Product(t *testing.T) {
	raw := decode(t, `{
		"id": "P1",
		"createdAt": "2017-03-14T15:04:05.123Z",
		"name": {"en": "Boot", "de": "Stiefel"},
		"slug": {"en": "boot"},
		"categories": [{"typeId": "category", "id": "C1"}, {"typeId": "category", "id": "C2"}],
		"masterVariant": {
			"sku": "S1",
			"images": [{"url": "https://img/1.jpg"}, {"url": "https://img/2.jpg"}],
			"prices": [
				{"value": {"currencyCode": "EUR", "centAmount": 1500}},
				{"value": {"currencyCode": "USD", "centAmount": 1999}},
				{"value": {"currencyCode": "USD", "centAmount": 2999}}
			]
		}
	}`)

	p := newTestNormalizer().Product(raw)

	assert.Equal(t, "P1", p.ID)
	assert.Equal(t, "S1", p.SKU)
	assert.Equal(t, "https://img/1.jpg", p.ImageURL)
	assert.Equal(t, []string{"C1", "C2"}, p.CategoryIDs)
	assert.Equal(t, map[string]string{"en": "Boot", "de": "Stiefel"}, p.Name)
	assert.Equal(t, map[string]string{"en": "boot", "de": ""}, p.Slug)
	assert.Equal(t, map[string]string{"en": "", "de": ""}, p.Description)
	assert.Equal(t, map[string]string{"USD": "1999", "EUR": "1500"}, p.Price)
}

func TestNormalizer_ProductFromMasterData(t *testing.T) {
	raw := decode(t, `{
		"id": "P2",
		"createdAt": "2020-01-02T09:00:00Z",
		"masterData": {"current": {
			"name": {"en": "Hat"},
			"categories": [{"id": "C9"}],
			"masterVariant": {"sku": "S2", "prices": [{"country": "USD", "value": {"centAmount": 500}}]}
		}}
	}`)

	p := newTestNormalizer().Product(raw)

	assert.Equal(t, "P2", p.ID)
	assert.Equal(t, "2020-01-02T09:00:00Z", p.CreatedAt)
	assert.Equal(t, "S2", p.SKU)
	assert.Equal(t, "Hat", p.Name["en"])
	assert.Equal(t, []string{"C9"}, p.CategoryIDs)
	assert.Equal(t, "500", p.Price["USD"])
	assert.Equal(t, "", p.Price["EUR"])
}

func TestNormalizer_Category(t *testing.T) {
	raw := decode(t, `{
		"id": "C3",
		"name": {"en": "Boots"},
		"ancestors": [{"id": "C1"}, {"id": "C2"}],
		"parent": {"id": "C2"}
	}`)

	c := newTestNormalizer().Category(raw)

	assert.Equal(t, "C3", c.ID)
	assert.Equal(t, "Boots", c.Name["en"])
	assert.Equal(t, []string{"C1", "C2"}, c.AncestorIDs)
	assert.Equal(t, "C2", c.ParentID)

	root := newTestNormalizer().Category(decode(t, `{"id": "C1", "ancestors": []}`))
	assert.NotNil(t, root.AncestorIDs)
	assert.Empty(t, root.AncestorIDs)
	assert.Equal(t, "", root.ParentID)
}

func TestNormalizer_OrderLines(t *testing.T) {
	raw := decode(t, `{
		"id": "O1",
		"createdAt": "2017-03-14T15:04:05.123Z",
		"customerEmail": "a@b.c",
		"anonymousId": "anon-7",
		"country": "US",
		"totalPrice": {"currencyCode": "USD", "centAmount": 2000},
		"lineItems": [
			{"productId": "P1", "quantity": 1, "name": {"en": "Boot"},
			 "price": {"value": {"currencyCode": "USD", "centAmount": 1000}}},
			{"productId": "P2", "quantity": 3}
		]
	}`)

	lines := newTestNormalizer().OrderLines(raw)
	require.Len(t, lines, 2)

	first := lines[0]
	assert.Equal(t, "O1", first.OrderID)
	assert.Equal(t, AnonymousCustomer, first.CustomerID)
	assert.True(t, first.Anonymous())
	assert.Equal(t, "P1", first.ProductID)
	assert.Equal(t, "1000", first.ProductPrice)
	assert.Equal(t, "USD", first.LineCurrency)
	assert.Equal(t, int64(2000), first.TotalPrice)
	assert.True(t, first.HasTotalPrice)
	assert.Equal(t, "USD", first.Currency)
	assert.Equal(t, "1", first.Quantity)
	assert.Equal(t, "Boot", first.Name["en"])

	second := lines[1]
	assert.Equal(t, "P2", second.ProductID)
	assert.Equal(t, "3", second.Quantity)
	assert.Equal(t, "", second.ProductPrice)
	assert.Equal(t, map[string]string{"en": "", "de": ""}, second.Name)
}

func TestNormalizer_OrderLinesCustomer(t *testing.T) {
	n := newTestNormalizer()

	lines := n.OrderLines(decode(t, `{"id": "O2", "customerId": "U1", "lineItems": [{"productId": "P1"}]}`))
	require.Len(t, lines, 1)
	assert.Equal(t, "U1", lines[0].CustomerID)
	assert.False(t, lines[0].Anonymous())
	assert.False(t, lines[0].HasTotalPrice)
	assert.Equal(t, "", lines[0].Field("totalPrice"))

	empty := n.OrderLines(decode(t, `{"id": "O3", "customerId": ""}`))
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}

func TestNormalizer_Customer(t *testing.T) {
	n := newTestNormalizer()

	single := n.Customer(decode(t, `{
		"id": "U1", "email": "x@y.z", "firstName": "Ada",
		"customerGroup": {"typeId": "customer-group", "id": "G1", "obj": {"name": "VIP"}}
	}`))
	assert.Equal(t, "U1", single.ID)
	assert.Equal(t, "Ada", single.FirstName)
	assert.Equal(t, []string{"G1"}, single.GroupIDs)
	assert.Equal(t, []string{"VIP"}, single.GroupNames)

	list := n.Customer(decode(t, `{"id": "U2", "customerGroup": [{"id": "G1", "name": "VIP"}, {"id": "G2"}]}`))
	assert.Equal(t, []string{"G1", "G2"}, list.GroupIDs)
	assert.Equal(t, []string{"VIP"}, list.GroupNames)

	none := n.Customer(decode(t, `{"id": "U3"}`))
	assert.NotNil(t, none.GroupIDs)
	assert.NotNil(t, none.GroupNames)
}

// Any input shape, however broken, normalizes without panicking and yields
// rows of the schema's full width.
func TestNormalizer_Totality(t *testing.T) {
	faker := gofakeit.New(42)
	n := newTestNormalizer()

	inputs := []any{
		nil,
		"not an object",
		[]any{1, 2, 3},
		map[string]any{},
		map[string]any{"masterVariant": "oops", "lineItems": "oops", "customerGroup": 5},
		map[string]any{"lineItems": []any{nil, "x", map[string]any{"price": []any{}}}},
		map[string]any{"name": []any{"en"}, "categories": map[string]any{"id": 1}},
	}
	for range 50 {
		inputs = append(inputs, randomValue(faker, 4))
	}

	for _, raw := range inputs {
		require.NotPanics(t, func() {
			p := n.Product(raw)
			assert.Len(t, ProductSchema.Values(p, testLocales, testCurrencies),
				len(ProductSchema.Columns(testLocales, testCurrencies)))
			assert.NotNil(t, p.CategoryIDs)

			c := n.Category(raw)
			assert.Len(t, CategorySchema.Values(c, testLocales, testCurrencies),
				len(CategorySchema.Columns(testLocales, testCurrencies)))

			for _, l := range n.OrderLines(raw) {
				assert.Len(t, OrderSchema.Values(l, testLocales, testCurrencies),
					len(OrderSchema.Columns(testLocales, testCurrencies)))
			}

			cu := n.Customer(raw)
			assert.Len(t, CustomerSchema.Values(cu, testLocales, testCurrencies),
				len(CustomerSchema.Columns(testLocales, testCurrencies)))
		})
	}
}

// randomValue builds an arbitrary JSON-shaped tree using the field names the
// normalizer looks at, so that lookups hit wrong types as well as misses.
func randomValue(f *gofakeit.Faker, depth int) any {
	keys := []string{"id", "createdAt", "name", "en", "masterVariant", "sku", "prices",
		"value", "currencyCode", "centAmount", "USD", "lineItems", "customerId",
		"categories", "ancestors", "parent", "customerGroup", "images", "url", "quantity"}

	if depth == 0 {
		switch f.IntRange(0, 3) {
		case 0:
			return f.Word()
		case 1:
			return float64(f.IntRange(-1000, 100000))
		case 2:
			return f.Bool()
		default:
			return nil
		}
	}

	switch f.IntRange(0, 2) {
	case 0:
		m := map[string]any{}
		for range f.IntRange(0, 6) {
			m[keys[f.IntRange(0, len(keys)-1)]] = randomValue(f, depth-1)
		}
		return m
	case 1:
		var s []any
		for range f.IntRange(0, 3) {
			s = append(s, randomValue(f, depth-1))
		}
		return s
	default:
		return randomValue(f, 0)
	}
}

func TestSchema_Columns(t *testing.T) {
	assert.Equal(t,
		[]string{"id", "sku", "categoryIds", "img", "createdAt",
			"name_en", "name_de", "slug_en", "slug_de", "description_en", "description_de",
			"price_USD", "price_EUR"},
		ProductSchema.Columns(testLocales, testCurrencies))

	assert.Equal(t,
		[]string{"id", "createdAt", "firstName", "middleName", "lastName", "email",
			"dateOfBirth", "companyName", "customerGroup_ids", "customerGroup_names"},
		CustomerSchema.Columns(nil, nil))
}

func TestSchema_Values(t *testing.T) {
	p := Product{
		ID:          "P1",
		SKU:         "S1",
		CategoryIDs: []string{"C1", "C2"},
		Name:        map[string]string{"en": "Boot"},
		Price:       map[string]string{"EUR": "1500"},
	}

	assert.Equal(t,
		[]string{"P1", "S1", "C1;C2", "", "", "Boot", "", "", "", "", "", "", "1500"},
		ProductSchema.Values(p, testLocales, testCurrencies))
}

func TestTable(t *testing.T) {
	var tbl Table[Product]
	assert.Equal(t, 0, tbl.Len())
	assert.Empty(t, tbl.Rows())

	tbl.Append(Product{ID: "P1", SKU: "first"}, Product{ID: "P2"})
	tbl.Append()
	tbl.Append(Product{ID: "P1", SKU: "second"})

	assert.Equal(t, 3, tbl.Len())
	rows := tbl.Rows()
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"P1", "P2", "P1"}, []string{rows[0].ID, rows[1].ID, rows[2].ID})

	tbl.Append(Product{ID: "P3"})
	assert.Len(t, tbl.Rows(), 4)

	idx := tbl.Index()
	assert.Equal(t, 3, idx.Len())
	p, ok := idx.Lookup("P1")
	require.True(t, ok)
	assert.Equal(t, "first", p.SKU)

	_, ok = idx.Lookup("P404")
	assert.False(t, ok)
}

func TestNewIndex(t *testing.T) {
	idx := NewIndex([]Category{{ID: "C1"}, {ID: "C2"}})
	_, ok := idx.Lookup("C2")
	assert.True(t, ok)
	assert.Equal(t, 2, idx.Len())
}
