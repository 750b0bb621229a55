package normalize

import (
	"strconv"

	"github.com/rs/zerolog"

	"github.com/saturnines/commerce-export/pkg/jsonpath"
)

// Normalizer turns raw API records into fixed-schema rows. Every method is
// total: any input shape, including nil, yields a row with defaults.
type Normalizer struct {
	Locales    []string
	Currencies []string
	Log        zerolog.Logger
}

// New returns a Normalizer for the given locale and currency sets.
func New(locales, currencies []string, log zerolog.Logger) *Normalizer {
	return &Normalizer{Locales: locales, Currencies: currencies, Log: log}
}

// Product normalizes a product projection. Full product resources are
// accepted too; their fields are read from masterData.current.
func (n *Normalizer) Product(raw any) Product {
	data := raw
	if current, ok := jsonpath.Map(raw, "masterData.current"); ok {
		data = current
	}

	p := Product{
		ID:          jsonpath.StringOr(raw, "id", ""),
		CreatedAt:   jsonpath.StringOr(raw, "createdAt", ""),
		SKU:         jsonpath.StringOr(data, "masterVariant.sku", ""),
		ImageURL:    jsonpath.StringOr(data, "masterVariant.images[0].url", ""),
		Name:        n.localized(data, "name"),
		Slug:        n.localized(data, "slug"),
		Description: n.localized(data, "description"),
		Price:       n.prices(data, "masterVariant.prices"),
		CategoryIDs: jsonpath.Strings(data, "categories[*].id"),
	}
	n.missing("product", p.ID, p.CreatedAt)
	return p
}

// Category normalizes a category. Ancestors keep the source's root-first order.
func (n *Normalizer) Category(raw any) Category {
	c := Category{
		ID:          jsonpath.StringOr(raw, "id", ""),
		CreatedAt:   jsonpath.StringOr(raw, "createdAt", ""),
		Name:        n.localized(raw, "name"),
		Slug:        n.localized(raw, "slug"),
		Description: n.localized(raw, "description"),
		AncestorIDs: jsonpath.Strings(raw, "ancestors[*].id"),
		ParentID:    jsonpath.StringOr(raw, "parent.id", ""),
	}
	n.missing("category", c.ID, c.CreatedAt)
	return c
}

// OrderLines returns one row per line item. Orders without a customer id
// get AnonymousCustomer; orders without line items yield no rows.
func (n *Normalizer) OrderLines(raw any) []OrderLine {
	items, _ := jsonpath.Slice(raw, "lineItems")
	lines := make([]OrderLine, 0, len(items))
	if len(items) == 0 {
		return lines
	}

	base := OrderLine{
		OrderID:       jsonpath.StringOr(raw, "id", ""),
		CreatedAt:     jsonpath.StringOr(raw, "createdAt", ""),
		CustomerID:    jsonpath.StringOr(raw, "customerId", ""),
		CustomerEmail: jsonpath.StringOr(raw, "customerEmail", ""),
		AnonymousID:   jsonpath.StringOr(raw, "anonymousId", ""),
		Currency:      jsonpath.StringOr(raw, "totalPrice.currencyCode", ""),
		Country:       jsonpath.StringOr(raw, "country", ""),
	}
	if base.CustomerID == "" {
		base.CustomerID = AnonymousCustomer
	}
	base.TotalPrice, base.HasTotalPrice = jsonpath.Int64(raw, "totalPrice.centAmount")
	n.missing("order", base.OrderID, base.CreatedAt)

	for _, item := range items {
		line := base
		line.ProductID = jsonpath.StringOr(item, "productId", "")
		line.LineCurrency = jsonpath.StringOr(item, "price.value.currencyCode", "")
		line.Name = n.localized(item, "name")
		if cents, ok := jsonpath.Int64(item, "price.value.centAmount"); ok {
			line.ProductPrice = strconv.FormatInt(cents, 10)
		}
		if qty, ok := jsonpath.Int64(item, "quantity"); ok {
			line.Quantity = strconv.FormatInt(qty, 10)
		}
		lines = append(lines, line)
	}
	return lines
}

// Customer normalizes a customer. The customer group may be a single
// reference or a list of them; ids and names are collected from either.
func (n *Normalizer) Customer(raw any) Customer {
	c := Customer{
		ID:          jsonpath.StringOr(raw, "id", ""),
		CreatedAt:   jsonpath.StringOr(raw, "createdAt", ""),
		FirstName:   jsonpath.StringOr(raw, "firstName", ""),
		MiddleName:  jsonpath.StringOr(raw, "middleName", ""),
		LastName:    jsonpath.StringOr(raw, "lastName", ""),
		Email:       jsonpath.StringOr(raw, "email", ""),
		DateOfBirth: jsonpath.StringOr(raw, "dateOfBirth", ""),
		CompanyName: jsonpath.StringOr(raw, "companyName", ""),
		GroupIDs:    []string{},
		GroupNames:  []string{},
	}

	var groups []any
	if g, ok := jsonpath.Map(raw, "customerGroup"); ok {
		groups = []any{g}
	} else if g, ok := jsonpath.Slice(raw, "customerGroup"); ok {
		groups = g
	}
	for _, g := range groups {
		if id, ok := jsonpath.String(g, "id"); ok {
			c.GroupIDs = append(c.GroupIDs, id)
		}
		if name, ok := jsonpath.String(g, "name"); ok {
			c.GroupNames = append(c.GroupNames, name)
		} else if name, ok := jsonpath.String(g, "obj.name"); ok {
			c.GroupNames = append(c.GroupNames, name)
		}
	}

	n.missing("customer", c.ID, c.CreatedAt)
	return c
}

// localized reads raw[field][locale] for every configured locale.
func (n *Normalizer) localized(raw any, field string) map[string]string {
	m := make(map[string]string, len(n.Locales))
	values, _ := jsonpath.Map(raw, field)
	for _, l := range n.Locales {
		s, ok := values[l].(string)
		if !ok {
			s = ""
		}
		m[l] = s
	}
	return m
}

// prices picks, per configured currency, the cent amount of the first price
// whose currency code or country equals the currency tag.
func (n *Normalizer) prices(raw any, path string) map[string]string {
	m := make(map[string]string, len(n.Currencies))
	list, _ := jsonpath.Slice(raw, path)
	for _, cur := range n.Currencies {
		m[cur] = ""
		for _, p := range list {
			code := jsonpath.StringOr(p, "value.currencyCode", "")
			country := jsonpath.StringOr(p, "country", "")
			if code != cur && country != cur {
				continue
			}
			if cents, ok := jsonpath.Int64(p, "value.centAmount"); ok {
				m[cur] = strconv.FormatInt(cents, 10)
			}
			break
		}
	}
	return m
}

func (n *Normalizer) missing(kind, id, createdAt string) {
	if id == "" {
		n.Log.Debug().Str("kind", kind).Msg("record without id")
	}
	if createdAt == "" {
		n.Log.Debug().Str("kind", kind).Str("id", id).Msg("record without createdAt")
	}
}
