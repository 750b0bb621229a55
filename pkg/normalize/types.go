package normalize

import "strconv"

// AnonymousCustomer marks order lines whose order has no customer id
const AnonymousCustomer = "anonymous"

// Product is one normalized product projection.
type Product struct {
	ID          string
	SKU         string
	CreatedAt   string
	Name        map[string]string // locale -> text
	Slug        map[string]string
	Description map[string]string
	Price       map[string]string // currency -> cent amount, "" when absent
	ImageURL    string
	CategoryIDs []string
}

func (p Product) Key() string { return p.ID }

func (p Product) Field(name string) any {
	switch name {
	case "id":
		return p.ID
	case "sku":
		return p.SKU
	case "categoryIds":
		return p.CategoryIDs
	case "img":
		return p.ImageURL
	case "createdAt":
		return p.CreatedAt
	case "name":
		return p.Name
	case "slug":
		return p.Slug
	case "description":
		return p.Description
	case "price":
		return p.Price
	}
	return nil
}

// Category is one normalized category. AncestorIDs run root first.
type Category struct {
	ID          string
	CreatedAt   string
	Name        map[string]string
	Slug        map[string]string
	Description map[string]string
	AncestorIDs []string
	ParentID    string
}

func (c Category) Key() string { return c.ID }

func (c Category) Field(name string) any {
	switch name {
	case "id":
		return c.ID
	case "createdAt":
		return c.CreatedAt
	case "name":
		return c.Name
	case "slug":
		return c.Slug
	case "description":
		return c.Description
	case "ancestorIds":
		return c.AncestorIDs
	case "parentId":
		return c.ParentID
	}
	return nil
}

// OrderLine is one line item of an order together with the order fields
// it is reported with.
type OrderLine struct {
	OrderID       string
	ProductID     string
	CustomerID    string // AnonymousCustomer when the order has none
	CustomerEmail string
	AnonymousID   string
	CreatedAt     string
	TotalPrice    int64 // order total in minor units
	HasTotalPrice bool
	Currency      string // currency of the order total
	ProductPrice  string // line price in minor units
	LineCurrency  string
	Quantity      string
	Country       string
	Name          map[string]string
}

func (o OrderLine) Key() string { return o.OrderID }

// Anonymous reports whether the line belongs to an order without a customer.
func (o OrderLine) Anonymous() bool { return o.CustomerID == AnonymousCustomer }

func (o OrderLine) Field(name string) any {
	switch name {
	case "productId":
		return o.ProductID
	case "customerId":
		return o.CustomerID
	case "customerEmail":
		return o.CustomerEmail
	case "anonymousId":
		return o.AnonymousID
	case "orderId":
		return o.OrderID
	case "createdAt":
		return o.CreatedAt
	case "productPrice":
		return o.ProductPrice
	case "lineCurrency":
		return o.LineCurrency
	case "totalPrice":
		if !o.HasTotalPrice {
			return ""
		}
		return strconv.FormatInt(o.TotalPrice, 10)
	case "currency":
		return o.Currency
	case "quantity":
		return o.Quantity
	case "country":
		return o.Country
	case "name":
		return o.Name
	}
	return nil
}

// Customer is one normalized customer.
type Customer struct {
	ID          string
	CreatedAt   string
	FirstName   string
	MiddleName  string
	LastName    string
	Email       string
	DateOfBirth string
	CompanyName string
	GroupIDs    []string
	GroupNames  []string
}

func (c Customer) Key() string { return c.ID }

func (c Customer) Field(name string) any {
	switch name {
	case "id":
		return c.ID
	case "createdAt":
		return c.CreatedAt
	case "firstName":
		return c.FirstName
	case "middleName":
		return c.MiddleName
	case "lastName":
		return c.LastName
	case "email":
		return c.Email
	case "dateOfBirth":
		return c.DateOfBirth
	case "companyName":
		return c.CompanyName
	case "customerGroup_ids":
		return c.GroupIDs
	case "customerGroup_names":
		return c.GroupNames
	}
	return nil
}
