// Package reconcile joins order lines with the product table into purchase
// records.
package reconcile

import (
	"github.com/rs/zerolog"

	"github.com/saturnines/commerce-export/pkg/normalize"
	"github.com/saturnines/commerce-export/pkg/transform"
)

// Purchase is one row of the purchase table
type Purchase struct {
	UserID              string
	OrderID             string
	ProductID           string
	SKU                 string
	DateOfPurchase      string
	Price               string // major units, "" unless in the reporting currency
	SKUCurrentlyInStock string
	Gender              string
	DOB                 string
	Site                string
}

// Options tune the join
type Options struct {
	ReportingCurrency string
	Log               zerolog.Logger
}

// Stats counts what happened to the order lines of one join.
type Stats struct {
	Lines            int // order lines in
	AnonymousDropped int // lines of single-line anonymous orders
	JoinMisses       int // lines whose product is not in the product table
	CurrencyBlanked  int // purchases emitted without a price
	BadDates         int // purchases whose createdAt could not be reformatted
	Emitted          int
}

var (
	purchaseDate = transform.DefaultRegistry.MustCreate("date", map[string]interface{}{
		"input_format":  "RFC3339",
		"output_format": "Purchase",
	})
	majorUnits = transform.DefaultRegistry.MustCreate("minor_units", nil)
)

// Join turns order lines into purchases, in line order:
//
//  1. lines of anonymous orders take the order id as user id, unless the
//     order has a single line, in which case they are dropped;
//  2. lines whose product id is not in products are dropped;
//  3. the SKU comes from the product row;
//  4. the price is the order total in major units when the order currency
//     is the reporting currency, and empty otherwise.
func Join(lines []normalize.OrderLine, products *normalize.Index[normalize.Product], opts Options) ([]Purchase, Stats) {
	stats := Stats{Lines: len(lines)}

	anonymousLines := make(map[string]int)
	for _, l := range lines {
		if l.Anonymous() {
			anonymousLines[l.OrderID]++
		}
	}

	purchases := make([]Purchase, 0, len(lines))
	for _, l := range lines {
		userID := l.CustomerID
		if l.Anonymous() {
			if anonymousLines[l.OrderID] < 2 {
				stats.AnonymousDropped++
				continue
			}
			userID = l.OrderID
		}

		product, ok := products.Lookup(l.ProductID)
		if !ok {
			stats.JoinMisses++
			continue
		}

		p := Purchase{
			UserID:         userID,
			OrderID:        l.OrderID,
			ProductID:      l.ProductID,
			SKU:            product.SKU,
			DateOfPurchase: formatDate(l.CreatedAt, opts.Log, &stats),
		}
		if l.Currency == opts.ReportingCurrency && l.HasTotalPrice {
			price, err := majorUnits.Transform(l.TotalPrice)
			if err == nil {
				p.Price = price.(string)
			}
		}
		if p.Price == "" {
			stats.CurrencyBlanked++
		}

		purchases = append(purchases, p)
	}

	stats.Emitted = len(purchases)
	opts.Log.Debug().
		Int("lines", stats.Lines).
		Int("anonymous_dropped", stats.AnonymousDropped).
		Int("join_misses", stats.JoinMisses).
		Int("emitted", stats.Emitted).
		Msg("purchases joined")
	return purchases, stats
}

func formatDate(createdAt string, log zerolog.Logger, stats *Stats) string {
	if createdAt == "" {
		stats.BadDates++
		return ""
	}
	s, err := purchaseDate.Transform(createdAt)
	if err != nil {
		stats.BadDates++
		log.Debug().Err(err).Str("created_at", createdAt).Msg("unparseable purchase date")
		return ""
	}
	return s.(string)
}
