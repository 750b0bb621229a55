package export

import (
	"encoding/csv"
	"io"

	"github.com/saturnines/commerce-export/pkg/errors"
	"github.com/saturnines/commerce-export/pkg/normalize"
	"github.com/saturnines/commerce-export/pkg/reconcile"
)

// PurchaseHeader is the fixed column order of the purchase table
var PurchaseHeader = []string{
	"user_id", "order_id", "product_id", "sku_id", "date_of_purchase",
	"price", "sku_currently_in_stock", "gender", "dob", "site",
}

// WritePurchasesCSV writes the header and one row per purchase.
func WritePurchasesCSV(w io.Writer, purchases []reconcile.Purchase) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(PurchaseHeader); err != nil {
		return errors.WrapError(err, errors.ErrExport, "failed to write purchase header")
	}
	for _, p := range purchases {
		row := []string{
			p.UserID, p.OrderID, p.ProductID, p.SKU, p.DateOfPurchase,
			p.Price, p.SKUCurrentlyInStock, p.Gender, p.DOB, p.Site,
		}
		if err := cw.Write(row); err != nil {
			return errors.WrapError(err, errors.ErrExport, "failed to write purchase row")
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return errors.WrapError(err, errors.ErrExport, "failed to flush purchases")
	}
	return nil
}

// WriteTableCSV writes normalized rows with the schema's flat columns.
func WriteTableCSV[T normalize.Record](w io.Writer, schema normalize.Schema, rows []T, locales, currencies []string) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(schema.Columns(locales, currencies)); err != nil {
		return errors.WrapError(err, errors.ErrExport, "failed to write header")
	}
	for _, r := range rows {
		if err := cw.Write(schema.Values(r, locales, currencies)); err != nil {
			return errors.WrapError(err, errors.ErrExport, "failed to write row")
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return errors.WrapError(err, errors.ErrExport, "failed to flush table")
	}
	return nil
}
