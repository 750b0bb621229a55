package export

import (
	"context"
	"encoding/xml"
	"io"

	"github.com/rs/zerolog"

	"github.com/saturnines/commerce-export/pkg/category"
	"github.com/saturnines/commerce-export/pkg/errors"
	"github.com/saturnines/commerce-export/pkg/normalize"
	"github.com/saturnines/commerce-export/pkg/transform"
)

// GoogleNamespace is bound to the g: prefix on the feed root
const GoogleNamespace = "http://base.google.com/ns/1.0"

// PathResolver renders a product's category path
type PathResolver interface {
	ProductPathString(ctx context.Context, p normalize.Product, mode category.Mode) (string, error)
}

// FeedItem is one <item> of the product feed. Element names carry the g:
// prefix literally; encoding/xml writes them as given.
type FeedItem struct {
	XMLName      xml.Name    `xml:"item"`
	ItemGroupID  string      `xml:"g:item_group_id"`
	ID           string      `xml:"g:id"`
	Title        string      `xml:"g:title"`
	ProductType  string      `xml:"g:product_type"`
	Brand        string      `xml:"g:brand"`
	Price        string      `xml:"g:price"`
	SalePrice    string      `xml:"g:sale_price"`
	Availability string      `xml:"g:availability"`
	Link         string      `xml:"g:link"`
	Gender       string      `xml:"g:gender"`
	ImageLink    string      `xml:"g:image_link"`
	Installment  Installment `xml:"g:installment"`
}

type Installment struct {
	Months string `xml:"g:months"`
	Amount string `xml:"g:amount"`
}

// FeedWriter renders products as an RSS product feed.
type FeedWriter struct {
	Title         string
	Link          string
	Currency      string // price column used for g:price
	Locale        string // name locale used for g:title
	Mode          category.Mode
	Paths         PathResolver
	ProgressEvery int
	Log           zerolog.Logger

	price transform.Transformer
}

// NewFeedWriter returns a writer resolving category paths through paths.
func NewFeedWriter(title, link, currency, locale string, paths PathResolver, log zerolog.Logger) *FeedWriter {
	return &FeedWriter{
		Title:    title,
		Link:     link,
		Currency: currency,
		Locale:   locale,
		Mode:     category.Single,
		Paths:    paths,
		Log:      log,
	}
}

// Item maps one product to its feed item.
func (f *FeedWriter) Item(ctx context.Context, p normalize.Product) (FeedItem, error) {
	productType, err := f.Paths.ProductPathString(ctx, p, f.Mode)
	if err != nil {
		return FeedItem{}, err
	}

	price := ""
	if cents := p.Price[f.Currency]; cents != "" {
		v, err := f.priceTransform().Transform(cents)
		if err != nil {
			f.Log.Debug().Err(err).Str("product_id", p.ID).Msg("unparseable price")
		} else {
			price = v.(string)
		}
	}

	return FeedItem{
		ItemGroupID: p.ID,
		ID:          p.SKU,
		Title:       p.Name[f.Locale],
		ProductType: productType,
		Price:       price,
		SalePrice:   price,
		ImageLink:   p.ImageURL,
	}, nil
}

// Write streams the feed to w. No XML declaration is written.
func (f *FeedWriter) Write(ctx context.Context, w io.Writer, products []normalize.Product) error {
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")

	rss := xml.StartElement{
		Name: xml.Name{Local: "rss"},
		Attr: []xml.Attr{
			{Name: xml.Name{Local: "xmlns:g"}, Value: GoogleNamespace},
			{Name: xml.Name{Local: "version"}, Value: "2.0"},
		},
	}
	channel := xml.StartElement{Name: xml.Name{Local: "channel"}}

	if err := enc.EncodeToken(rss); err != nil {
		return errors.WrapError(err, errors.ErrExport, "failed to write feed")
	}
	if err := enc.EncodeToken(channel); err != nil {
		return errors.WrapError(err, errors.ErrExport, "failed to write feed")
	}
	if err := enc.EncodeElement(f.Title, xml.StartElement{Name: xml.Name{Local: "title"}}); err != nil {
		return errors.WrapError(err, errors.ErrExport, "failed to write feed title")
	}
	if err := enc.EncodeElement(f.Link, xml.StartElement{Name: xml.Name{Local: "link"}}); err != nil {
		return errors.WrapError(err, errors.ErrExport, "failed to write feed link")
	}

	for i, p := range products {
		if err := ctx.Err(); err != nil {
			return err
		}
		if f.ProgressEvery > 0 && i%f.ProgressEvery == 0 {
			f.Log.Info().Int("item", i).Int("total", len(products)).Msg("adding products to feed")
		}

		item, err := f.Item(ctx, p)
		if err != nil {
			return err
		}
		if err := enc.Encode(item); err != nil {
			return errors.WrapError(err, errors.ErrExport, "failed to write feed item "+p.ID)
		}
	}

	if err := enc.EncodeToken(channel.End()); err != nil {
		return errors.WrapError(err, errors.ErrExport, "failed to write feed")
	}
	if err := enc.EncodeToken(rss.End()); err != nil {
		return errors.WrapError(err, errors.ErrExport, "failed to write feed")
	}
	if err := enc.Close(); err != nil {
		return errors.WrapError(err, errors.ErrExport, "failed to flush feed")
	}
	_, err := io.WriteString(w, "\n")
	return err
}

func (f *FeedWriter) priceTransform() transform.Transformer {
	if f.price == nil {
		f.price = transform.DefaultRegistry.MustCreate("minor_units", map[string]interface{}{"places": 2})
	}
	return f.price
}
