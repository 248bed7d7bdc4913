// Package tag defines core types shared across the price-tag pipeline.
package tag

import (
	"time"

	"github.com/shopspring/decimal"
)

// File extensions used by the pipeline: products reference a source image on
// disk and captures are written as webp.
const (
	SourceImageExt = ".jpg"
	CaptureExt     = ".webp"
)

// Price is a decimal money amount. It marshals as a bare JSON number so the
// products file keeps the numeric schema it was authored with.
type Price struct {
	decimal.Decimal
}

// NewPrice parses a decimal string such as "19.99".
func NewPrice(s string) (Price, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Price{}, err
	}
	return Price{Decimal: d}, nil
}

// MustPrice parses a decimal string and panics on failure. Test helper.
func MustPrice(s string) Price {
	p, err := NewPrice(s)
	if err != nil {
		panic(err)
	}
	return p
}

// PriceFromFloat converts a float amount to a Price.
func PriceFromFloat(f float64) Price {
	return Price{Decimal: decimal.NewFromFloat(f)}
}

// MarshalJSON emits the amount as a bare number, not a quoted string.
func (p Price) MarshalJSON() ([]byte, error) {
	return []byte(p.String()), nil
}

// Equal reports whether two prices are numerically equal, ignoring exponent
// representation (19.9 equals 19.90).
func (p Price) Equal(o Price) bool {
	return p.Decimal.Equal(o.Decimal)
}

// Display renders the price with exactly two decimal places.
func (p Price) Display() string {
	return p.StringFixed(2)
}

// Product is one record of the persisted collection. Field names mirror the
// products file schema.
type Product struct {
	Code            string `json:"productCode"`
	VariationSuffix string `json:"variation_suffix,omitempty"`
	CurrentPrice    Price  `json:"current_price"`
	PreviousPrice   *Price `json:"previous_price,omitempty"`
}

// Key names a product variant. Keys are assumed unique within a collection.
type Key struct {
	Code   string
	Suffix string
}

// Key returns the identity key of the product.
func (p Product) Key() Key {
	return Key{Code: p.Code, Suffix: p.VariationSuffix}
}

// ImageName builds the image file name for the product: the code, an optional
// underscore-joined variation suffix, and the given extension.
func (p Product) ImageName(ext string) string {
	if p.VariationSuffix == "" {
		return p.Code + ext
	}
	return p.Code + "_" + p.VariationSuffix + ext
}

// NeedsCapture reports whether the product's price changed since the last
// run. A record with no previous price always needs a capture.
func (p Product) NeedsCapture() bool {
	return p.PreviousPrice == nil || !p.PreviousPrice.Equal(p.CurrentPrice)
}

// Pending filters the collection down to the records whose price changed,
// preserving input order.
func Pending(products []Product) []Product {
	out := make([]Product, 0, len(products))
	for _, p := range products {
		if p.NeedsCapture() {
			out = append(out, p)
		}
	}
	return out
}

// CatchUp returns a copy of the collection with every record's previous
// price set to its current price.
func CatchUp(products []Product) []Product {
	out := make([]Product, len(products))
	for i, p := range products {
		price := p.CurrentPrice
		p.PreviousPrice = &price
		out[i] = p
	}
	return out
}

// CatchUpConfirmed returns a copy of the collection where only the records
// named in confirmed have their previous price advanced; all others keep
// their stored value.
func CatchUpConfirmed(products []Product, confirmed map[Key]struct{}) []Product {
	out := make([]Product, len(products))
	for i, p := range products {
		if _, ok := confirmed[p.Key()]; ok {
			price := p.CurrentPrice
			p.PreviousPrice = &price
		}
		out[i] = p
	}
	return out
}

// WorkItem pairs a pending product with its index in the full collection.
// The index addresses the product on the page server.
type WorkItem struct {
	Product
	Index int
}

// RunSummary is the end-of-run report published to notifiers.
type RunSummary struct {
	RunID      string    `json:"run_id"`
	Pending    int       `json:"pending"`
	Captured   int       `json:"captured"`
	Failed     int       `json:"failed"`
	StartedAt  time.Time `json:"started_at"`
	DurationMs int64     `json:"duration_ms"`
}
