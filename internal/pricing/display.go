// Package pricing resolves the price a shopper sees for a product.
package pricing

import (
	"math"

	"github.com/shopspring/decimal"
)

// Fields carries the loosely named upstream price fields. Any may be absent.
type Fields struct {
	Precio       *float64
	PrecioNormal *float64
	PrecioOferta *float64
	OfferPrice   *float64
}

// DisplayPrice is derived on every read and never stored.
type DisplayPrice struct {
	HasDiscount        bool    `json:"hasDiscount"`
	Original           float64 `json:"original"`
	Final              float64 `json:"final"`
	DiscountPercentage *int    `json:"discountPercentage,omitempty"`
}

// Original returns PrecioNormal, else Precio, else 0.
func (f Fields) Original() float64 {
	switch {
	case f.PrecioNormal != nil:
		return *f.PrecioNormal
	case f.Precio != nil:
		return *f.Precio
	default:
		return 0
	}
}

// Offer returns PrecioOferta, else OfferPrice.
func (f Fields) Offer() *float64 {
	if f.PrecioOferta != nil {
		return f.PrecioOferta
	}
	return f.OfferPrice
}

// OfferEligible reports whether offer is a finite positive price strictly
// below original.
func OfferEligible(offer *float64, original float64) bool {
	if offer == nil {
		return false
	}
	v := *offer
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return false
	}
	return v > 0 && v < original
}

// Resolve never fails; missing or malformed fields degrade to a zero price.
func Resolve(f Fields) DisplayPrice {
	original := f.Original()
	if math.IsNaN(original) || math.IsInf(original, 0) {
		original = 0
	}

	offer := f.Offer()
	if !OfferEligible(offer, original) {
		return DisplayPrice{Original: original, Final: original}
	}

	pct := DiscountPercentage(original, *offer)
	return DisplayPrice{
		HasDiscount:        true,
		Original:           original,
		Final:              *offer,
		DiscountPercentage: &pct,
	}
}

// DiscountPercentage computes round((1 - final/original) * 100), rounding
// halves away from zero.
func DiscountPercentage(original, final float64) int {
	if original <= 0 {
		return 0
	}
	ratio := decimal.NewFromFloat(final).Div(decimal.NewFromFloat(original))
	pct := decimal.NewFromInt(1).Sub(ratio).Mul(decimal.NewFromInt(100)).Round(0)
	return int(pct.IntPart())
}

// FromPesos builds Fields from whole-peso storage values.
func FromPesos(price int64, offer *int64) Fields {
	normal := float64(price)
	f := Fields{PrecioNormal: &normal}
	if offer != nil {
		o := float64(*offer)
		f.PrecioOferta = &o
	}
	return f
}

// FinalPesos resolves the payable unit price in whole pesos.
func FinalPesos(price int64, offer *int64) int64 {
	return int64(math.Round(Resolve(FromPesos(price, offer)).Final))
}
