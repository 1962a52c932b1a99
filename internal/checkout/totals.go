package checkout

import (
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/autoparts-backend/internal/shipping"
	"github.com/angelmondragon/autoparts-backend/pkg/db/models"
)

// DefaultTaxRate is the Chilean IVA.
var DefaultTaxRate = decimal.RequireFromString("0.19")

// Line is one priced cart line in CLP.
type Line struct {
	ProductID string `json:"productId"`
	Name      string `json:"name"`
	ImageURL  string `json:"imageUrl,omitempty"`
	UnitPrice int64  `json:"unitPrice"`
	Quantity  int    `json:"quantity"`
}

// Total is the line amount before tax.
func (l Line) Total() int64 {
	return l.UnitPrice * int64(l.Quantity)
}

// Summary holds the order amounts in CLP.
type Summary struct {
	Subtotal     int64 `json:"subtotal"`
	IVA          int64 `json:"iva"`
	ShippingCost int64 `json:"shipping"`
	Total        int64 `json:"total"`
	TotalItems   int   `json:"totalItems"`
}

// Totals sums the lines, applies tax to the subtotal and adds shipping.
// A nil estimate means shipping is not known yet and counts as zero.
func Totals(lines []Line, estimate *shipping.Estimate, taxRate decimal.Decimal) Summary {
	var summary Summary
	for _, line := range lines {
		if line.Quantity <= 0 {
			continue
		}
		summary.Subtotal += line.Total()
		summary.TotalItems += line.Quantity
	}
	summary.IVA = decimal.NewFromInt(summary.Subtotal).Mul(taxRate).Round(0).IntPart()
	if estimate != nil {
		summary.ShippingCost = estimate.Price
	}
	summary.Total = summary.Subtotal + summary.IVA + summary.ShippingCost
	return summary
}

// LinesFromCart converts stored cart items to priced lines.
func LinesFromCart(cart *models.CartRecord) []Line {
	if cart == nil {
		return []Line{}
	}
	lines := make([]Line, 0, len(cart.Items))
	for _, item := range cart.Items {
		lines = append(lines, Line{
			ProductID: item.ProductID,
			Name:      item.ProductName,
			ImageURL:  item.ImageURL,
			UnitPrice: item.UnitPrice,
			Quantity:  item.Quantity,
		})
	}
	return lines
}
