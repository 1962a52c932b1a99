package checkout

import (
	"fmt"

	pkgerrors "github.com/angelmondragon/autoparts-backend/pkg/errors"
)

// StockValidationInput describes one cart line checked against current stock.
type StockValidationInput struct {
	ProductID   string
	ProductName string
	Available   int
	Requested   int
	Active      bool
}

// StockViolationDetail exposes the data returned to callers when a line can no longer be filled.
type StockViolationDetail struct {
	ProductID    string `json:"product_id"`
	ProductName  string `json:"product_name,omitempty"`
	Available    int    `json:"available"`
	RequestedQty int    `json:"requested_qty"`
	Inactive     bool   `json:"inactive,omitempty"`
}

// ValidateStock ensures every line still fits the product's stock. Inactive
// products always fail.
func ValidateStock(items []StockValidationInput) error {
	var violations []StockViolationDetail
	for _, item := range items {
		if item.Active && item.Requested <= item.Available {
			continue
		}
		violations = append(violations, StockViolationDetail{
			ProductID:    item.ProductID,
			ProductName:  item.ProductName,
			Available:    item.Available,
			RequestedQty: item.Requested,
			Inactive:     !item.Active,
		})
	}
	if len(violations) == 0 {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("insufficient stock for %d item(s)", len(violations))).WithDetails(map[string]any{
		"violations": violations,
	})
}
