package orders

import (
	"time"

	"github.com/angelmondragon/autoparts-backend/pkg/db/models"
	"github.com/angelmondragon/autoparts-backend/pkg/types"
	"github.com/google/uuid"
)

// OrderDTO is the API view of an order.
type OrderDTO struct {
	ID              uuid.UUID             `json:"id"`
	RemoteID        *string               `json:"remote_id,omitempty"`
	Source          string                `json:"source"`
	Status          string                `json:"status"`
	CustomerEmail   string                `json:"customer_email,omitempty"`
	PaymentMethod   string                `json:"payment_method"`
	ShippingAddress types.ShippingAddress `json:"shipping_address"`
	Shipping        ShippingDTO           `json:"shipping"`
	Subtotal        int64                 `json:"subtotal"`
	IVA             int64                 `json:"iva"`
	ShippingCost    int64                 `json:"shipping_cost"`
	Total           int64                 `json:"total"`
	TotalItems      int                   `json:"total_items"`
	Lines           []LineDTO             `json:"lines"`
	SyncedAt        *time.Time            `json:"synced_at,omitempty"`
	CreatedAt       time.Time             `json:"created_at"`
}

// ShippingDTO echoes the shipping estimate the order was placed with.
type ShippingDTO struct {
	Label   string `json:"label"`
	Carrier string `json:"carrier"`
	ETA     string `json:"eta"`
}

// LineDTO is one order line.
type LineDTO struct {
	ProductID   string `json:"product_id"`
	ProductName string `json:"product_name"`
	UnitPrice   int64  `json:"unit_price"`
	Quantity    int    `json:"quantity"`
	LineTotal   int64  `json:"line_total"`
}

// OrderList is a cursor page of orders.
type OrderList struct {
	Orders     []OrderDTO `json:"orders"`
	NextCursor string     `json:"next_cursor,omitempty"`
}

// NewOrderDTO maps a stored order onto its API view.
func NewOrderDTO(order *models.Order) OrderDTO {
	lines := make([]LineDTO, 0, len(order.Lines))
	for _, line := range order.Lines {
		lines = append(lines, LineDTO{
			ProductID:   line.ProductID,
			ProductName: line.ProductName,
			UnitPrice:   line.UnitPrice,
			Quantity:    line.Quantity,
			LineTotal:   line.LineTotal,
		})
	}
	return OrderDTO{
		ID:              order.ID,
		RemoteID:        order.RemoteID,
		Source:          order.Source.String(),
		Status:          order.Status.String(),
		CustomerEmail:   order.CustomerEmail,
		PaymentMethod:   order.PaymentMethod.String(),
		ShippingAddress: order.ShippingAddress,
		Shipping: ShippingDTO{
			Label:   order.ShippingLabel,
			Carrier: order.ShippingCarrier,
			ETA:     order.ShippingETA,
		},
		Subtotal:     order.Subtotal,
		IVA:          order.IVA,
		ShippingCost: order.ShippingCost,
		Total:        order.Total,
		TotalItems:   order.TotalItems,
		Lines:        lines,
		SyncedAt:     order.SyncedAt,
		CreatedAt:    order.CreatedAt,
	}
}
