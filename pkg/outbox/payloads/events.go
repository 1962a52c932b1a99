package payloads

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/autoparts-backend/pkg/enums"
)

// OrderSubmittedEvent points the replay worker at a locally saved order that
// still has to reach the orders service.
type OrderSubmittedEvent struct {
	OrderID     uuid.UUID `json:"order_id"`
	Total       int64     `json:"total"`
	TotalItems  int       `json:"total_items"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// OrderCreatedEvent announces an order the orders service has accepted.
type OrderCreatedEvent struct {
	OrderID    uuid.UUID         `json:"order_id"`
	RemoteID   string            `json:"remote_id"`
	Source     enums.OrderSource `json:"source"`
	Status     enums.OrderStatus `json:"status"`
	Total      int64             `json:"total"`
	TotalItems int               `json:"total_items"`
	Email      string            `json:"email,omitempty"`
}

// InventoryImportedEvent summarises a committed CSV import.
type InventoryImportedEvent struct {
	ImportID   uuid.UUID `json:"import_id"`
	Created    int       `json:"created"`
	Updated    int       `json:"updated"`
	ProductIDs []string  `json:"product_ids"`
}
