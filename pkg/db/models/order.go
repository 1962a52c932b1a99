package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/autoparts-backend/pkg/enums"
	"github.com/angelmondragon/autoparts-backend/pkg/types"
)

// Order is immutable after creation except for Status, RemoteID and SyncedAt.
type Order struct {
	ID              uuid.UUID             `gorm:"column:id;type:uuid;primaryKey"`
	RemoteID        *string               `gorm:"column:remote_id"`
	Source          enums.OrderSource     `gorm:"column:source;not null"`
	Status          enums.OrderStatus     `gorm:"column:status;not null"`
	CartID          *uuid.UUID            `gorm:"column:cart_id;type:uuid"`
	CustomerEmail   string                `gorm:"column:customer_email;not null;default:''"`
	PaymentMethod   enums.PaymentMethod   `gorm:"column:payment_method;not null"`
	ShippingAddress types.ShippingAddress `gorm:"column:shipping_address;type:jsonb;serializer:json"`
	ShippingLabel   string                `gorm:"column:shipping_label;not null;default:''"`
	ShippingCarrier string                `gorm:"column:shipping_carrier;not null;default:''"`
	ShippingETA     string                `gorm:"column:shipping_eta;not null;default:''"`
	Subtotal        int64                 `gorm:"column:subtotal;not null"`
	IVA             int64                 `gorm:"column:iva;not null"`
	ShippingCost    int64                 `gorm:"column:shipping_cost;not null"`
	Total           int64                 `gorm:"column:total;not null"`
	TotalItems      int                   `gorm:"column:total_items;not null"`
	Lines           []OrderLineItem       `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	SyncedAt        *time.Time            `gorm:"column:synced_at"`
	CreatedAt       time.Time             `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time             `gorm:"column:updated_at;autoUpdateTime"`
}
