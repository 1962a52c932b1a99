package models

import (
	"time"

	"github.com/google/uuid"
)

// CartItem snapshots the product at add time; UnitPrice never changes afterwards.
type CartItem struct {
	ID          uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	CartID      uuid.UUID `gorm:"column:cart_id;type:uuid;not null;uniqueIndex:cart_items_cart_product_key"`
	ProductID   string    `gorm:"column:product_id;not null;uniqueIndex:cart_items_cart_product_key"`
	ProductName string    `gorm:"column:product_name;not null"`
	ImageURL    string    `gorm:"column:image_url;not null;default:''"`
	UnitPrice   int64     `gorm:"column:unit_price;not null"`
	Quantity    int       `gorm:"column:quantity;not null"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
