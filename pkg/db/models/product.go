package models

import (
	"time"

	"github.com/lib/pq"
)

// Product is the persisted inventory record. Prices are whole CLP pesos.
type Product struct {
	ID          string         `gorm:"column:id;primaryKey"`
	Name        string         `gorm:"column:name;not null"`
	Description string         `gorm:"column:description;not null;default:''"`
	Price       int64          `gorm:"column:price;not null"`
	OfferPrice  *int64         `gorm:"column:offer_price"`
	Stock       int            `gorm:"column:stock;not null;default:0"`
	Category    string         `gorm:"column:category;not null;default:''"`
	Tags        pq.StringArray `gorm:"column:tags;type:text[]"`
	Images      pq.StringArray `gorm:"column:images;type:text[]"`
	IsOffer     bool           `gorm:"column:is_offer;not null;default:false"`
	IsFeatured  bool           `gorm:"column:is_featured;not null;default:false"`
	IsActive    bool           `gorm:"column:is_active;not null"`
	Position    int64          `gorm:"column:position;not null;default:0;index"`
	CreatedAt   time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}
