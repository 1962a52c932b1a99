package cart

import (
	"context"
	"time"

	"github.com/angelmondragon/autoparts-backend/pkg/db/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CartRepository defines the persistence surface required by the cart service.
type CartRepository interface {
	WithTx(tx *gorm.DB) CartRepository
	FindByID(ctx context.Context, id uuid.UUID) (*models.CartRecord, error)
	Ensure(ctx context.Context, id uuid.UUID) (*models.CartRecord, error)
	FindItem(ctx context.Context, cartID uuid.UUID, productID string) (*models.CartItem, error)
	SaveItem(ctx context.Context, item *models.CartItem) error
	DeleteItem(ctx context.Context, cartID uuid.UUID, productID string) (bool, error)
	DeleteItems(ctx context.Context, cartID uuid.UUID) error
	Touch(ctx context.Context, cartID uuid.UUID) error
	DeleteStale(ctx context.Context, before time.Time) (int64, error)
}

// ProductLookup loads the product a cart line refers to.
type ProductLookup interface {
	FindByID(ctx context.Context, id string) (*models.Product, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}
