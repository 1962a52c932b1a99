package cart

import (
	"context"
	"fmt"
	"strings"

	"github.com/angelmondragon/autoparts-backend/internal/pricing"
	"github.com/angelmondragon/autoparts-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/autoparts-backend/pkg/errors"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// MaxLineQuantity bounds a single line regardless of stock.
const MaxLineQuantity = 999

// Service exposes cart mutations. Quantities never exceed the product's
// stock at the time of the mutation.
type Service interface {
	Get(ctx context.Context, cartID uuid.UUID) (*models.CartRecord, error)
	AddItem(ctx context.Context, cartID uuid.UUID, productID string, quantity int) (*models.CartRecord, error)
	Increment(ctx context.Context, cartID uuid.UUID, productID string) (*models.CartRecord, error)
	SetQuantity(ctx context.Context, cartID uuid.UUID, productID string, quantity int) (*models.CartRecord, error)
	RemoveItem(ctx context.Context, cartID uuid.UUID, productID string) (*models.CartRecord, error)
	Clear(ctx context.Context, cartID uuid.UUID) error
}

type service struct {
	repo     CartRepository
	tx       txRunner
	products ProductLookup
}

// NewService builds a cart service backed by the provided stack.
func NewService(repo CartRepository, tx txRunner, products ProductLookup) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if products == nil {
		return nil, fmt.Errorf("product lookup required")
	}
	return &service{repo: repo, tx: tx, products: products}, nil
}

// Get returns the cart; an unknown id reads as an empty cart.
func (s *service) Get(ctx context.Context, cartID uuid.UUID) (*models.CartRecord, error) {
	if cartID == uuid.Nil {
		return nil, pkgerrors.Invalid("cart_id", "is required")
	}
	record, err := s.repo.FindByID(ctx, cartID)
	if isNotFound(err) {
		return &models.CartRecord{ID: cartID, Items: []models.CartItem{}}, nil
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load cart")
	}
	return record, nil
}

func (s *service) AddItem(ctx context.Context, cartID uuid.UUID, productID string, quantity int) (*models.CartRecord, error) {
	if quantity <= 0 {
		return nil, pkgerrors.Invalid("quantity", "must be greater than zero")
	}
	return s.mutate(ctx, cartID, productID, func(repo CartRepository, product *models.Product, item *models.CartItem) error {
		if item == nil {
			item = &models.CartItem{
				CartID:      cartID,
				ProductID:   product.ID,
				ProductName: product.Name,
				ImageURL:    firstImage(product.Images),
				UnitPrice:   pricing.FinalPesos(product.Price, product.OfferPrice),
			}
		}
		next := item.Quantity + quantity
		if err := checkStock(product, next); err != nil {
			return err
		}
		item.Quantity = next
		return repo.SaveItem(ctx, item)
	})
}

func (s *service) Increment(ctx context.Context, cartID uuid.UUID, productID string) (*models.CartRecord, error) {
	return s.AddItem(ctx, cartID, productID, 1)
}

// SetQuantity replaces a line's quantity; zero removes the line.
func (s *service) SetQuantity(ctx context.Context, cartID uuid.UUID, productID string, quantity int) (*models.CartRecord, error) {
	if quantity < 0 {
		return nil, pkgerrors.Invalid("quantity", "must not be negative")
	}
	if quantity == 0 {
		return s.RemoveItem(ctx, cartID, productID)
	}
	return s.mutate(ctx, cartID, productID, func(repo CartRepository, product *models.Product, item *models.CartItem) error {
		if item == nil {
			return pkgerrors.Newf(pkgerrors.CodeNotFound, "product %s is not in the cart", productID)
		}
		if err := checkStock(product, quantity); err != nil {
			return err
		}
		item.Quantity = quantity
		return repo.SaveItem(ctx, item)
	})
}

func (s *service) RemoveItem(ctx context.Context, cartID uuid.UUID, productID string) (*models.CartRecord, error) {
	productID = strings.TrimSpace(productID)
	if cartID == uuid.Nil {
		return nil, pkgerrors.Invalid("cart_id", "is required")
	}
	if productID == "" {
		return nil, pkgerrors.Invalid("product_id", "is required")
	}
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		removed, err := repo.DeleteItem(ctx, cartID, productID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "remove cart item")
		}
		if !removed {
			return nil
		}
		return repo.Touch(ctx, cartID)
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, cartID)
}

func (s *service) Clear(ctx context.Context, cartID uuid.UUID) error {
	if cartID == uuid.Nil {
		return pkgerrors.Invalid("cart_id", "is required")
	}
	if err := s.repo.DeleteItems(ctx, cartID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "clear cart")
	}
	return nil
}

type mutation func(repo CartRepository, product *models.Product, item *models.CartItem) error

// mutate loads the product and the existing line inside one transaction.
func (s *service) mutate(ctx context.Context, cartID uuid.UUID, productID string, fn mutation) (*models.CartRecord, error) {
	productID = strings.TrimSpace(productID)
	if cartID == uuid.Nil {
		return nil, pkgerrors.Invalid("cart_id", "is required")
	}
	if productID == "" {
		return nil, pkgerrors.Invalid("product_id", "is required")
	}

	product, err := s.products.FindByID(ctx, productID)
	if isNotFound(err) || (err == nil && !product.IsActive) {
		return nil, pkgerrors.Newf(pkgerrors.CodeNotFound, "product %s not found", productID)
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load product")
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if _, err := repo.Ensure(ctx, cartID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "ensure cart")
		}
		item, err := repo.FindItem(ctx, cartID, productID)
		if isNotFound(err) {
			item, err = nil, nil
		}
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load cart item")
		}
		if err := fn(repo, product, item); err != nil {
			return err
		}
		return repo.Touch(ctx, cartID)
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, cartID)
}

func checkStock(product *models.Product, quantity int) error {
	if quantity > MaxLineQuantity {
		return pkgerrors.Invalid("quantity", fmt.Sprintf("must not exceed %d", MaxLineQuantity))
	}
	if quantity > product.Stock {
		return pkgerrors.Newf(pkgerrors.CodeStateConflict, "only %d units of %s in stock", product.Stock, product.ID).
			WithDetails(map[string]any{
				"product_id": product.ID,
				"stock":      product.Stock,
				"requested":  quantity,
			})
	}
	return nil
}

func firstImage(images []string) string {
	for _, img := range images {
		if trimmed := strings.TrimSpace(img); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
