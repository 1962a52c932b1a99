package catalog

import (
	"context"
	"math"

	"github.com/lib/pq"
	"gorm.io/gorm"

	"github.com/angelmondragon/autoparts-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/autoparts-backend/pkg/errors"
)

type productGetter interface {
	Get(ctx context.Context, id string) (*Product, error)
}

// ProductLookup serves cart and checkout product reads from the normalized
// catalog, so products that only exist in the remote products service can be
// bought. Missing products surface as gorm.ErrRecordNotFound like the table
// lookup does.
type ProductLookup struct {
	catalog productGetter
}

func NewProductLookup(catalog productGetter) *ProductLookup {
	return &ProductLookup{catalog: catalog}
}

func (l *ProductLookup) FindByID(ctx context.Context, id string) (*models.Product, error) {
	product, err := l.catalog.Get(ctx, id)
	if pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		return nil, gorm.ErrRecordNotFound
	}
	if err != nil {
		return nil, err
	}
	return ModelFromProduct(*product), nil
}

// ModelFromProduct maps a normalized product onto the stored shape. The offer
// price is only set when the resolved price is discounted, so
// pricing.FinalPesos yields the same final price the catalog shows.
func ModelFromProduct(p Product) *models.Product {
	m := &models.Product{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Price:       pesos(p.Display.Original),
		Stock:       p.Stock,
		Category:    p.Category,
		Tags:        pq.StringArray(append([]string(nil), p.Tags...)),
		Images:      pq.StringArray(append([]string(nil), p.Images...)),
		IsOffer:     p.IsOffer,
		IsFeatured:  p.IsFeatured,
		IsActive:    p.IsActive,
		Position:    int64(p.Position),
	}
	if p.Display.HasDiscount {
		offer := pesos(p.Display.Final)
		m.OfferPrice = &offer
	}
	return m
}

func pesos(v float64) int64 {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	return int64(math.Round(v))
}
