package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/autoparts-backend/api/responses"
	"github.com/angelmondragon/autoparts-backend/api/validators"
	"github.com/angelmondragon/autoparts-backend/internal/cart"
	"github.com/angelmondragon/autoparts-backend/internal/checkout"
	"github.com/angelmondragon/autoparts-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/autoparts-backend/pkg/errors"
	"github.com/angelmondragon/autoparts-backend/pkg/logger"
)

type addCartItemRequest struct {
	ProductID string `json:"productId" validate:"required,max=64"`
	Quantity  int    `json:"quantity" validate:"required,min=1,max=999"`
}

type setCartQuantityRequest struct {
	Quantity *int `json:"quantity" validate:"required,min=0,max=999"`
}

type cartResponse struct {
	CartID  uuid.UUID        `json:"cartId"`
	Lines   []checkout.Line  `json:"lines"`
	Summary checkout.Summary `json:"summary"`
}

func newCartResponse(record *models.CartRecord, taxRate decimal.Decimal) cartResponse {
	lines := checkout.LinesFromCart(record)
	return cartResponse{
		CartID:  record.ID,
		Lines:   lines,
		Summary: checkout.Totals(lines, nil, taxRate),
	}
}

func CartGet(svc cart.Service, taxRate decimal.Decimal, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart service unavailable"))
			return
		}
		cartID, err := validators.ParseUUIDParam(chi.URLParam(r, "cartId"), "cartId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		record, err := svc.Get(r.Context(), cartID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newCartResponse(record, taxRate))
	}
}

// CartAddItem adds quantity units of a product, merging into an existing line.
func CartAddItem(svc cart.Service, taxRate decimal.Decimal, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart service unavailable"))
			return
		}
		cartID, err := validators.ParseUUIDParam(chi.URLParam(r, "cartId"), "cartId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload addCartItemRequest
		if err := validators.DecodeJSONBody(w, r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		record, err := svc.AddItem(r.Context(), cartID, payload.ProductID, payload.Quantity)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newCartResponse(record, taxRate))
	}
}

func CartIncrementItem(svc cart.Service, taxRate decimal.Decimal, logg *logger.Logger) http.HandlerFunc {
	return cartItemAction(svc, taxRate, logg, func(r *http.Request, cartID uuid.UUID, productID string) (*models.CartRecord, error) {
		return svc.Increment(r.Context(), cartID, productID)
	})
}

// CartSetQuantity replaces a line's quantity; zero removes it.
func CartSetQuantity(svc cart.Service, taxRate decimal.Decimal, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart service unavailable"))
			return
		}
		var payload setCartQuantityRequest
		if err := validators.DecodeJSONBody(w, r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		cartItemAction(svc, taxRate, logg, func(r *http.Request, cartID uuid.UUID, productID string) (*models.CartRecord, error) {
			return svc.SetQuantity(r.Context(), cartID, productID, *payload.Quantity)
		})(w, r)
	}
}

func CartRemoveItem(svc cart.Service, taxRate decimal.Decimal, logg *logger.Logger) http.HandlerFunc {
	return cartItemAction(svc, taxRate, logg, func(r *http.Request, cartID uuid.UUID, productID string) (*models.CartRecord, error) {
		return svc.RemoveItem(r.Context(), cartID, productID)
	})
}

func CartClear(svc cart.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart service unavailable"))
			return
		}
		cartID, err := validators.ParseUUIDParam(chi.URLParam(r, "cartId"), "cartId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.Clear(r.Context(), cartID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

type cartItemFunc func(r *http.Request, cartID uuid.UUID, productID string) (*models.CartRecord, error)

func cartItemAction(svc cart.Service, taxRate decimal.Decimal, logg *logger.Logger, fn cartItemFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart service unavailable"))
			return
		}
		cartID, err := validators.ParseUUIDParam(chi.URLParam(r, "cartId"), "cartId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		productID := validators.SanitizeString(chi.URLParam(r, "productId"), maxFilterLen)
		if productID == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Invalid("productId", "is required"))
			return
		}

		record, err := fn(r, cartID, productID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newCartResponse(record, taxRate))
	}
}
