package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/autoparts-backend/api/responses"
	"github.com/angelmondragon/autoparts-backend/api/validators"
	"github.com/angelmondragon/autoparts-backend/internal/checkout"
	pkgerrors "github.com/angelmondragon/autoparts-backend/pkg/errors"
	"github.com/angelmondragon/autoparts-backend/pkg/logger"
	"github.com/angelmondragon/autoparts-backend/pkg/types"
)

type checkoutQuoteRequest struct {
	CartID  uuid.UUID              `json:"cartId" validate:"required"`
	Address *types.ShippingAddress `json:"address,omitempty"`
}

type checkoutSubmitRequest struct {
	CartID        uuid.UUID             `json:"cartId" validate:"required"`
	Address       types.ShippingAddress `json:"address"`
	PaymentMethod string                `json:"paymentMethod" validate:"required"`
	CustomerEmail string                `json:"customerEmail,omitempty" validate:"omitempty,email"`
}

// CheckoutQuote prices the cart with IVA and, when an address is given, shipping.
func CheckoutQuote(svc checkout.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		var payload checkoutQuoteRequest
		if err := validators.DecodeJSONBody(w, r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		quote, err := svc.Quote(r.Context(), checkout.QuoteInput{CartID: payload.CartID, Address: payload.Address})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, quote)
	}
}

// CheckoutSubmit places the order. An order confirmed by the orders service
// answers 201; one kept in the outbox for later sync answers 202.
func CheckoutSubmit(svc checkout.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		var payload checkoutSubmitRequest
		if err := validators.DecodeJSONBody(w, r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Submit(r.Context(), checkout.SubmitInput{
			CartID:        payload.CartID,
			Address:       payload.Address,
			PaymentMethod: payload.PaymentMethod,
			CustomerEmail: payload.CustomerEmail,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		status := http.StatusCreated
		if result.Saved == checkout.SavedLocal {
			status = http.StatusAccepted
		}
		responses.WriteSuccessStatus(w, status, result)
	}
}
