package controllers

import (
	"net/http"

	"github.com/angelmondragon/autoparts-backend/api/responses"
	"github.com/angelmondragon/autoparts-backend/api/validators"
	"github.com/angelmondragon/autoparts-backend/internal/shipping"
	pkgerrors "github.com/angelmondragon/autoparts-backend/pkg/errors"
	"github.com/angelmondragon/autoparts-backend/pkg/logger"
	"github.com/angelmondragon/autoparts-backend/pkg/types"
)

// ShippingQuoter prices a destination.
type ShippingQuoter interface {
	Estimate(addr types.ShippingAddress, subtotal int64) shipping.Estimate
}

// ShippingEstimate quotes shipping for ?region=&provincia=&comuna=&subtotal=.
// Region is required; subtotal defaults to 0.
func ShippingEstimate(est ShippingQuoter, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if est == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "shipping estimator unavailable"))
			return
		}

		values := r.URL.Query()
		addr := types.ShippingAddress{
			Region:    validators.SanitizeString(values.Get("region"), maxFilterLen),
			Provincia: validators.SanitizeString(values.Get("provincia"), maxFilterLen),
			Comuna:    validators.SanitizeString(values.Get("comuna"), maxFilterLen),
		}
		if !addr.IsResolved() {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Invalid("region", "is required"))
			return
		}

		subtotal, err := validators.ParseQueryInt64(r, "subtotal", 0)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, est.Estimate(addr, subtotal))
	}
}
