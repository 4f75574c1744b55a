package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/luisromero-dev/storefront-backend/api/middleware"
	"github.com/luisromero-dev/storefront-backend/api/responses"
	"github.com/luisromero-dev/storefront-backend/api/validators"
	checkoutsvc "github.com/luisromero-dev/storefront-backend/internal/checkout"
	"github.com/luisromero-dev/storefront-backend/pkg/enums"
	pkgerrors "github.com/luisromero-dev/storefront-backend/pkg/errors"
	"github.com/luisromero-dev/storefront-backend/pkg/logger"
	"github.com/luisromero-dev/storefront-backend/pkg/types"
)

type checkoutRequest struct {
	PaymentMethod   string        `json:"payment_method" validate:"required"`
	ShippingAddress types.Address `json:"shipping_address"`
}

// Checkout turns the caller's cart into an order.
func Checkout(svc *checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		userID, err := uuid.Parse(middleware.UserIDFromContext(r.Context()))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
			return
		}

		var req checkoutRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		method, err := enums.ParsePaymentMethod(req.PaymentMethod)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid payment method").
				WithDetails(map[string]any{"payment_method": req.PaymentMethod}))
			return
		}

		result, err := svc.PlaceOrder(r.Context(), userID, checkoutsvc.PlaceOrderInput{
			PaymentMethod:   method,
			ShippingAddress: req.ShippingAddress,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if logg != nil {
			ctx := logg.WithOrderID(r.Context(), result.Order.ID.String())
			logg.Info(ctx, "order.placed")
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}
