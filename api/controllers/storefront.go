package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/loggas/loggas-backend/api/middleware"
	"github.com/loggas/loggas-backend/api/responses"
	"github.com/loggas/loggas-backend/api/validators"
	"github.com/loggas/loggas-backend/internal/storefront"
	pkgAuth "github.com/loggas/loggas-backend/pkg/auth"
	"github.com/loggas/loggas-backend/pkg/config"
	"github.com/loggas/loggas-backend/pkg/enums"
	pkgerrors "github.com/loggas/loggas-backend/pkg/errors"
	"github.com/loggas/loggas-backend/pkg/logger"
)

type storefrontLineRequest struct {
	ProductID string `json:"product_id" validate:"required,uuid"`
	Quantity  int    `json:"quantity" validate:"required,min=1,max=100000"`
}

// Client prices are not accepted; the storefront always charges the catalog price.
type storefrontOrderRequest struct {
	Name          string                  `json:"name,omitempty" validate:"max=120"`
	Phone         string                  `json:"phone,omitempty" validate:"max=32"`
	Address       string                  `json:"address,omitempty" validate:"max=240"`
	PaymentMethod string                  `json:"payment_method,omitempty"`
	Lines         []storefrontLineRequest `json:"lines" validate:"required,min=1,dive"`
}

func StorefrontStore(svc storefront.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("storefront"))
			return
		}
		store, err := svc.GetStore(r.Context(), chi.URLParam(r, "slug"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, store)
	}
}

func StorefrontProducts(svc storefront.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("storefront"))
			return
		}
		products, err := svc.ListProducts(r.Context(), chi.URLParam(r, "slug"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"products": products})
	}
}

// StorefrontCheckout places an online order. A valid customer token links the
// order to the shopper; without one the order is a guest checkout.
func StorefrontCheckout(svc storefront.Service, cfg config.JWTConfig, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("storefront"))
			return
		}

		buyer, err := optionalCustomer(r, cfg)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload storefrontOrderRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var method enums.PaymentMethod
		if raw := strings.TrimSpace(payload.PaymentMethod); raw != "" {
			if method, err = enums.ParsePaymentMethod(raw); err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payment method"))
				return
			}
		}
		lines := make([]storefront.CheckoutLine, 0, len(payload.Lines))
		for _, line := range payload.Lines {
			pid, err := validators.ParseUUID(line.ProductID, "product_id")
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			lines = append(lines, storefront.CheckoutLine{ProductID: pid, Quantity: line.Quantity})
		}

		sale, err := svc.Checkout(r.Context(), chi.URLParam(r, "slug"), storefront.CheckoutInput{
			BuyerUserID:    buyer,
			Name:           validators.SanitizeString(payload.Name, 120),
			Phone:          strings.TrimSpace(payload.Phone),
			Address:        validators.SanitizeString(payload.Address, 240),
			PaymentMethod:  method,
			Lines:          lines,
			IdempotencyKey: idempotencyKey(r),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, sale)
	}
}

// optionalCustomer returns the shopper behind a bearer token, nil for guests.
// A token that is present but invalid is rejected rather than downgraded.
func optionalCustomer(r *http.Request, cfg config.JWTConfig) (*uuid.UUID, error) {
	if strings.TrimSpace(r.Header.Get("Authorization")) == "" {
		return nil, nil
	}
	token, err := middleware.BearerToken(r)
	if err != nil {
		return nil, err
	}
	claims, err := pkgAuth.ParseAccessToken(cfg, token)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token")
	}
	if claims.Role != enums.UserRoleCustomer {
		return nil, nil
	}
	id := claims.UserID
	return &id, nil
}
