package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/loggas/loggas-backend/api/validators"
	"github.com/loggas/loggas-backend/internal/sales"
	"github.com/loggas/loggas-backend/internal/users"
	"github.com/loggas/loggas-backend/pkg/logger"
	"github.com/loggas/loggas-backend/pkg/pagination"
)

type updateProfileRequest struct {
	Name    *string `json:"name,omitempty" validate:"omitempty,min=1,max=120"`
	Phone   *string `json:"phone,omitempty" validate:"omitempty,max=32"`
	Address *string `json:"address,omitempty" validate:"omitempty,max=240"`
}

func MeGet(svc users.Service, logg *logger.Logger) http.HandlerFunc {
	return forUser(logg, func(r *http.Request, uid uuid.UUID) (any, error) {
		if svc == nil {
			return nil, unavailable("user")
		}
		return svc.GetProfile(r.Context(), uid)
	})
}

func MeUpdate(svc users.Service, logg *logger.Logger) http.HandlerFunc {
	return forUser(logg, func(r *http.Request, uid uuid.UUID) (any, error) {
		if svc == nil {
			return nil, unavailable("user")
		}
		var req updateProfileRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			return nil, err
		}
		return svc.UpdateProfile(r.Context(), uid, users.UpdateProfileInput{
			Name:    req.Name,
			Phone:   req.Phone,
			Address: req.Address,
		})
	})
}

// MeOrders lists the shopper's storefront orders across distributors.
func MeOrders(svc sales.Service, logg *logger.Logger) http.HandlerFunc {
	return forUser(logg, func(r *http.Request, uid uuid.UUID) (any, error) {
		if svc == nil {
			return nil, unavailable("sales")
		}
		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			return nil, err
		}
		orders, err := svc.ListCustomerOrders(r.Context(), uid, limit)
		if err != nil {
			return nil, err
		}
		return map[string]any{"orders": orders}, nil
	})
}
