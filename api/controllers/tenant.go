package controllers

import (
	"net/http"

	"github.com/loggas/loggas-backend/api/responses"
	"github.com/loggas/loggas-backend/api/validators"
	"github.com/loggas/loggas-backend/internal/tenants"
	"github.com/loggas/loggas-backend/pkg/logger"
)

type tenantSettingsRequest struct {
	CompanyName    *string `json:"company_name,omitempty" validate:"omitempty,min=2,max=120"`
	Phone          *string `json:"phone,omitempty" validate:"omitempty,max=32"`
	Address        *string `json:"address,omitempty" validate:"omitempty,max=240"`
	StorefrontOpen *bool   `json:"storefront_open,omitempty"`
}

func TenantSettingsGet(svc tenants.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("tenant"))
			return
		}
		tid, err := tenantID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		tenant, err := svc.GetSettings(r.Context(), tid)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, tenant)
	}
}

// TenantSettingsUpdate edits company details. The storefront slug never changes.
func TenantSettingsUpdate(svc tenants.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("tenant"))
			return
		}
		tid, err := tenantID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload tenantSettingsRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		tenant, err := svc.UpdateSettings(r.Context(), tid, tenants.SettingsInput{
			CompanyName:    payload.CompanyName,
			Phone:          payload.Phone,
			Address:        payload.Address,
			StorefrontOpen: payload.StorefrontOpen,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, tenant)
	}
}
