package controllers

import (
	"net/http"
	"strings"

	"github.com/loggas/loggas-backend/api/responses"
	"github.com/loggas/loggas-backend/api/validators"
	"github.com/loggas/loggas-backend/internal/customers"
	"github.com/loggas/loggas-backend/pkg/enums"
	pkgerrors "github.com/loggas/loggas-backend/pkg/errors"
	"github.com/loggas/loggas-backend/pkg/logger"
	"github.com/loggas/loggas-backend/pkg/pagination"
)

type createCustomerRequest struct {
	Name             string  `json:"name" validate:"required,max=120"`
	Document         *string `json:"document,omitempty" validate:"omitempty,max=32"`
	Address          *string `json:"address,omitempty" validate:"omitempty,max=240"`
	Phone            *string `json:"phone,omitempty" validate:"omitempty,max=32"`
	CreditLimitCents int64   `json:"credit_limit_cents" validate:"min=0"`
	Status           string  `json:"status,omitempty"`
}

type updateCustomerRequest struct {
	Name             *string `json:"name,omitempty" validate:"omitempty,max=120"`
	Document         *string `json:"document,omitempty" validate:"omitempty,max=32"`
	Address          *string `json:"address,omitempty" validate:"omitempty,max=240"`
	Phone            *string `json:"phone,omitempty" validate:"omitempty,max=32"`
	CreditLimitCents *int64  `json:"credit_limit_cents,omitempty" validate:"omitempty,min=0"`
	Status           *string `json:"status,omitempty"`
}

func parseCustomerStatus(raw string) (enums.CustomerStatus, error) {
	status, err := enums.ParseCustomerStatus(strings.TrimSpace(raw))
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status")
	}
	return status, nil
}

func CustomersList(svc customers.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("customer"))
			return
		}
		tid, err := tenantID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		params := customers.ListParams{
			Search: validators.SanitizeString(r.URL.Query().Get("q"), 80),
			Limit:  limit,
			Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
		}
		if raw := r.URL.Query().Get("status"); strings.TrimSpace(raw) != "" {
			status, err := parseCustomerStatus(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			params.Status = &status
		}

		result, err := svc.ListCustomers(r.Context(), tid, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

func CustomersGet(svc customers.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("customer"))
			return
		}
		tid, err := tenantID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		cid, err := pathID(r, "customerId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		customer, err := svc.GetCustomer(r.Context(), tid, cid)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, customer)
	}
}

func CustomersCreate(svc customers.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("customer"))
			return
		}
		tid, err := tenantID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload createCustomerRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		input := customers.CreateCustomerInput{
			Name:             validators.SanitizeString(payload.Name, 120),
			Document:         payload.Document,
			Address:          payload.Address,
			Phone:            payload.Phone,
			CreditLimitCents: payload.CreditLimitCents,
		}
		if payload.Status != "" {
			if input.Status, err = parseCustomerStatus(payload.Status); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}

		customer, err := svc.CreateCustomer(r.Context(), tid, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, customer)
	}
}

func CustomersUpdate(svc customers.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("customer"))
			return
		}
		tid, err := tenantID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		cid, err := pathID(r, "customerId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload updateCustomerRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		input := customers.UpdateCustomerInput{
			Name:             payload.Name,
			Document:         payload.Document,
			Address:          payload.Address,
			Phone:            payload.Phone,
			CreditLimitCents: payload.CreditLimitCents,
		}
		if payload.Status != nil {
			status, err := parseCustomerStatus(*payload.Status)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			input.Status = &status
		}

		customer, err := svc.UpdateCustomer(r.Context(), tid, cid, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, customer)
	}
}
