package controllers

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/loggas/loggas-backend/api/responses"
	"github.com/loggas/loggas-backend/api/validators"
	"github.com/loggas/loggas-backend/internal/customers"
	"github.com/loggas/loggas-backend/internal/sales"
	"github.com/loggas/loggas-backend/pkg/enums"
	pkgerrors "github.com/loggas/loggas-backend/pkg/errors"
	"github.com/loggas/loggas-backend/pkg/logger"
	"github.com/loggas/loggas-backend/pkg/pagination"
)

type saleLineRequest struct {
	ProductID      string `json:"product_id" validate:"required,uuid"`
	Quantity       int    `json:"quantity" validate:"required,min=1,max=100000"`
	UnitPriceCents *int64 `json:"unit_price_cents,omitempty" validate:"omitempty,min=0,max=10000000000000"`
}

type createSaleRequest struct {
	Lines         []saleLineRequest `json:"lines" validate:"required,min=1,dive"`
	CustomerID    string            `json:"customer_id,omitempty"`
	CustomerName  string            `json:"customer_name,omitempty" validate:"max=120"`
	Address       string            `json:"address,omitempty" validate:"max=240"`
	Phone         string            `json:"phone,omitempty" validate:"max=32"`
	PaymentMethod string            `json:"payment_method" validate:"required"`
	Origin        string            `json:"origin,omitempty"`
}

func (r createSaleRequest) toInput(tenant uuid.UUID) (sales.SaleInput, error) {
	method, err := enums.ParsePaymentMethod(strings.TrimSpace(r.PaymentMethod))
	if err != nil {
		return sales.SaleInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payment method")
	}
	origin := enums.SaleOriginPresencial
	if raw := strings.TrimSpace(r.Origin); raw != "" {
		if origin, err = enums.ParseSaleOrigin(raw); err != nil {
			return sales.SaleInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid origin")
		}
	}

	lines := make([]sales.LineInput, 0, len(r.Lines))
	for _, line := range r.Lines {
		pid, err := validators.ParseUUID(line.ProductID, "product_id")
		if err != nil {
			return sales.SaleInput{}, err
		}
		lines = append(lines, sales.LineInput{
			ProductID:      pid,
			Quantity:       line.Quantity,
			UnitPriceCents: line.UnitPriceCents,
		})
	}

	ref := strings.TrimSpace(r.CustomerID)
	if ref == "" {
		ref = customers.AnonymousRef
	}
	return sales.SaleInput{
		TenantID: tenant,
		Lines:    lines,
		Customer: sales.CustomerInfo{
			Ref:     ref,
			Name:    validators.SanitizeString(r.CustomerName, 120),
			Address: validators.SanitizeString(r.Address, 240),
			Phone:   strings.TrimSpace(r.Phone),
		},
		PaymentMethod: method,
		Origin:        origin,
	}, nil
}

type saleStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

func SalesList(svc sales.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("sales"))
			return
		}
		tid, err := tenantID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		params, err := saleListParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.ListSales(r.Context(), tid, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

func saleListParams(r *http.Request) (sales.ListParams, error) {
	limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
	if err != nil {
		return sales.ListParams{}, err
	}
	from, err := validators.ParseQueryTime(r, "from", false)
	if err != nil {
		return sales.ListParams{}, err
	}
	to, err := validators.ParseQueryTime(r, "to", true)
	if err != nil {
		return sales.ListParams{}, err
	}

	params := sales.ListParams{
		From:   from,
		To:     to,
		Limit:  limit,
		Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("origin")); raw != "" {
		origin, err := enums.ParseSaleOrigin(raw)
		if err != nil {
			return sales.ListParams{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid origin")
		}
		params.Origin = &origin
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
		status, err := enums.ParseSaleStatus(raw)
		if err != nil {
			return sales.ListParams{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status")
		}
		params.Status = &status
	}
	return params, nil
}

func SalesGet(svc sales.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("sales"))
			return
		}
		tid, err := tenantID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		sid, err := pathID(r, "saleId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		sale, err := svc.GetSale(r.Context(), tid, sid)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, sale)
	}
}

// SalesCreate records a counter sale: stock, ledger and customer stats move together.
func SalesCreate(svc sales.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("sales"))
			return
		}
		tid, err := tenantID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload createSaleRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		input, err := payload.toInput(tid)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		input.IdempotencyKey = idempotencyKey(r)

		sale, err := svc.ProcessSale(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, sale)
	}
}

func SalesAdvanceStatus(svc sales.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("sales"))
			return
		}
		tid, err := tenantID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		sid, err := pathID(r, "saleId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload saleStatusRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		next, err := enums.ParseSaleStatus(strings.TrimSpace(payload.Status))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status"))
			return
		}

		sale, err := svc.AdvanceStatus(r.Context(), tid, sid, next)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, sale)
	}
}
