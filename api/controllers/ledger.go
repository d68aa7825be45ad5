package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/loggas/loggas-backend/api/responses"
	"github.com/loggas/loggas-backend/api/validators"
	"github.com/loggas/loggas-backend/internal/ledger"
	"github.com/loggas/loggas-backend/pkg/enums"
	pkgerrors "github.com/loggas/loggas-backend/pkg/errors"
	"github.com/loggas/loggas-backend/pkg/logger"
	"github.com/loggas/loggas-backend/pkg/pagination"
)

type appendEntryRequest struct {
	Description string     `json:"description" validate:"required,max=240"`
	Type        string     `json:"type" validate:"required"`
	AmountCents *int64     `json:"amount_cents" validate:"required,min=0,max=10000000000000"`
	Category    string     `json:"category,omitempty" validate:"max=64"`
	OccurredAt  *time.Time `json:"occurred_at,omitempty"`
}

func LedgerList(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("ledger"))
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
		from, err := validators.ParseQueryTime(r, "from", false)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		to, err := validators.ParseQueryTime(r, "to", true)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params := ledger.ListParams{
			From:   from,
			To:     to,
			Limit:  limit,
			Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
		}
		if raw := strings.TrimSpace(r.URL.Query().Get("type")); raw != "" {
			entryType, err := enums.ParseLedgerEntryType(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid type"))
				return
			}
			params.Type = &entryType
		}

		result, err := svc.List(r.Context(), tid, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// LedgerAppend posts a manual income or expense entry.
func LedgerAppend(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("ledger"))
			return
		}
		tid, err := tenantID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload appendEntryRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		entryType, err := enums.ParseLedgerEntryType(strings.TrimSpace(payload.Type))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid type"))
			return
		}

		entry, err := svc.Append(r.Context(), tid, ledger.AppendInput{
			Description: validators.SanitizeString(payload.Description, 240),
			Type:        entryType,
			AmountCents: *payload.AmountCents,
			Category:    strings.TrimSpace(payload.Category),
			OccurredAt:  payload.OccurredAt,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, entry)
	}
}

// LedgerReport totals income and expenses, defaulting to the current month.
func LedgerReport(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("ledger"))
			return
		}
		tid, err := tenantID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		from, to, err := validators.ParseQueryRange(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		report, err := svc.Report(r.Context(), tid, from, to)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		byMethod, err := svc.RevenueByPaymentMethod(r.Context(), tid, from, to)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{
			"report":            report,
			"by_payment_method": byMethod,
		})
	}
}
