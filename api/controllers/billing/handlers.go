package billing

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/loggas/loggas-backend/api/controllers/tenantcontext"
	"github.com/loggas/loggas-backend/api/responses"
	"github.com/loggas/loggas-backend/api/validators"
	billingsvc "github.com/loggas/loggas-backend/internal/billing"
	"github.com/loggas/loggas-backend/pkg/db/models"
	"github.com/loggas/loggas-backend/pkg/enums"
	pkgerrors "github.com/loggas/loggas-backend/pkg/errors"
	"github.com/loggas/loggas-backend/pkg/logger"
)

// Service describes the billing methods used by the HTTP controllers.
type Service interface {
	ListPlans() []billingsvc.Plan
	CurrentPlan(ctx context.Context, tenantID uuid.UUID) (*billingsvc.CurrentPlan, error)
	Subscribe(ctx context.Context, tenantID uuid.UUID, input billingsvc.SubscribeInput) (*models.BillingSubscription, error)
	Cancel(ctx context.Context, tenantID uuid.UUID) (*models.BillingSubscription, error)
}

type subscribeRequest struct {
	Plan         string `json:"plan" validate:"required"`
	BillingEmail string `json:"billing_email" validate:"required,email"`
}

func Plans(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "billing service unavailable"))
			return
		}
		responses.WriteSuccess(w, map[string]any{"plans": svc.ListPlans()})
	}
}

func Current(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "billing service unavailable"))
			return
		}
		tenantID, err := tenantcontext.ResolveTenantID(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		current, err := svc.CurrentPlan(ctx, tenantID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, current)
	}
}

// Subscribe starts a paid plan. The subscription stays incomplete until
// Stripe confirms the first invoice through the webhook.
func Subscribe(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "billing service unavailable"))
			return
		}
		tenantID, err := tenantcontext.ResolveTenantID(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		var payload subscribeRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		plan, err := enums.ParsePlanTier(strings.TrimSpace(payload.Plan))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid plan"))
			return
		}

		sub, err := svc.Subscribe(ctx, tenantID, billingsvc.SubscribeInput{
			Plan:         plan,
			BillingEmail: strings.TrimSpace(payload.BillingEmail),
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, sub)
	}
}

// Cancel schedules the current subscription to end with its billing period.
func Cancel(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "billing service unavailable"))
			return
		}
		tenantID, err := tenantcontext.ResolveTenantID(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		sub, err := svc.Cancel(ctx, tenantID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, sub)
	}
}
