package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/loggas/loggas-backend/api/validators"
	"github.com/loggas/loggas-backend/internal/advisor"
	"github.com/loggas/loggas-backend/pkg/logger"
)

type advisorResponse struct {
	Text string `json:"text"`
}

type optimizeRouteRequest struct {
	SaleIDs []string `json:"sale_ids" validate:"required,min=1,dive,uuid"`
}

// advise wraps the generated text of every advisor endpoint.
func advise(svc advisor.Service, logg *logger.Logger, ask func(r *http.Request, tid uuid.UUID) (string, error)) http.HandlerFunc {
	return forTenant(logg, func(r *http.Request, tid uuid.UUID) (any, error) {
		if svc == nil {
			return nil, unavailable("advisor")
		}
		text, err := ask(r, tid)
		if err != nil {
			return nil, err
		}
		return advisorResponse{Text: text}, nil
	})
}

func AdvisorInsights(svc advisor.Service, logg *logger.Logger) http.HandlerFunc {
	return advise(svc, logg, func(r *http.Request, tid uuid.UUID) (string, error) {
		return svc.FinancialInsights(r.Context(), tid)
	})
}

func AdvisorProjection(svc advisor.Service, logg *logger.Logger) http.HandlerFunc {
	return advise(svc, logg, func(r *http.Request, tid uuid.UUID) (string, error) {
		customerID, err := pathID(r, "customerId")
		if err != nil {
			return "", err
		}
		return svc.CustomerProjection(r.Context(), tid, customerID)
	})
}

func AdvisorRoute(svc advisor.Service, logg *logger.Logger) http.HandlerFunc {
	return advise(svc, logg, func(r *http.Request, tid uuid.UUID) (string, error) {
		var req optimizeRouteRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			return "", err
		}
		saleIDs, err := parseUUIDs(req.SaleIDs, "sale_ids")
		if err != nil {
			return "", err
		}
		return svc.OptimizeRoute(r.Context(), tid, saleIDs)
	})
}
