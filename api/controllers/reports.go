package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/loggas/loggas-backend/api/validators"
	"github.com/loggas/loggas-backend/internal/reports"
	"github.com/loggas/loggas-backend/pkg/logger"
)

func ReportsDashboard(svc reports.Service, logg *logger.Logger) http.HandlerFunc {
	return forTenant(logg, func(r *http.Request, tid uuid.UUID) (any, error) {
		if svc == nil {
			return nil, unavailable("reports")
		}
		from, to, err := validators.ParseQueryRange(r)
		if err != nil {
			return nil, err
		}
		return svc.Dashboard(r.Context(), tid, from, to)
	})
}

// PlatformMetrics is the super-admin overview across all distributors.
func PlatformMetrics(svc reports.Service, logg *logger.Logger) http.HandlerFunc {
	return handle(logg, func(r *http.Request) (any, error) {
		if svc == nil {
			return nil, unavailable("reports")
		}
		return svc.PlatformMetrics(r.Context())
	})
}
