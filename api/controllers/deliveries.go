package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/loggas/loggas-backend/api/responses"
	"github.com/loggas/loggas-backend/api/validators"
	"github.com/loggas/loggas-backend/internal/deliveries"
	"github.com/loggas/loggas-backend/pkg/enums"
	pkgerrors "github.com/loggas/loggas-backend/pkg/errors"
	"github.com/loggas/loggas-backend/pkg/logger"
)

type driverRequest struct {
	Name    string `json:"name" validate:"required,max=120"`
	Vehicle string `json:"vehicle,omitempty" validate:"max=64"`
	Plate   string `json:"plate,omitempty" validate:"max=16"`
}

type driverUpdateRequest struct {
	Name    *string `json:"name,omitempty" validate:"omitempty,max=120"`
	Vehicle *string `json:"vehicle,omitempty" validate:"omitempty,max=64"`
	Plate   *string `json:"plate,omitempty" validate:"omitempty,max=16"`
	Status  *string `json:"status,omitempty"`
}

type routeRequest struct {
	DriverID  string     `json:"driver_id" validate:"required,uuid"`
	SaleIDs   []string   `json:"sale_ids" validate:"required,min=1,dive,uuid"`
	RouteDate *time.Time `json:"route_date,omitempty"`
}

func parseUUIDs(values []string, field string) ([]uuid.UUID, error) {
	ids := make([]uuid.UUID, 0, len(values))
	for _, raw := range values {
		id, err := validators.ParseUUID(raw, field)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func DriversList(svc deliveries.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("delivery"))
			return
		}
		tid, err := tenantID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		drivers, err := svc.ListDrivers(r.Context(), tid)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"drivers": drivers})
	}
}

func DriversCreate(svc deliveries.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("delivery"))
			return
		}
		tid, err := tenantID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload driverRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		driver, err := svc.CreateDriver(r.Context(), tid, deliveries.DriverInput{
			Name:    validators.SanitizeString(payload.Name, 120),
			Vehicle: strings.TrimSpace(payload.Vehicle),
			Plate:   strings.ToUpper(strings.TrimSpace(payload.Plate)),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, driver)
	}
}

func DriversUpdate(svc deliveries.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("delivery"))
			return
		}
		tid, err := tenantID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		did, err := pathID(r, "driverId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload driverUpdateRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		update := deliveries.DriverUpdate{
			Name:    payload.Name,
			Vehicle: payload.Vehicle,
			Plate:   payload.Plate,
		}
		if payload.Status != nil {
			status, err := enums.ParseDriverStatus(strings.TrimSpace(*payload.Status))
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status"))
				return
			}
			update.Status = &status
		}

		driver, err := svc.UpdateDriver(r.Context(), tid, did, update)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, driver)
	}
}

func DriversDelete(svc deliveries.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("delivery"))
			return
		}
		tid, err := tenantID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		did, err := pathID(r, "driverId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.DeleteDriver(r.Context(), tid, did); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "deleted"})
	}
}

func RoutesList(svc deliveries.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("delivery"))
			return
		}
		tid, err := tenantID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var status *enums.RouteStatus
		if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
			parsed, err := enums.ParseRouteStatus(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status"))
				return
			}
			status = &parsed
		}
		routes, err := svc.ListRoutes(r.Context(), tid, status)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"routes": routes})
	}
}

func RoutesGet(svc deliveries.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("delivery"))
			return
		}
		tid, err := tenantID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		rid, err := pathID(r, "routeId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		route, err := svc.GetRoute(r.Context(), tid, rid)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, route)
	}
}

// RoutesCreate assigns sales to a driver for one delivery run.
func RoutesCreate(svc deliveries.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("delivery"))
			return
		}
		tid, err := tenantID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload routeRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		driverID, err := validators.ParseUUID(payload.DriverID, "driver_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		saleIDs, err := parseUUIDs(payload.SaleIDs, "sale_ids")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		route, err := svc.CreateRoute(r.Context(), tid, deliveries.RouteInput{
			DriverID:  driverID,
			SaleIDs:   saleIDs,
			RouteDate: payload.RouteDate,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, route)
	}
}

func RoutesStart(svc deliveries.Service, logg *logger.Logger) http.HandlerFunc {
	return routeTransition(logg, func(r *http.Request, tid, rid uuid.UUID) (any, error) {
		if svc == nil {
			return nil, unavailable("delivery")
		}
		return svc.StartRoute(r.Context(), tid, rid)
	})
}

func RoutesComplete(svc deliveries.Service, logg *logger.Logger) http.HandlerFunc {
	return routeTransition(logg, func(r *http.Request, tid, rid uuid.UUID) (any, error) {
		if svc == nil {
			return nil, unavailable("delivery")
		}
		return svc.CompleteRoute(r.Context(), tid, rid)
	})
}

func routeTransition(logg *logger.Logger, move func(r *http.Request, tid, rid uuid.UUID) (any, error)) http.HandlerFunc {
	return forTenant(logg, func(r *http.Request, tid uuid.UUID) (any, error) {
		rid, err := pathID(r, "routeId")
		if err != nil {
			return nil, err
		}
		return move(r, tid, rid)
	})
}
