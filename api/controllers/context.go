package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/loggas/loggas-backend/api/controllers/tenantcontext"
	"github.com/loggas/loggas-backend/api/middleware"
	"github.com/loggas/loggas-backend/api/responses"
	"github.com/loggas/loggas-backend/api/validators"
	pkgerrors "github.com/loggas/loggas-backend/pkg/errors"
	"github.com/loggas/loggas-backend/pkg/logger"
)

// tenantID reads the distributor bound to the caller's token.
func tenantID(r *http.Request) (uuid.UUID, error) {
	return tenantcontext.ResolveTenantID(r)
}

func userID(r *http.Request) (uuid.UUID, error) {
	raw := middleware.UserIDFromContext(r.Context())
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid user id")
	}
	return id, nil
}

func pathID(r *http.Request, param string) (uuid.UUID, error) {
	return validators.ParseUUID(chi.URLParam(r, param), param)
}

func idempotencyKey(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get("Idempotency-Key"))
}

func unavailable(name string) error {
	return pkgerrors.New(pkgerrors.CodeInternal, name+" service unavailable")
}

// handle writes fn's result as a 200 envelope, or its error.
func handle(logg *logger.Logger, fn func(r *http.Request) (any, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		out, err := fn(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, out)
	}
}

// forTenant is handle for routes scoped to the caller's distributor.
func forTenant(logg *logger.Logger, fn func(r *http.Request, tid uuid.UUID) (any, error)) http.HandlerFunc {
	return handle(logg, func(r *http.Request) (any, error) {
		tid, err := tenantID(r)
		if err != nil {
			return nil, err
		}
		return fn(r, tid)
	})
}

// forUser is handle for routes acting on the signed-in account.
func forUser(logg *logger.Logger, fn func(r *http.Request, uid uuid.UUID) (any, error)) http.HandlerFunc {
	return handle(logg, func(r *http.Request) (any, error) {
		uid, err := userID(r)
		if err != nil {
			return nil, err
		}
		return fn(r, uid)
	})
}
