package controllers

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loggas/loggas-backend/api/middleware"
	"github.com/loggas/loggas-backend/internal/reports"
	"github.com/loggas/loggas-backend/pkg/enums"
	"github.com/loggas/loggas-backend/pkg/logger"
)

func quietLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "controllers-test", Output: io.Discard})
}

func serve(t *testing.T, h http.HandlerFunc, req *http.Request) (int, map[string]any) {
	t.Helper()
	rec := httptest.NewRecorder()
	h(rec, req)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return rec.Code, body
}

func adminRequest(tenant uuid.UUID) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	ctx := middleware.WithRole(req.Context(), string(enums.UserRoleAdmin))
	ctx = middleware.WithTenantID(ctx, tenant.String())
	return req.WithContext(ctx)
}

func TestForTenantPassesResolvedTenant(t *testing.T) {
	tenant := uuid.New()
	var seen uuid.UUID
	h := forTenant(quietLogger(), func(_ *http.Request, tid uuid.UUID) (any, error) {
		seen = tid
		return map[string]string{"ok": "yes"}, nil
	})

	code, body := serve(t, h, adminRequest(tenant))
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, tenant, seen)
	assert.Equal(t, map[string]any{"ok": "yes"}, body["data"])
}

func TestForTenantRejectsCallerWithoutTenant(t *testing.T) {
	called := false
	h := forTenant(quietLogger(), func(*http.Request, uuid.UUID) (any, error) {
		called = true
		return nil, nil
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(middleware.WithRole(req.Context(), string(enums.UserRoleCustomer)))
	code, body := serve(t, h, req)
	assert.Equal(t, http.StatusForbidden, code)
	assert.Contains(t, body, "error")
	assert.False(t, called)
}

func TestForUserNeedsUserContext(t *testing.T) {
	h := forUser(quietLogger(), func(_ *http.Request, uid uuid.UUID) (any, error) {
		return uid, nil
	})

	code, _ := serve(t, h, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, code)

	uid := uuid.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(middleware.WithUserID(req.Context(), uid.String()))
	code, body := serve(t, h, req)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, uid.String(), body["data"])
}

func TestMissingServiceIsReported(t *testing.T) {
	var svc reports.Service
	code, body := serve(t, ReportsDashboard(svc, quietLogger()), adminRequest(uuid.New()))
	assert.Equal(t, http.StatusInternalServerError, code)
	assert.Contains(t, body, "error")
}
