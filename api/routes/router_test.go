package routes

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loggas/loggas-backend/api/controllers"
	"github.com/loggas/loggas-backend/internal/catalog"
	"github.com/loggas/loggas-backend/internal/reports"
	pkgAuth "github.com/loggas/loggas-backend/pkg/auth"
	"github.com/loggas/loggas-backend/pkg/config"
	"github.com/loggas/loggas-backend/pkg/db/models"
	"github.com/loggas/loggas-backend/pkg/enums"
	"github.com/loggas/loggas-backend/pkg/metrics"
)

type stubPinger struct{ err error }

func (s stubPinger) Ping(context.Context) error { return s.err }

type stubSessions struct{}

func (stubSessions) HasSession(context.Context, string) (bool, error) { return true, nil }

type stubCatalog struct {
	catalog.Service
	lastTenant uuid.UUID
}

func (s *stubCatalog) ListProducts(_ context.Context, tenantID uuid.UUID, _ catalog.ListParams) (*catalog.ListResult, error) {
	s.lastTenant = tenantID
	return &catalog.ListResult{Products: []models.Product{{Name: "Gás P13"}}}, nil
}

type stubReports struct {
	reports.Service
}

func (stubReports) PlatformMetrics(context.Context) (*reports.PlatformMetrics, error) {
	return &reports.PlatformMetrics{TotalDistributors: 3, Health: reports.HealthPerfect}, nil
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.App.Env = "test"
	cfg.JWT = config.JWTConfig{Secret: "secret", Issuer: "loggas", ExpirationMinutes: 15}
	return cfg
}

func mint(t *testing.T, cfg *config.Config, role enums.UserRole, tenant *uuid.UUID) string {
	t.Helper()
	token, err := pkgAuth.MintAccessToken(cfg.JWT, time.Now(), pkgAuth.AccessTokenPayload{
		UserID:   uuid.New(),
		TenantID: tenant,
		Role:     role,
		JTI:      uuid.NewString(),
	})
	require.NoError(t, err)
	return token
}

func newTestRouter(cfg *config.Config, cat catalog.Service) http.Handler {
	reg := prometheus.NewRegistry()
	return NewRouter(Dependencies{
		Config:         cfg,
		Session:        stubSessions{},
		Pingers:        map[string]controllers.Pinger{"db": stubPinger{}},
		HTTPMetrics:    metrics.NewHTTPMetrics(reg),
		MetricsHandler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		Catalog:        cat,
		Reports:        stubReports{},
	})
}

func do(h http.Handler, method, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealthAndMetricsArePublic(t *testing.T) {
	h := newTestRouter(testConfig(), &stubCatalog{})

	assert.Equal(t, http.StatusOK, do(h, http.MethodGet, "/health/live", "").Code)
	assert.Equal(t, http.StatusOK, do(h, http.MethodGet, "/health/ready", "").Code)

	rec := do(h, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "loggas_http_requests_total"))
}

func TestReadinessFailsWhenDependencyDown(t *testing.T) {
	cfg := testConfig()
	h := NewRouter(Dependencies{
		Config:  cfg,
		Pingers: map[string]controllers.Pinger{"redis": stubPinger{err: assert.AnError}},
	})
	assert.Equal(t, http.StatusServiceUnavailable, do(h, http.MethodGet, "/health/ready", "").Code)
}

func TestAdminRoutesRequireTenantAdmin(t *testing.T) {
	cfg := testConfig()
	cat := &stubCatalog{}
	h := newTestRouter(cfg, cat)
	tenant := uuid.New()

	assert.Equal(t, http.StatusUnauthorized, do(h, http.MethodGet, "/api/v1/products", "").Code)
	assert.Equal(t, http.StatusForbidden, do(h, http.MethodGet, "/api/v1/products", mint(t, cfg, enums.UserRoleCustomer, nil)).Code)
	assert.Equal(t, http.StatusForbidden, do(h, http.MethodGet, "/api/v1/products", mint(t, cfg, enums.UserRoleAdmin, nil)).Code)

	rec := do(h, http.MethodGet, "/api/v1/products", mint(t, cfg, enums.UserRoleAdmin, &tenant))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, tenant, cat.lastTenant)

	var body struct {
		Data catalog.ListResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Data.Products, 1)
	assert.Equal(t, "Gás P13", body.Data.Products[0].Name)
}

func TestSuperAdminMetrics(t *testing.T) {
	cfg := testConfig()
	h := newTestRouter(cfg, &stubCatalog{})
	tenant := uuid.New()

	assert.Equal(t, http.StatusForbidden, do(h, http.MethodGet, "/api/admin/metrics", mint(t, cfg, enums.UserRoleAdmin, &tenant)).Code)

	rec := do(h, http.MethodGet, "/api/admin/metrics", mint(t, cfg, enums.UserRoleSuperAdmin, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"total_distributors":3`)
}

func TestMutatingAdminRouteNeedsIdempotencyKeyWhenStoreConfigured(t *testing.T) {
	cfg := testConfig()
	h := NewRouter(Dependencies{
		Config:  cfg,
		Session: stubSessions{},
		Store:   newMemoryStore(),
		Catalog: &stubCatalog{},
	})
	tenant := uuid.New()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/products", strings.NewReader(`{}`))
	req.Header.Set("Authorization", "Bearer "+mint(t, cfg, enums.UserRoleAdmin, &tenant))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Idempotency-Key")
}

type memoryStore struct {
	data map[string]string
}

func newMemoryStore() *memoryStore {
	return &memoryStore{data: map[string]string{}}
}

func (m *memoryStore) Get(_ context.Context, key string) (string, error) {
	return m.data[key], nil
}

func (m *memoryStore) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	if _, ok := m.data[key]; ok {
		return false, nil
	}
	m.data[key], _ = value.(string)
	return true, nil
}

func (m *memoryStore) Set(_ context.Context, key string, value any, _ time.Duration) error {
	m.data[key], _ = value.(string)
	return nil
}

func (m *memoryStore) IdempotencyKey(scope, id string) string {
	return "idem:" + scope + ":" + id
}

func (m *memoryStore) Del(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}

func (m *memoryStore) IncrWithTTL(context.Context, string, time.Duration) (int64, error) {
	return 1, nil
}
