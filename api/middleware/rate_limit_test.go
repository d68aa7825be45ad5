package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loggas/loggas-backend/pkg/config"
	pkgerrors "github.com/loggas/loggas-backend/pkg/errors"
)

type memoryCounters struct {
	mu     sync.Mutex
	counts map[string]int64
	err    error
}

func newMemoryCounters() *memoryCounters {
	return &memoryCounters{counts: map[string]int64{}}
}

func (m *memoryCounters) IncrWithTTL(_ context.Context, key string, _ time.Duration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return 0, m.err
	}
	m.counts[key]++
	return m.counts[key], nil
}

func throttled(t *testing.T, policy ThrottlePolicy, store counterStore) http.Handler {
	t.Helper()
	return Throttle(policy, store, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		w.WriteHeader(http.StatusOK)
	}))
}

func post(h http.Handler, path, body, remote string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.RemoteAddr = remote
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var payload struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	return payload.Error.Code
}

func TestThrottleLoginEmailLimit(t *testing.T) {
	t.Parallel()
	cfg := config.RateLimitConfig{LoginWindow: time.Minute, LoginEmailLimit: 2}
	h := throttled(t, LoginThrottle(cfg), newMemoryCounters())

	for i := 0; i < 2; i++ {
		rec := post(h, "/api/v1/auth/login", `{"email":"Admin@Gas.com ","password":"x"}`, "1.2.3.4:1")
		require.Equal(t, http.StatusOK, rec.Code)
	}
	rec := post(h, "/api/v1/auth/login", `{"email":"admin@gas.com","password":"x"}`, "9.9.9.9:1")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, string(pkgerrors.CodeRateLimit), errorCode(t, rec))
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
}

func TestThrottleRegisterIPLimit(t *testing.T) {
	t.Parallel()
	cfg := config.RateLimitConfig{RegisterWindow: time.Minute, RegisterIPLimit: 1}
	h := throttled(t, RegisterThrottle(cfg), newMemoryCounters())

	require.Equal(t, http.StatusOK, post(h, "/api/v1/auth/register", `{"email":"a@b.com"}`, "5.6.7.8:1").Code)
	assert.Equal(t, http.StatusTooManyRequests, post(h, "/api/v1/auth/register", `{"email":"c@d.com"}`, "5.6.7.8:2").Code)
	assert.Equal(t, http.StatusOK, post(h, "/api/v1/auth/register", `{"email":"c@d.com"}`, "5.6.7.9:2").Code)
}

func TestThrottleCheckoutCountsPhoneDigits(t *testing.T) {
	t.Parallel()
	cfg := config.RateLimitConfig{CheckoutWindow: 10 * time.Minute, CheckoutPhoneLimit: 1}
	h := throttled(t, CheckoutThrottle(cfg), newMemoryCounters())

	require.Equal(t, http.StatusOK, post(h, "/api/public/stores/gas/orders", `{"phone":"(11) 98888-7777","lines":[]}`, "1.1.1.1:1").Code)
	rec := post(h, "/api/public/stores/gas/orders", `{"phone":"11988887777","lines":[]}`, "2.2.2.2:1")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	// signed-in shoppers send no phone and are only counted per IP
	assert.Equal(t, http.StatusOK, post(h, "/api/public/stores/gas/orders", `{"lines":[]}`, "2.2.2.2:1").Code)
}

func TestThrottleStoreFailure(t *testing.T) {
	t.Parallel()
	store := newMemoryCounters()
	store.err = errors.New("redis down")
	cfg := config.RateLimitConfig{LoginWindow: time.Minute, LoginIPLimit: 5}
	h := throttled(t, LoginThrottle(cfg), store)

	rec := post(h, "/api/v1/auth/login", `{}`, "1.2.3.4:1")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, string(pkgerrors.CodeDependency), errorCode(t, rec))
}

func TestThrottleDisabledPassesThrough(t *testing.T) {
	t.Parallel()
	h := throttled(t, LoginThrottle(config.RateLimitConfig{}), newMemoryCounters())
	for i := 0; i < 10; i++ {
		require.Equal(t, http.StatusOK, post(h, "/api/v1/auth/login", `{"email":"a@b.com"}`, "1.2.3.4:1").Code)
	}
}

func TestClientIPPrefersForwardedHeader(t *testing.T) {
	t.Parallel()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:443"
	assert.Equal(t, "10.0.0.1", clientIP(req))

	req.Header.Set("X-Forwarded-For", " 200.1.1.1 , 10.0.0.1")
	assert.Equal(t, "200.1.1.1", clientIP(req))
}
