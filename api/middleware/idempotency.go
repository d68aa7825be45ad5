package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/loggas/loggas-backend/api/responses"
	pkgerrors "github.com/loggas/loggas-backend/pkg/errors"
	"github.com/loggas/loggas-backend/pkg/logger"
	pkgredis "github.com/loggas/loggas-backend/pkg/redis"
)

const (
	IdempotencyKeyHeader = "Idempotency-Key"

	defaultIdempotencyTTL  = 24 * time.Hour
	criticalIdempotencyTTL = 7 * 24 * time.Hour
	// pendingLease bounds how long a crashed request can block its key.
	pendingLease = time.Minute
	maxKeyLength = 255
)

// idempotentRoutes lists the mutations that require an Idempotency-Key,
// as "METHOD /path/{param}". A zero TTL uses the configured default.
var idempotentRoutes = map[string]time.Duration{
	"POST /api/v1/auth/register":                0,
	"POST /api/v1/auth/register/customer":       0,
	"POST /api/v1/products":                     0,
	"POST /api/v1/products/{productId}/restock": 0,
	"POST /api/v1/ledger":                       0,
	"POST /api/v1/customers":                    0,
	"POST /api/v1/drivers":                      0,
	"POST /api/v1/routes":                       0,
	"POST /api/v1/sales/{saleId}/status":        0,
	"POST /api/v1/billing/subscribe":            0,
	"POST /api/v1/billing/cancel":               0,
	"POST /api/v1/sales":                        criticalIdempotencyTTL,
	"POST /api/public/stores/{slug}/orders":     criticalIdempotencyTTL,
}

// storedResponse is the Redis value for a key. A record without Status is
// the pending marker written before the handler runs.
type storedResponse struct {
	Fingerprint string `json:"fp"`
	Status      int    `json:"status,omitempty"`
	ContentType string `json:"ct,omitempty"`
	Body        []byte `json:"body,omitempty"`
}

func (s storedResponse) pending() bool { return s.Status == 0 }

// Idempotency makes the listed mutations safe to retry. The first request
// with a key runs and its response is stored; repeats with the same body get
// the stored response, repeats with another body get 409, and repeats that
// arrive while the first is still running get 409 as well. 5xx responses
// are not stored so the client can retry them.
func Idempotency(store pkgredis.IdempotencyStore, defaultTTL time.Duration, logg *logger.Logger) func(http.Handler) http.Handler {
	if defaultTTL <= 0 {
		defaultTTL = defaultIdempotencyTTL
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ttl, ok := routeTTL(r.Method, r.URL.Path)
			if !ok || store == nil {
				next.ServeHTTP(w, r)
				return
			}
			if ttl == 0 {
				ttl = defaultTTL
			}
			ctx := r.Context()
			fail := func(err error) { responses.WriteError(ctx, logg, w, err) }

			clientKey := strings.TrimSpace(r.Header.Get(IdempotencyKeyHeader))
			switch {
			case clientKey == "":
				fail(pkgerrors.New(pkgerrors.CodeValidation, "Idempotency-Key header required"))
				return
			case len(clientKey) > maxKeyLength:
				fail(pkgerrors.New(pkgerrors.CodeValidation, "Idempotency-Key is too long"))
				return
			}

			body, err := io.ReadAll(r.Body)
			if err != nil {
				fail(pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request body"))
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			key := store.IdempotencyKey(requestScope(r), clientKey)
			fp := fingerprint(body)

			prior, err := lookup(ctx, store, key)
			if err != nil {
				fail(pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check idempotency"))
				return
			}
			if prior == nil {
				claimed, err := claim(ctx, store, key, fp, min(pendingLease, ttl))
				if err != nil {
					fail(pkgerrors.Wrap(pkgerrors.CodeDependency, err, "claim idempotency key"))
					return
				}
				if claimed {
					capture := &responseCapture{ResponseWriter: w}
					next.ServeHTTP(capture, r)
					finish(ctx, store, key, fp, capture, ttl, logg)
					return
				}
				// lost the race to a concurrent request with the same key
				if prior, err = lookup(ctx, store, key); err != nil || prior == nil {
					prior = &storedResponse{Fingerprint: fp}
				}
			}

			switch {
			case prior.Fingerprint != fp:
				fail(pkgerrors.New(pkgerrors.CodeIdempotency, "idempotency key reused with different request body"))
			case prior.pending():
				fail(pkgerrors.New(pkgerrors.CodeConflict, "a request with this idempotency key is still in progress"))
			default:
				replay(w, *prior)
			}
		})
	}
}

func lookup(ctx context.Context, store pkgredis.IdempotencyStore, key string) (*storedResponse, error) {
	raw, err := store.Get(ctx, key)
	if errors.Is(err, redis.Nil) || (err == nil && raw == "") {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var rec storedResponse
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

func claim(ctx context.Context, store pkgredis.IdempotencyStore, key, fp string, lease time.Duration) (bool, error) {
	marker, err := json.Marshal(storedResponse{Fingerprint: fp})
	if err != nil {
		return false, err
	}
	return store.SetNX(ctx, key, string(marker), lease)
}

// finish stores the captured response, or frees the key after a server
// error. The request context may already be canceled, so Redis writes use
// a detached one.
func finish(ctx context.Context, store pkgredis.IdempotencyStore, key, fp string, c *responseCapture, ttl time.Duration, logg *logger.Logger) {
	ctx = context.WithoutCancel(ctx)
	status := c.statusOrOK()
	if status >= http.StatusInternalServerError {
		if err := store.Del(ctx, key); err != nil {
			logError(ctx, logg, "release idempotency key", err)
		}
		return
	}
	payload, err := json.Marshal(storedResponse{
		Fingerprint: fp,
		Status:      status,
		ContentType: c.Header().Get("Content-Type"),
		Body:        c.body.Bytes(),
	})
	if err == nil {
		err = store.Set(ctx, key, string(payload), ttl)
	}
	if err != nil {
		logError(ctx, logg, "persist idempotency record", err)
	}
}

func replay(w http.ResponseWriter, rec storedResponse) {
	if rec.ContentType != "" {
		w.Header().Set("Content-Type", rec.ContentType)
	}
	w.Header().Set("Idempotent-Replayed", "true")
	w.WriteHeader(rec.Status)
	_, _ = w.Write(rec.Body)
}

// requestScope keeps keys from colliding across users, tenants and routes.
func requestScope(r *http.Request) string {
	ctx := r.Context()
	return strings.Join([]string{UserIDFromContext(ctx), TenantIDFromContext(ctx), r.Method, r.URL.Path}, "|")
}

func fingerprint(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}

func routeTTL(method, path string) (time.Duration, bool) {
	if path == "" {
		return 0, false
	}
	for route, ttl := range idempotentRoutes {
		routeMethod, template, _ := strings.Cut(route, " ")
		if routeMethod == method && matchTemplate(template, path) {
			return ttl, true
		}
	}
	return 0, false
}

// matchTemplate compares path segments; a {name} segment matches any
// non-empty value. Trailing slashes are ignored.
func matchTemplate(template, path string) bool {
	want := strings.Split(strings.Trim(template, "/"), "/")
	got := strings.Split(strings.Trim(path, "/"), "/")
	if len(got) != len(want) {
		return false
	}
	for i, seg := range want {
		if strings.HasPrefix(seg, "{") && strings.HasSuffix(seg, "}") {
			if got[i] == "" {
				return false
			}
			continue
		}
		if seg != got[i] {
			return false
		}
	}
	return true
}

type responseCapture struct {
	http.ResponseWriter
	body   bytes.Buffer
	status int
}

func (c *responseCapture) WriteHeader(code int) {
	if c.status == 0 {
		c.status = code
	}
	c.ResponseWriter.WriteHeader(code)
}

func (c *responseCapture) Write(b []byte) (int, error) {
	if c.status == 0 {
		c.status = http.StatusOK
	}
	c.body.Write(b)
	return c.ResponseWriter.Write(b)
}

func (c *responseCapture) statusOrOK() int {
	if c.status == 0 {
		return http.StatusOK
	}
	return c.status
}

func logError(ctx context.Context, logg *logger.Logger, msg string, err error) {
	if logg == nil || err == nil {
		return
	}
	logg.Error(ctx, msg, err)
}
