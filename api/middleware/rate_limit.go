package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"
	"unicode"

	"github.com/loggas/loggas-backend/api/responses"
	"github.com/loggas/loggas-backend/pkg/config"
	pkgerrors "github.com/loggas/loggas-backend/pkg/errors"
	"github.com/loggas/loggas-backend/pkg/logger"
)

const maxThrottledBody = 64 << 10

type counterStore interface {
	IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error)
}

// ThrottlePolicy caps requests per client IP and per identity read from a
// top-level JSON body field within a fixed window.
type ThrottlePolicy struct {
	Name       string
	Window     time.Duration
	IPLimit    int
	Field      string
	FieldLimit int
	normalize  func(string) string
}

func LoginThrottle(cfg config.RateLimitConfig) ThrottlePolicy {
	return ThrottlePolicy{
		Name: "login", Window: cfg.LoginWindow,
		IPLimit: cfg.LoginIPLimit, Field: "email", FieldLimit: cfg.LoginEmailLimit,
		normalize: normalizeEmail,
	}
}

func RegisterThrottle(cfg config.RateLimitConfig) ThrottlePolicy {
	return ThrottlePolicy{
		Name: "register", Window: cfg.RegisterWindow,
		IPLimit: cfg.RegisterIPLimit, Field: "email", FieldLimit: cfg.RegisterEmailLimit,
		normalize: normalizeEmail,
	}
}

// CheckoutThrottle keeps guests from flooding a distributor with fake
// storefront orders under one phone number.
func CheckoutThrottle(cfg config.RateLimitConfig) ThrottlePolicy {
	return ThrottlePolicy{
		Name: "checkout", Window: cfg.CheckoutWindow,
		IPLimit: cfg.CheckoutIPLimit, Field: "phone", FieldLimit: cfg.CheckoutPhoneLimit,
		normalize: digitsOnly,
	}
}

func (p ThrottlePolicy) active() bool {
	return p.Window > 0 && (p.IPLimit > 0 || (p.Field != "" && p.FieldLimit > 0))
}

func (p ThrottlePolicy) key(dimension, value string) string {
	return fmt.Sprintf("rl:%s:%s:%s", p.Name, dimension, value)
}

// Throttle rejects requests over the policy with 429 RATE_LIMITED. Counter
// store failures answer 503 rather than letting traffic through unmetered.
func Throttle(policy ThrottlePolicy, store counterStore, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if store == nil || !policy.active() {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			if policy.IPLimit > 0 {
				if ip := clientIP(r); ip != "" {
					if !admit(ctx, w, logg, store, policy, "ip", ip, policy.IPLimit) {
						return
					}
				}
			}

			if policy.Field != "" && policy.FieldLimit > 0 {
				body, err := io.ReadAll(io.LimitReader(r.Body, maxThrottledBody))
				if err != nil {
					responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "unreadable request body"))
					return
				}
				r.Body = io.NopCloser(bytes.NewReader(body))

				if value := policy.identity(body); value != "" {
					if !admit(ctx, w, logg, store, policy, policy.Field, hashValue(value), policy.FieldLimit) {
						return
					}
				}
			}

			next.ServeHTTP(w, r)
		})
	}
}

func (p ThrottlePolicy) identity(body []byte) string {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return ""
	}
	var raw string
	if err := json.Unmarshal(fields[p.Field], &raw); err != nil {
		return ""
	}
	if p.normalize != nil {
		return p.normalize(raw)
	}
	return strings.TrimSpace(raw)
}

func admit(ctx context.Context, w http.ResponseWriter, logg *logger.Logger, store counterStore, policy ThrottlePolicy, dimension, value string, limit int) bool {
	count, err := store.IncrWithTTL(ctx, policy.key(dimension, value), policy.Window)
	if err != nil {
		responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rate limiter unavailable"))
		return false
	}
	if count <= int64(limit) {
		return true
	}
	if logg != nil {
		logg.Warn(logg.WithFields(ctx, map[string]any{
			"policy":         policy.Name,
			"dimension":      dimension,
			"attempts":       count,
			"limit":          limit,
			"window_seconds": int(policy.Window.Seconds()),
		}), "rate_limit.blocked")
	}
	w.Header().Set("Retry-After", fmt.Sprintf("%d", int(policy.Window.Seconds())))
	responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeRateLimit, "too many attempts, try again later"))
	return false
}

func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil && host != "" {
		return host
	}
	return r.RemoteAddr
}

func normalizeEmail(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}

func digitsOnly(value string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) {
			return r
		}
		return -1
	}, value)
}

func hashValue(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:8])
}
