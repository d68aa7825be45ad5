package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/loggas/loggas-backend/api/responses"
	pkgAuth "github.com/loggas/loggas-backend/pkg/auth"
	"github.com/loggas/loggas-backend/pkg/auth/session"
	"github.com/loggas/loggas-backend/pkg/config"
	pkgerrors "github.com/loggas/loggas-backend/pkg/errors"
	"github.com/loggas/loggas-backend/pkg/logger"
)

// BearerToken reads "Authorization: Bearer <jwt>". A bare token without the
// scheme is accepted for older mobile builds; any other scheme is not.
func BearerToken(r *http.Request) (string, error) {
	raw := strings.TrimSpace(r.Header.Get("Authorization"))
	if raw == "" {
		return "", pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials")
	}
	scheme, token, found := strings.Cut(raw, " ")
	switch {
	case !found && strings.EqualFold(raw, "bearer"):
		return "", pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials")
	case !found:
		token = raw
	case !strings.EqualFold(scheme, "bearer"):
		return "", pkgerrors.New(pkgerrors.CodeUnauthorized, "unsupported authorization scheme")
	}
	if token = strings.TrimSpace(token); token == "" {
		return "", pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials")
	}
	return token, nil
}

// Auth admits requests carrying a valid access token whose session is still
// live, and puts the caller's user, role and tenant on the context.
func Auth(cfg config.JWTConfig, sessions session.AccessSessionChecker, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			token, err := BearerToken(r)
			if err != nil {
				responses.WriteError(ctx, logg, w, err)
				return
			}

			claims, err := pkgAuth.ParseAccessToken(cfg, token)
			if err != nil {
				msg := "invalid token"
				if errors.Is(err, jwt.ErrTokenExpired) {
					msg = "token expired"
				}
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, msg))
				return
			}

			if sessions != nil {
				live, err := sessions.HasSession(ctx, claims.AccessID())
				if err != nil {
					responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "validate session"))
					return
				}
				if !live {
					responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "session revoked"))
					return
				}
			}

			userID, role := claims.UserID.String(), string(claims.Role)
			ctx = WithRole(WithUserID(ctx, userID), role)
			if logg != nil {
				ctx = logg.WithActorRole(logg.WithUserID(ctx, userID), role)
			}
			if claims.TenantID != nil {
				tenantID := claims.TenantID.String()
				ctx = WithTenantID(ctx, tenantID)
				if logg != nil {
					ctx = logg.WithTenantID(ctx, tenantID)
				}
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
