package controllers

import (
	"context"
	"net/http"

	"github.com/loggas/loggas-backend/api/middleware"
	"github.com/loggas/loggas-backend/api/responses"
	"github.com/loggas/loggas-backend/api/validators"
	"github.com/loggas/loggas-backend/internal/auth"
	pkgAuth "github.com/loggas/loggas-backend/pkg/auth"
	"github.com/loggas/loggas-backend/pkg/config"
	pkgerrors "github.com/loggas/loggas-backend/pkg/errors"
	"github.com/loggas/loggas-backend/pkg/logger"
)

// accessTokenHeader mirrors the access token so clients can pick it up
// without parsing the body.
const accessTokenHeader = "X-LG-Token"

func writeSession(w http.ResponseWriter, status int, session *auth.LoginResponse) {
	w.Header().Set(accessTokenHeader, session.AccessToken)
	responses.WriteSuccessStatus(w, status, session)
}

func AuthLogin(svc auth.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, unavailable("auth"))
			return
		}
		var req auth.LoginRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		session, err := svc.Login(ctx, req)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		writeSession(w, http.StatusOK, session)
	}
}

// AuthRefresh takes the refresh token in the body and the (possibly
// expired) access token as bearer.
func AuthRefresh(svc auth.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, unavailable("auth"))
			return
		}
		var req auth.RefreshRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		bearer, err := middleware.BearerToken(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		req.AccessToken = bearer

		session, err := svc.Refresh(ctx, req)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		writeSession(w, http.StatusOK, session)
	}
}

// AuthLogout drops the session behind the bearer token. An expired token
// still identifies its session.
func AuthLogout(svc auth.Service, cfg config.JWTConfig, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, unavailable("auth"))
			return
		}
		bearer, err := middleware.BearerToken(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		claims, err := pkgAuth.ParseAccessTokenAllowExpired(cfg, bearer)
		switch {
		case err != nil:
			err = pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token")
		case claims.AccessID() == "":
			err = pkgerrors.New(pkgerrors.CodeUnauthorized, "missing session id")
		default:
			err = svc.Logout(ctx, claims.AccessID())
		}
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "logged_out"})
	}
}

// AuthRegister onboards a distributor with its first admin and signs the
// admin in.
func AuthRegister(reg auth.RegisterService, svc auth.Service, logg *logger.Logger) http.HandlerFunc {
	return registerAndSignIn(reg, svc, logg, func(ctx context.Context, req auth.RegisterAdminRequest) (auth.LoginRequest, error) {
		_, err := reg.RegisterAdmin(ctx, req)
		return auth.LoginRequest{Email: req.Email, Password: req.Password}, err
	})
}

// AuthRegisterCustomer creates a storefront shopper account.
func AuthRegisterCustomer(reg auth.RegisterService, svc auth.Service, logg *logger.Logger) http.HandlerFunc {
	return registerAndSignIn(reg, svc, logg, func(ctx context.Context, req auth.RegisterCustomerRequest) (auth.LoginRequest, error) {
		_, err := reg.RegisterCustomer(ctx, req)
		return auth.LoginRequest{Email: req.Email, Password: req.Password}, err
	})
}

func registerAndSignIn[T any](reg auth.RegisterService, svc auth.Service, logg *logger.Logger, register func(context.Context, T) (auth.LoginRequest, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if reg == nil || svc == nil {
			responses.WriteError(ctx, logg, w, unavailable("auth"))
			return
		}
		var req T
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		login, err := register(ctx, req)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		session, err := svc.Login(ctx, login)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		writeSession(w, http.StatusCreated, session)
	}
}
