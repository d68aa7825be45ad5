package auth

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/loggas/loggas-backend/internal/users"
	pkgAuth "github.com/loggas/loggas-backend/pkg/auth"
	"github.com/loggas/loggas-backend/pkg/auth/session"
	"github.com/loggas/loggas-backend/pkg/config"
	"github.com/loggas/loggas-backend/pkg/db/models"
	"github.com/loggas/loggas-backend/pkg/enums"
	pkgerrors "github.com/loggas/loggas-backend/pkg/errors"
	"github.com/loggas/loggas-backend/pkg/logger"
	"github.com/loggas/loggas-backend/pkg/security"
)

const invalidCredentialsMessage = "invalid credentials"

func errInvalidCredentials() error {
	return pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
}

func errInvalidRefresh() error {
	return pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid refresh token")
}

type Service interface {
	Login(ctx context.Context, req LoginRequest) (*LoginResponse, error)
	Refresh(ctx context.Context, req RefreshRequest) (*LoginResponse, error)
	Logout(ctx context.Context, accessID string) error
}

type userRepository interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error
	UpdatePasswordHash(ctx context.Context, id uuid.UUID, hash string) error
}

type tenantLookup interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Tenant, error)
}

type sessionManager interface {
	Generate(ctx context.Context, accessID string, userID uuid.UUID) (string, error)
	Rotate(ctx context.Context, oldAccessID, provided string) (*session.Rotation, error)
	Revoke(ctx context.Context, accessID string) error
}

type ServiceParams struct {
	UserRepo       userRepository
	TenantRepo     tenantLookup
	SessionManager sessionManager
	JWTConfig      config.JWTConfig
	PasswordConfig config.PasswordConfig
	Logger         *logger.Logger
}

type service struct {
	users       userRepository
	tenants     tenantLookup
	session     sessionManager
	jwtCfg      config.JWTConfig
	passwordCfg config.PasswordConfig
	logg        *logger.Logger
	now         func() time.Time
	// decoy is verified against when the email is unknown so both paths
	// cost one argon2 derivation.
	decoy func() string
}

func NewService(params ServiceParams) (Service, error) {
	switch {
	case params.UserRepo == nil:
		return nil, errors.New("user repository is required")
	case params.TenantRepo == nil:
		return nil, errors.New("tenant repository is required")
	case params.SessionManager == nil:
		return nil, errors.New("session manager is required")
	}
	return &service{
		users:       params.UserRepo,
		tenants:     params.TenantRepo,
		session:     params.SessionManager,
		jwtCfg:      params.JWTConfig,
		passwordCfg: params.PasswordConfig,
		logg:        params.Logger,
		now:         func() time.Time { return time.Now().UTC() },
		decoy: sync.OnceValue(func() string {
			hash, _ := security.HashPassword(uuid.NewString(), params.PasswordConfig)
			return hash
		}),
	}, nil
}

func (s *service) Login(ctx context.Context, req LoginRequest) (*LoginResponse, error) {
	user, err := s.authenticate(ctx, req.Email, req.Password)
	if err != nil {
		return nil, err
	}

	now := s.now()
	if err := s.users.UpdateLastLogin(ctx, user.ID, now); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update last login")
	}
	user.LastLoginAt = &now

	accessID := session.NewAccessID()
	refreshToken, err := s.session.Generate(ctx, accessID, user.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "store refresh token")
	}
	return s.issue(ctx, user, accessID, refreshToken, now)
}

// Refresh accepts an expired access token as proof of which session to
// rotate; the refresh token is what authenticates.
func (s *service) Refresh(ctx context.Context, req RefreshRequest) (*LoginResponse, error) {
	token := strings.TrimSpace(req.AccessToken)
	if token == "" || strings.TrimSpace(req.RefreshToken) == "" {
		return nil, errInvalidRefresh()
	}
	claims, err := pkgAuth.ParseAccessTokenAllowExpired(s.jwtCfg, token)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid access token")
	}

	rotation, err := s.session.Rotate(ctx, claims.AccessID(), req.RefreshToken)
	switch {
	case errors.Is(err, session.ErrInvalidRefreshToken):
		return nil, errInvalidRefresh()
	case err != nil:
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rotate refresh token")
	case rotation.UserID != claims.UserID:
		s.revokeQuietly(ctx, rotation.AccessID)
		return nil, errInvalidRefresh()
	}

	user, err := s.users.FindByID(ctx, rotation.UserID)
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		s.revokeQuietly(ctx, rotation.AccessID)
		return nil, errInvalidRefresh()
	case err != nil:
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load user")
	case !user.IsActive:
		s.revokeQuietly(ctx, rotation.AccessID)
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "account disabled")
	}
	return s.issue(ctx, user, rotation.AccessID, rotation.RefreshToken, s.now())
}

func (s *service) Logout(ctx context.Context, accessID string) error {
	if strings.TrimSpace(accessID) == "" {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "missing session")
	}
	if err := s.session.Revoke(ctx, accessID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "revoke session")
	}
	return nil
}

func (s *service) revokeQuietly(ctx context.Context, accessID string) {
	if err := s.session.Revoke(ctx, accessID); err != nil && s.logg != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "revoke rotated session failed")
	}
}

// issue mints the access token. Admin tokens carry their tenant; an admin
// without one cannot sign in.
func (s *service) issue(ctx context.Context, user *models.User, accessID, refreshToken string, now time.Time) (*LoginResponse, error) {
	resp := &LoginResponse{RefreshToken: refreshToken, User: users.ProfileOf(user)}
	payload := pkgAuth.AccessTokenPayload{UserID: user.ID, Role: user.Role, JTI: accessID}

	if user.Role == enums.UserRoleAdmin {
		if user.TenantID == nil {
			return nil, errInvalidCredentials()
		}
		tenant, err := s.tenants.FindByID(ctx, *user.TenantID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load tenant")
		}
		payload.TenantID = &tenant.ID
		resp.Tenant = &TenantSummary{ID: tenant.ID, CompanyName: tenant.CompanyName, Slug: tenant.Slug}
	}

	accessToken, err := pkgAuth.MintAccessToken(s.jwtCfg, now, payload)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint jwt")
	}
	resp.AccessToken = accessToken
	return resp, nil
}

func (s *service) authenticate(ctx context.Context, email, password string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, errInvalidCredentials()
	}
	user, err := s.users.FindByEmail(ctx, email)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		_, _ = security.VerifyPassword(password, s.decoy())
		return nil, errInvalidCredentials()
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup user")
	}

	valid, err := security.VerifyPassword(password, user.PasswordHash)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "verify password")
	}
	if !valid || !user.IsActive || !user.Role.IsValid() {
		return nil, errInvalidCredentials()
	}

	if security.NeedsRehash(user.PasswordHash, s.passwordCfg) {
		s.rehash(ctx, user, password)
	}
	return user, nil
}

// rehash upgrades a hash made with older argon2 parameters. A failure is
// retried on the next login.
func (s *service) rehash(ctx context.Context, user *models.User, password string) {
	hash, err := security.HashPassword(password, s.passwordCfg)
	if err == nil {
		err = s.users.UpdatePasswordHash(ctx, user.ID, hash)
	}
	if err != nil {
		if s.logg != nil {
			s.logg.Warn(s.logg.WithFields(ctx, map[string]any{"user_id": user.ID.String(), "error": err.Error()}), "password rehash failed")
		}
		return
	}
	user.PasswordHash = hash
}
