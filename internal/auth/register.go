package auth

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"github.com/loggas/loggas-backend/internal/tenants"
	"github.com/loggas/loggas-backend/internal/users"
	"github.com/loggas/loggas-backend/pkg/config"
	"github.com/loggas/loggas-backend/pkg/db"
	"github.com/loggas/loggas-backend/pkg/enums"
	pkgerrors "github.com/loggas/loggas-backend/pkg/errors"
	"github.com/loggas/loggas-backend/pkg/security"
)

const emailTakenMessage = "email already registered"

// RegisterService handles account onboarding.
type RegisterService interface {
	RegisterAdmin(ctx context.Context, req RegisterAdminRequest) (*users.Profile, error)
	RegisterCustomer(ctx context.Context, req RegisterCustomerRequest) (*users.Profile, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// RegisterServiceParams packages the dependencies for the registration flow.
type RegisterServiceParams struct {
	DB             txRunner
	PasswordConfig config.PasswordConfig
}

type registerService struct {
	tx          txRunner
	passwordCfg config.PasswordConfig
}

// NewRegisterService builds a registration service with the provided dependencies.
func NewRegisterService(params RegisterServiceParams) (RegisterService, error) {
	if params.DB == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "database client required")
	}
	return &registerService{
		tx:          params.DB,
		passwordCfg: params.PasswordConfig,
	}, nil
}

// RegisterAdmin creates the distributor tenant and its admin user in one transaction.
func (s *registerService) RegisterAdmin(ctx context.Context, req RegisterAdminRequest) (*users.Profile, error) {
	email, hash, err := s.prepare(req.Email, req.Name, req.Password)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.CompanyName) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "company name is required")
	}

	var created *users.Profile
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		userRepo := users.NewRepository(tx)
		if err := ensureEmailFree(ctx, userRepo, email); err != nil {
			return err
		}

		tenant, err := tenants.Create(ctx, tenants.NewRepository(tx), tenants.CreateInput{
			CompanyName: req.CompanyName,
			Phone:       req.Phone,
			Address:     req.Address,
		})
		if err != nil {
			return err
		}

		user, err := userRepo.Create(ctx, users.NewUser{
			Email:        email,
			PasswordHash: hash,
			Name:         strings.TrimSpace(req.Name),
			Phone:        req.Phone,
			Address:      req.Address,
			Role:         enums.UserRoleAdmin,
			TenantID:     &tenant.ID,
		})
		if err != nil {
			return mapCreateUserError(err)
		}
		created = users.ProfileOf(user)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (s *registerService) RegisterCustomer(ctx context.Context, req RegisterCustomerRequest) (*users.Profile, error) {
	email, hash, err := s.prepare(req.Email, req.Name, req.Password)
	if err != nil {
		return nil, err
	}

	var created *users.Profile
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		userRepo := users.NewRepository(tx)
		if err := ensureEmailFree(ctx, userRepo, email); err != nil {
			return err
		}
		user, err := userRepo.Create(ctx, users.NewUser{
			Email:        email,
			PasswordHash: hash,
			Name:         strings.TrimSpace(req.Name),
			Phone:        req.Phone,
			Address:      req.Address,
			Role:         enums.UserRoleCustomer,
		})
		if err != nil {
			return mapCreateUserError(err)
		}
		created = users.ProfileOf(user)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (s *registerService) prepare(rawEmail, name, password string) (string, string, error) {
	email := strings.ToLower(strings.TrimSpace(rawEmail))
	if email == "" {
		return "", "", pkgerrors.New(pkgerrors.CodeValidation, "email is required")
	}
	if strings.TrimSpace(name) == "" {
		return "", "", pkgerrors.New(pkgerrors.CodeValidation, "name is required")
	}
	if err := security.ValidatePassword(password); err != nil {
		return "", "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, err.Error())
	}
	hash, err := security.HashPassword(password, s.passwordCfg)
	if err != nil {
		return "", "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash password")
	}
	return email, hash, nil
}

func ensureEmailFree(ctx context.Context, repo *users.Repository, email string) error {
	taken, err := repo.EmailTaken(ctx, email)
	switch {
	case err != nil:
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check user email")
	case taken:
		return pkgerrors.New(pkgerrors.CodeConflict, emailTakenMessage)
	}
	return nil
}

func mapCreateUserError(err error) error {
	if pkgerrors.As(err) != nil {
		return err
	}
	if db.IsUniqueViolation(err, "users_email_key") {
		return pkgerrors.New(pkgerrors.CodeConflict, emailTakenMessage)
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create user")
}
