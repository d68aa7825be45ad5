package tenants

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/loggas/loggas-backend/pkg/db/models"
	"github.com/loggas/loggas-backend/pkg/enums"
	pkgerrors "github.com/loggas/loggas-backend/pkg/errors"
	"gorm.io/gorm"
)

const maxSlugAttempts = 5

// Service manages distributor settings and storefront resolution.
type Service interface {
	GetSettings(ctx context.Context, tenantID uuid.UUID) (*models.Tenant, error)
	UpdateSettings(ctx context.Context, tenantID uuid.UUID, input SettingsInput) (*models.Tenant, error)
	ResolveBySlug(ctx context.Context, slug string) (*models.Tenant, error)
}

// SettingsInput carries editable tenant fields. Nil leaves a field unchanged.
type SettingsInput struct {
	CompanyName    *string
	Phone          *string
	Address        *string
	StorefrontOpen *bool
}

type service struct {
	repo *Repository
}

func NewService(repo *Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("tenant repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) GetSettings(ctx context.Context, tenantID uuid.UUID) (*models.Tenant, error) {
	tenant, err := s.repo.FindByID(ctx, tenantID)
	if err != nil {
		return nil, mapLoadError(err)
	}
	return tenant, nil
}

// UpdateSettings edits the tenant profile. The slug stays fixed so shared
// storefront links keep working after a rename.
func (s *service) UpdateSettings(ctx context.Context, tenantID uuid.UUID, input SettingsInput) (*models.Tenant, error) {
	tenant, err := s.repo.FindByID(ctx, tenantID)
	if err != nil {
		return nil, mapLoadError(err)
	}

	if input.CompanyName != nil {
		name := strings.TrimSpace(*input.CompanyName)
		if name == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "company name is required")
		}
		tenant.CompanyName = name
	}
	if input.Phone != nil {
		tenant.Phone = nonEmpty(*input.Phone)
	}
	if input.Address != nil {
		tenant.Address = nonEmpty(*input.Address)
	}
	if input.StorefrontOpen != nil {
		tenant.StorefrontOpen = *input.StorefrontOpen
	}

	if err := s.repo.UpdateProfile(ctx, tenant); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update tenant")
	}
	return s.GetSettings(ctx, tenantID)
}

func (s *service) ResolveBySlug(ctx context.Context, slug string) (*models.Tenant, error) {
	slug = strings.ToLower(strings.TrimSpace(slug))
	if slug == "" {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "store not found")
	}
	tenant, err := s.repo.FindBySlug(ctx, slug)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "store not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "resolve store")
	}
	return tenant, nil
}

// CreateInput describes a new distributor.
type CreateInput struct {
	CompanyName string
	Phone       *string
	Address     *string
}

// Create inserts a tenant on the free plan with a unique slug derived from
// the company name. Callers pass the repository bound to their transaction.
func Create(ctx context.Context, repo *Repository, input CreateInput) (*models.Tenant, error) {
	name := strings.TrimSpace(input.CompanyName)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "company name is required")
	}
	slug, err := uniqueSlug(ctx, repo, name)
	if err != nil {
		return nil, err
	}

	tenant := &models.Tenant{
		CompanyName:        name,
		Slug:               slug,
		Phone:              input.Phone,
		Address:            input.Address,
		StorefrontOpen:     true,
		Plan:               enums.PlanTierFree,
		SubscriptionStatus: enums.SubscriptionStatusActive,
	}
	if err := repo.Create(ctx, tenant); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create tenant")
	}
	return tenant, nil
}

func uniqueSlug(ctx context.Context, repo *Repository, name string) (string, error) {
	base := Slugify(name)
	if base == "" {
		base = "loja"
	}
	candidate := base
	for attempt := 0; attempt < maxSlugAttempts; attempt++ {
		taken, err := repo.SlugTaken(ctx, candidate)
		if err != nil {
			return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check slug")
		}
		if !taken {
			return candidate, nil
		}
		candidate = base + "-" + uuid.NewString()[:6]
	}
	return "", pkgerrors.New(pkgerrors.CodeConflict, "could not allocate a storefront slug")
}

func mapLoadError(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "tenant not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load tenant")
}

func nonEmpty(value string) *string {
	v := strings.TrimSpace(value)
	if v == "" {
		return nil
	}
	return &v
}
