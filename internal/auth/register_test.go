package auth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loggas/loggas-backend/pkg/config"
	"github.com/loggas/loggas-backend/pkg/db/dbtest"
	"github.com/loggas/loggas-backend/pkg/db/models"
	"github.com/loggas/loggas-backend/pkg/enums"
	pkgerrors "github.com/loggas/loggas-backend/pkg/errors"
	"github.com/loggas/loggas-backend/pkg/security"
)

func TestRegisterAdminCreatesTenant(t *testing.T) {
	client := dbtest.Client(t)
	svc, err := NewRegisterService(RegisterServiceParams{DB: client, PasswordConfig: config.PasswordConfig{}})
	require.NoError(t, err)
	ctx := context.Background()

	dto, err := svc.RegisterAdmin(ctx, RegisterAdminRequest{
		Name:        "Rita",
		Email:       "Rita@AguaPura.com ",
		Password:    "secret-pw",
		CompanyName: "Água Pura",
	})
	require.NoError(t, err)
	assert.Equal(t, "rita@aguapura.com", dto.Email)
	assert.Equal(t, enums.UserRoleAdmin, dto.Role)
	require.NotNil(t, dto.TenantID)

	var tenant models.Tenant
	require.NoError(t, client.DB().First(&tenant, "id = ?", *dto.TenantID).Error)
	assert.Equal(t, "agua-pura", tenant.Slug)

	var user models.User
	require.NoError(t, client.DB().First(&user, "id = ?", dto.ID).Error)
	ok, err := security.VerifyPassword("secret-pw", user.PasswordHash)
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = svc.RegisterAdmin(ctx, RegisterAdminRequest{
		Name:        "Other",
		Email:       "rita@aguapura.com",
		Password:    "secret-pw",
		CompanyName: "Another Co",
	})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeConflict))

	var tenants int64
	require.NoError(t, client.DB().Model(&models.Tenant{}).Count(&tenants).Error)
	assert.Equal(t, int64(1), tenants)
}

func TestRegisterValidation(t *testing.T) {
	client := dbtest.Client(t)
	svc, err := NewRegisterService(RegisterServiceParams{DB: client})
	require.NoError(t, err)
	ctx := context.Background()

	_, err = svc.RegisterAdmin(ctx, RegisterAdminRequest{Name: "Rita", Email: "rita@x.com", Password: "123", CompanyName: "X"})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))

	_, err = svc.RegisterAdmin(ctx, RegisterAdminRequest{Name: "Rita", Email: "rita@x.com", Password: "secret-pw"})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))

	_, err = svc.RegisterCustomer(ctx, RegisterCustomerRequest{Name: " ", Email: "ana@x.com", Password: "secret-pw"})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))
}

func TestRegisterCustomer(t *testing.T) {
	client := dbtest.Client(t)
	svc, err := NewRegisterService(RegisterServiceParams{DB: client})
	require.NoError(t, err)

	phone := "11 99999-0000"
	dto, err := svc.RegisterCustomer(context.Background(), RegisterCustomerRequest{
		Name:     "Ana",
		Email:    "ana@mail.com",
		Password: "secret-pw",
		Phone:    &phone,
	})
	require.NoError(t, err)
	assert.Equal(t, enums.UserRoleCustomer, dto.Role)
	assert.Nil(t, dto.TenantID)
	assert.True(t, dto.IsActive)

	_, err = svc.RegisterCustomer(context.Background(), RegisterCustomerRequest{Name: "Ana", Email: "ana@mail.com", Password: "secret-pw"})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeConflict))
}
