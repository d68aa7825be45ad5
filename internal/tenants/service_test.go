package tenants

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loggas/loggas-backend/pkg/db/dbtest"
	"github.com/loggas/loggas-backend/pkg/enums"
	pkgerrors "github.com/loggas/loggas-backend/pkg/errors"
)

func TestSlugify(t *testing.T) {
	cases := map[string]string{
		"Gás & Água São João":    "gas-agua-sao-joao",
		"  Distribuidora  XPTO ": "distribuidora-xpto",
		"***":                    "",
		"Depósito 24h!":          "deposito-24h",
	}
	for in, want := range cases {
		assert.Equal(t, want, Slugify(in), in)
	}
	assert.LessOrEqual(t, len(Slugify("a very long company name that keeps going and going and going forever")), maxSlugLength)
}

func TestCreateAllocatesUniqueSlugs(t *testing.T) {
	conn := dbtest.Open(t)
	repo := NewRepository(conn)
	ctx := context.Background()

	first, err := Create(ctx, repo, CreateInput{CompanyName: "Gás Bom"})
	require.NoError(t, err)
	assert.Equal(t, "gas-bom", first.Slug)
	assert.Equal(t, enums.PlanTierFree, first.Plan)
	assert.True(t, first.StorefrontOpen)

	second, err := Create(ctx, repo, CreateInput{CompanyName: "Gas Bom"})
	require.NoError(t, err)
	assert.NotEqual(t, first.Slug, second.Slug)
	assert.Contains(t, second.Slug, "gas-bom-")

	_, err = Create(ctx, repo, CreateInput{CompanyName: " "})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))
}

func TestSettingsAndResolve(t *testing.T) {
	conn := dbtest.Open(t)
	repo := NewRepository(conn)
	svc, err := NewService(repo)
	require.NoError(t, err)
	ctx := context.Background()

	tenant, err := Create(ctx, repo, CreateInput{CompanyName: "Água Pura"})
	require.NoError(t, err)

	closed := false
	rename := "Água Pura Ltda"
	updated, err := svc.UpdateSettings(ctx, tenant.ID, SettingsInput{CompanyName: &rename, StorefrontOpen: &closed})
	require.NoError(t, err)
	assert.Equal(t, rename, updated.CompanyName)
	assert.False(t, updated.StorefrontOpen)
	assert.Equal(t, "agua-pura", updated.Slug)

	resolved, err := svc.ResolveBySlug(ctx, " AGUA-PURA ")
	require.NoError(t, err)
	assert.Equal(t, tenant.ID, resolved.ID)
	assert.False(t, resolved.StorefrontOpen)

	_, err = svc.ResolveBySlug(ctx, "missing")
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeNotFound))

	_, err = svc.GetSettings(ctx, uuid.New())
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeNotFound))
}

func TestSubscriptionBookkeeping(t *testing.T) {
	conn := dbtest.Open(t)
	repo := NewRepository(conn)
	ctx := context.Background()

	tenant, err := Create(ctx, repo, CreateInput{CompanyName: "Pro Gas"})
	require.NoError(t, err)
	require.NoError(t, repo.UpdateSubscription(ctx, tenant.ID, enums.PlanTierPro, enums.SubscriptionStatusCanceled))

	canceled, err := repo.ListCanceledPaid(ctx)
	require.NoError(t, err)
	require.Len(t, canceled, 1)
	assert.Equal(t, tenant.ID, canceled[0].ID)

	counts, err := repo.CountByPlan(ctx)
	require.NoError(t, err)
	require.Len(t, counts, 1)
	assert.Equal(t, enums.PlanTierPro, counts[0].Plan)
	assert.Equal(t, int64(1), counts[0].Count)
}

func TestUpdateSettingsKeepsConcurrentPlanChange(t *testing.T) {
	conn := dbtest.Open(t)
	repo := NewRepository(conn)
	svc, err := NewService(repo)
	require.NoError(t, err)
	ctx := context.Background()

	tenant, err := Create(ctx, repo, CreateInput{CompanyName: "Gás Norte"})
	require.NoError(t, err)

	dbtest.BeforeNextUpdate(t, conn, "tenants", func() {
		require.NoError(t, repo.UpdateSubscription(ctx, tenant.ID, enums.PlanTierPro, enums.SubscriptionStatusActive))
	})

	phone := "11 3000-2000"
	updated, err := svc.UpdateSettings(ctx, tenant.ID, SettingsInput{Phone: &phone})
	require.NoError(t, err)
	require.NotNil(t, updated.Phone)
	assert.Equal(t, phone, *updated.Phone)
	assert.Equal(t, enums.PlanTierPro, updated.Plan, "webhook upgrade landed between read and write")
	assert.Equal(t, "Gás Norte", updated.CompanyName)
}
