package address

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/loggas/loggas-backend/pkg/errors"
	"github.com/loggas/loggas-backend/pkg/maps"
)

type fakePlaces struct {
	autocompleteFn func(ctx context.Context, input, sessionToken string) ([]maps.Prediction, error)
	detailsFn      func(ctx context.Context, placeID string) (*maps.Place, error)
}

func (f *fakePlaces) Autocomplete(ctx context.Context, input, sessionToken string) ([]maps.Prediction, error) {
	return f.autocompleteFn(ctx, input, sessionToken)
}

func (f *fakePlaces) PlaceDetails(ctx context.Context, placeID string) (*maps.Place, error) {
	return f.detailsFn(ctx, placeID)
}

func centroPlace() *maps.Place {
	return &maps.Place{
		PlaceID:          "p1",
		FormattedAddress: "Rua das Flores, 120 - Centro, Sao Paulo - SP, 01000-000, Brasil",
		Latitude:         -23.55,
		Longitude:        -46.63,
		Components: []maps.Component{
			{LongName: "120", Types: []string{"street_number"}},
			{LongName: "Rua das Flores", Types: []string{"route"}},
			{LongName: "Apto 12", Types: []string{"subpremise"}},
			{LongName: "Centro", Types: []string{"sublocality_level_1", "sublocality"}},
			{LongName: "Sao Paulo", Types: []string{"administrative_area_level_2"}},
			{LongName: "Sao Paulo", ShortName: "SP", Types: []string{"administrative_area_level_1"}},
			{LongName: "01000-000", Types: []string{"postal_code"}},
		},
	}
}

func TestNewServiceRequiresClient(t *testing.T) {
	_, err := NewService(nil)
	require.Error(t, err)
}

func TestResolveBuildsDeliveryAddress(t *testing.T) {
	svc, err := NewService(&fakePlaces{detailsFn: func(_ context.Context, placeID string) (*maps.Place, error) {
		assert.Equal(t, "p1", placeID)
		return centroPlace(), nil
	}})
	require.NoError(t, err)

	addr, err := svc.Resolve(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, "Rua das Flores", addr.Street)
	assert.Equal(t, "120", addr.Number)
	assert.Equal(t, "Centro", addr.Neighborhood)
	assert.Equal(t, "Sao Paulo", addr.City)
	assert.Equal(t, "SP", addr.State)
	assert.Equal(t, "01000-000", addr.PostalCode)
	assert.Equal(t, "Rua das Flores, 120 Apto 12 - Centro, Sao Paulo/SP", addr.Line)
}

func TestResolveRejectsImprecisePlace(t *testing.T) {
	place := centroPlace()
	place.Components = []maps.Component{
		{LongName: "Rua das Flores", Types: []string{"route"}},
	}
	svc, err := NewService(&fakePlaces{detailsFn: func(context.Context, string) (*maps.Place, error) {
		return place, nil
	}})
	require.NoError(t, err)

	_, err = svc.Resolve(context.Background(), "p1")
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())
}

func TestResolveRequiresLocation(t *testing.T) {
	place := centroPlace()
	place.Latitude, place.Longitude = 0, 0
	svc, err := NewService(&fakePlaces{detailsFn: func(context.Context, string) (*maps.Place, error) {
		return place, nil
	}})
	require.NoError(t, err)

	_, err = svc.Resolve(context.Background(), "p1")
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeDependency, pkgerrors.As(err).Code())
}

func TestSuggestPassesSessionToken(t *testing.T) {
	svc, err := NewService(&fakePlaces{autocompleteFn: func(_ context.Context, input, token string) ([]maps.Prediction, error) {
		assert.Equal(t, "rua das", input)
		assert.Equal(t, "s1", token)
		return []maps.Prediction{{PlaceID: "p1", Description: "Rua das Flores"}}, nil
	}})
	require.NoError(t, err)

	out, err := svc.Suggest(context.Background(), "rua das", "s1")
	require.NoError(t, err)
	assert.Equal(t, []Suggestion{{PlaceID: "p1", Description: "Rua das Flores"}}, out)
}
