package maps

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loggas/loggas-backend/pkg/config"
	pkgerrors "github.com/loggas/loggas-backend/pkg/errors"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func newTestClient(t *testing.T, rt roundTripFunc) *Client {
	t.Helper()
	client, err := NewClient(
		config.MapsConfig{APIKey: "test-key", Region: "br", Language: "pt-BR"},
		WithBaseURL("http://maps.test/v1/"),
		WithHTTPClient(&http.Client{Transport: rt}),
	)
	require.NoError(t, err)
	return client
}

func respond(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(body)),
		Header:     http.Header{},
	}
}

func TestNewClientRequiresKey(t *testing.T) {
	_, err := NewClient(config.MapsConfig{APIKey: "  "})
	require.ErrorIs(t, err, errAPIKeyRequired)
}

func TestAutocompleteBiasesRegionAndLanguage(t *testing.T) {
	var (
		gotURL     string
		gotHeaders http.Header
		gotBody    map[string]any
	)
	client := newTestClient(t, func(req *http.Request) (*http.Response, error) {
		gotURL = req.URL.String()
		gotHeaders = req.Header.Clone()
		raw, err := io.ReadAll(req.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(raw, &gotBody))
		return respond(http.StatusOK, `{"suggestions":[
			{"placePrediction":{"placeId":"p1","text":{"text":"Rua das Flores, 120 - Centro"}}},
			{"placePrediction":{"placeId":"","text":{"text":"dropped"}}}
		]}`), nil
	})

	preds, err := client.Autocomplete(context.Background(), " rua das flores 120 ", "sess-1")
	require.NoError(t, err)

	assert.Equal(t, "http://maps.test/v1/places:autocomplete", gotURL)
	assert.Equal(t, "test-key", gotHeaders.Get("X-Goog-Api-Key"))
	assert.Equal(t, autocompleteFieldMask, gotHeaders.Get("X-Goog-FieldMask"))
	assert.Equal(t, "rua das flores 120", gotBody["input"])
	assert.Equal(t, []any{"BR"}, gotBody["includedRegionCodes"])
	assert.Equal(t, "pt-BR", gotBody["languageCode"])
	assert.Equal(t, "sess-1", gotBody["sessionToken"])
	require.Len(t, preds, 1)
	assert.Equal(t, Prediction{PlaceID: "p1", Description: "Rua das Flores, 120 - Centro"}, preds[0])
}

func TestAutocompleteRejectsBlankInput(t *testing.T) {
	client := newTestClient(t, func(*http.Request) (*http.Response, error) {
		t.Fatal("no request expected")
		return nil, nil
	})
	_, err := client.Autocomplete(context.Background(), "   ", "")
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())
}

func TestPlaceDetails(t *testing.T) {
	var gotURL string
	client := newTestClient(t, func(req *http.Request) (*http.Response, error) {
		gotURL = req.URL.String()
		assert.Equal(t, placeDetailsFieldMask, req.Header.Get("X-Goog-FieldMask"))
		return respond(http.StatusOK, `{"id":"p1","formattedAddress":"Rua das Flores, 120","location":{"latitude":-23.55,"longitude":-46.63},
			"addressComponents":[{"longText":"120","shortText":"120","types":["street_number"]}]}`), nil
	})

	place, err := client.PlaceDetails(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, "http://maps.test/v1/places/p1?languageCode=pt-BR", gotURL)
	assert.Equal(t, -23.55, place.Latitude)
	assert.Equal(t, -46.63, place.Longitude)
	number, ok := place.Find("street_number")
	assert.True(t, ok)
	assert.Equal(t, "120", number)
}

func TestPlaceDetailsMapsUpstreamStatus(t *testing.T) {
	client := newTestClient(t, func(*http.Request) (*http.Response, error) {
		return respond(http.StatusNotFound, `{"error":"not found"}`), nil
	})
	_, err := client.PlaceDetails(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.As(err).Code())

	client = newTestClient(t, func(*http.Request) (*http.Response, error) {
		return respond(http.StatusForbidden, `quota`), nil
	})
	_, err = client.PlaceDetails(context.Background(), "p1")
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeDependency, pkgerrors.As(err).Code())
}
