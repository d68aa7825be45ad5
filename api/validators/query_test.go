package validators

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/loggas/loggas-backend/pkg/errors"
)

func TestParseQueryInt(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?limit=10&bad=x&big=500", nil)

	v, err := ParseQueryInt(req, "limit", 25, 1, 100)
	require.NoError(t, err)
	assert.Equal(t, 10, v)

	v, err = ParseQueryInt(req, "missing", 25, 1, 100)
	require.NoError(t, err)
	assert.Equal(t, 25, v)

	_, err = ParseQueryInt(req, "bad", 25, 1, 100)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))

	_, err = ParseQueryInt(req, "big", 25, 1, 100)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))
}

func TestParseQueryRangeDateOnlyIncludesLastDay(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?from=2024-03-01&to=2024-03-31", nil)

	from, to, err := ParseQueryRange(req)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), from)
	assert.Equal(t, time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC), to)
}

func TestParseQueryRangeRFC3339AndMissing(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?from=2024-03-01T10:00:00-03:00", nil)

	from, to, err := ParseQueryRange(req)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 1, 13, 0, 0, 0, time.UTC), from)
	assert.True(t, to.IsZero())

	_, _, err = ParseQueryRange(httptest.NewRequest(http.MethodGet, "/?to=yesterday", nil))
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))
}

func TestParseQueryBool(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?online=true&bad=maybe", nil)

	v, err := ParseQueryBool(req, "online")
	require.NoError(t, err)
	require.NotNil(t, v)
	assert.True(t, *v)

	v, err = ParseQueryBool(req, "absent")
	require.NoError(t, err)
	assert.Nil(t, v)

	_, err = ParseQueryBool(req, "bad")
	assert.Error(t, err)
}

func TestSanitizeStringKeepsRunes(t *testing.T) {
	assert.Equal(t, "Gás", SanitizeString("  Gás P13  ", 3))
	assert.Equal(t, "Água", SanitizeString(" Água ", 0))
}
