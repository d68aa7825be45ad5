package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetadataTable(t *testing.T) {
	cases := []struct {
		code      Code
		status    int
		retryable bool
		expose    bool
		details   bool
	}{
		{CodeValidation, http.StatusBadRequest, false, true, true},
		{CodeUnauthorized, http.StatusUnauthorized, false, true, false},
		{CodeForbidden, http.StatusForbidden, false, true, false},
		{CodeNotFound, http.StatusNotFound, false, true, false},
		{CodeConflict, http.StatusConflict, false, true, false},
		{CodeStateConflict, http.StatusUnprocessableEntity, false, true, true},
		{CodeInsufficient, http.StatusConflict, false, true, true},
		{CodeIdempotency, http.StatusConflict, false, true, true},
		{CodeRateLimit, http.StatusTooManyRequests, false, true, false},
		{CodeInternal, http.StatusInternalServerError, true, false, false},
		{CodeDependency, http.StatusServiceUnavailable, true, false, true},
		{CodeExternal, http.StatusBadGateway, true, false, false},
	}
	require.Len(t, cases, len(metadataByCode), "every code needs a row")

	for _, tc := range cases {
		t.Run(string(tc.code), func(t *testing.T) {
			meta := MetadataFor(tc.code)
			assert.Equal(t, tc.status, meta.HTTPStatus)
			assert.Equal(t, tc.retryable, meta.Retryable)
			assert.Equal(t, tc.expose, meta.ExposeMessage)
			assert.Equal(t, tc.details, meta.DetailsAllowed)
			assert.NotEmpty(t, meta.PublicMessage)
		})
	}

	assert.Equal(t, MetadataFor(CodeInternal), MetadataFor("SOMETHING_UNKNOWN"))
}

func TestWrapKeepsCause(t *testing.T) {
	cause := stdErrors.New("connection reset")
	err := Wrap(CodeDependency, cause, "load sale")

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "DEPENDENCY_ERROR: load sale", err.Error())
	assert.Nil(t, Wrap(CodeValidation, nil, "bad").Unwrap())
}

func TestAsAndIsSeeThroughWrapping(t *testing.T) {
	inner := New(CodeForbidden, "driver cannot see sales")
	wrapped := fmt.Errorf("handler: %w", inner)

	assert.Same(t, inner, As(wrapped))
	assert.True(t, Is(wrapped, CodeForbidden))
	assert.False(t, Is(wrapped, CodeNotFound))
	assert.Nil(t, As(nil))
	assert.Nil(t, As(stdErrors.New("plain")))
	assert.True(t, Is(stdErrors.Join(stdErrors.New("ctx"), inner), CodeForbidden))
}

func TestNilErrorIsSafe(t *testing.T) {
	var e *Error
	assert.Equal(t, CodeInternal, e.Code())
	assert.Empty(t, e.Message())
	assert.Nil(t, e.Details())
	assert.Nil(t, e.WithDetails("x"))
	assert.Empty(t, e.Error())
}

func TestDomainConstructors(t *testing.T) {
	short := InsufficientStock(StockShortage{ProductID: "p1", Requested: 3, Available: 1})
	assert.Equal(t, CodeInsufficient, short.Code())
	assert.Equal(t, StockShortage{ProductID: "p1", Requested: 3, Available: 1}, short.Details())

	trans := InvalidTransition("pending", "completed")
	assert.Equal(t, CodeStateConflict, trans.Code())
	assert.Equal(t, "cannot move from pending to completed", trans.Message())
	assert.Equal(t, Transition{From: "pending", To: "completed"}, trans.Details())
}
