package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorsMatchSentinels(t *testing.T) {
	t.Run("validation", func(t *testing.T) {
		err := fmt.Errorf("create content: %w", Invalid("content", "category", "oneof", "must be one of movie series"))
		assert.ErrorIs(t, err, ErrValidation)
		assert.Equal(t, http.StatusBadRequest, HTTPStatus(err))

		var ve *ValidationError
		assert.True(t, errors.As(err, &ve))
		assert.Equal(t, "category", ve.Fields[0].Field)
	})

	t.Run("not found", func(t *testing.T) {
		err := NotFound("genre", int64(7))
		assert.ErrorIs(t, err, ErrNotFound)
		assert.Equal(t, "genre 7 not found", err.Error())
		assert.Equal(t, http.StatusNotFound, HTTPStatus(err))
	})

	t.Run("conflict keeps cause", func(t *testing.T) {
		cause := errors.New("constraint failed")
		err := &ConflictError{Entity: "plan", Reason: "still referenced", Err: cause}
		assert.ErrorIs(t, err, ErrConflict)
		assert.ErrorIs(t, err, cause)
		assert.Equal(t, http.StatusConflict, HTTPStatus(err))
	})

	t.Run("upstream", func(t *testing.T) {
		cause := errors.New("dial tcp: refused")
		err := &UpstreamUnavailableError{Source: "feed", Page: 2, Err: cause}
		assert.ErrorIs(t, err, ErrUpstreamUnavailable)
		assert.ErrorIs(t, err, cause)
		assert.Equal(t, "feed page 2 unavailable: dial tcp: refused", err.Error())
		assert.Equal(t, http.StatusBadGateway, HTTPStatus(err))
	})

	t.Run("other", func(t *testing.T) {
		assert.Equal(t, http.StatusInternalServerError, HTTPStatus(errors.New("boom")))
		assert.Equal(t, http.StatusOK, HTTPStatus(nil))
	})
}

func TestValidationErrorMessage(t *testing.T) {
	err := &ValidationError{Entity: "plan", Fields: []FieldViolation{
		{Field: "name", Rule: "required", Message: "is required"},
		{Field: "priceCents", Rule: "min", Message: "must be at least 0"},
	}}
	assert.Equal(t, "invalid plan: name: is required; priceCents: must be at least 0", err.Error())
}
