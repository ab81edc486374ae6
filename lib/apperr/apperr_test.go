package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorIsMatchesCode(t *testing.T) {
	err := InvalidScore("score must be between 1 and 5")
	assert.True(t, errors.Is(err, ErrInvalidScore))
	assert.False(t, errors.Is(err, ErrNotFound))

	wrapped := fmt.Errorf("failed to submit: %w", NotFound("anime not found"))
	assert.True(t, errors.Is(wrapped, ErrNotFound))
}

func TestDataAccessKeepsCause(t *testing.T) {
	cause := errors.New("disk I/O error")
	err := DataAccess(cause)

	assert.True(t, errors.Is(err, ErrDataAccess))
	assert.True(t, errors.Is(err, cause))
	assert.Equal(t, "database error", PublicMessage(err))
}

func TestStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{InvalidScore("x"), http.StatusBadRequest},
		{Validation("x"), http.StatusBadRequest},
		{NotFound("x"), http.StatusNotFound},
		{Unauthorized("x"), http.StatusUnauthorized},
		{Forbidden("x"), http.StatusForbidden},
		{AlreadyExists("x"), http.StatusConflict},
		{Unavailable("x"), http.StatusServiceUnavailable},
		{DataAccess(errors.New("x")), http.StatusInternalServerError},
		{errors.New("plain"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Status(tt.err), tt.err.Error())
	}
}
