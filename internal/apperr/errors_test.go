package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"validation", NewValidationError("email", "required"), http.StatusBadRequest},
		{"wrapped validation", fmt.Errorf("signup: %w", NewValidationError("password", "too long")), http.StatusBadRequest},
		{"email taken", ErrEmailTaken, http.StatusBadRequest},
		{"bad credentials", ErrInvalidCredentials, http.StatusUnauthorized},
		{"unauthenticated", fmt.Errorf("gate: %w", ErrUnauthenticated), http.StatusUnauthorized},
		{"not found", ErrNotFound, http.StatusNotFound},
		{"conflict", ErrConflict, http.StatusConflict},
		{"throttled", ErrTooManyAttempts, http.StatusTooManyRequests},
		{"unavailable", ErrUnavailable, http.StatusServiceUnavailable},
		{"unknown", errors.New("connection reset"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, msg := Status(tt.err)
			assert.Equal(t, tt.want, got)
			assert.NotEmpty(t, msg)
		})
	}
}

func TestStatusDoesNotLeakInternalDetail(t *testing.T) {
	_, msg := Status(errors.New("pq: password authentication failed for user postgres"))
	assert.Equal(t, "Internal server error", msg)
}

func TestValidationErrorKeepsFirstMessage(t *testing.T) {
	verr := NewValidationError("email", "required")
	verr.Add("email", "invalid")
	verr.Add("password", "required")

	assert.Equal(t, "required", verr.Fields["email"])
	assert.Equal(t, "validation failed: email: required; password: required", verr.Error())
	assert.False(t, verr.Empty())
	assert.True(t, (&ValidationError{}).Empty())
}
