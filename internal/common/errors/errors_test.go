package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		err  *StandardError
		want int
	}{
		{NewValidationError("bad", ""), http.StatusBadRequest},
		{NewConflictError("dup", ""), http.StatusBadRequest},
		{NewNotFoundError("Ticket", "t1"), http.StatusNotFound},
		{NewForbiddenError(), http.StatusForbidden},
		{NewUnauthenticatedError("missing token"), http.StatusUnauthorized},
		{NewRateLimitedError(""), http.StatusTooManyRequests},
		{NewInternalError(stderrors.New("boom")), http.StatusInternalServerError},
		{NewQueryExecutionFailedError("insert", stderrors.New("conn reset")), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(string(tt.err.Code), func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatus(tt.err.Code))
		})
	}
}

func TestAs_WrapsForeignErrors(t *testing.T) {
	assert.Nil(t, As(nil))

	foreign := stderrors.New("driver exploded")
	got := As(foreign)
	require.NotNil(t, got)
	assert.Equal(t, ErrCodeInternal, got.Code)
	assert.True(t, stderrors.Is(got, foreign))

	nf := NewNotFoundError("Question", "q1")
	wrapped := fmt.Errorf("lookup: %w", nf)
	assert.Same(t, nf, As(wrapped))
	assert.True(t, IsCode(wrapped, ErrCodeNotFound))
	assert.False(t, IsCode(wrapped, ErrCodeConflict))
}

func TestConvertToBPMNError_RetryPolicy(t *testing.T) {
	storage := ConvertToBPMNError(NewQueryExecutionFailedError("update ticket", stderrors.New("timeout")))
	assert.Equal(t, 3, storage.Retries)
	assert.True(t, storage.Retryable)

	conflict := ConvertToBPMNError(NewConflictError("Ticket has already been reviewed", ""))
	assert.Equal(t, 0, conflict.Retries)
	assert.Equal(t, "CONFLICT", conflict.Code)

	vars := conflict.ToErrorVariables()
	assert.Equal(t, "CONFLICT", vars["errorCode"])
	assert.Equal(t, "CONFLICT", vars["originalErrorCode"])
}

func TestGetErrorCategory(t *testing.T) {
	assert.Equal(t, "DATABASE", GetErrorCategory(ErrCodeQueryExecutionFailed))
	assert.Equal(t, "AUTH", GetErrorCategory(ErrCodeForbidden))
	assert.Equal(t, "BUSINESS", GetErrorCategory(ErrCodeConflict))
	assert.Equal(t, "EXTERNAL", GetErrorCategory(ErrCodeExternalServiceFailed))
	assert.Equal(t, "OTHER", GetErrorCategory(ErrCodeInternal))
}

func TestIsClientError(t *testing.T) {
	assert.True(t, IsClientError(ErrCodeValidationFailed))
	assert.True(t, IsClientError(ErrCodeRateLimited))
	assert.False(t, IsClientError(ErrCodeInternal))
}
