package services

import (
	"errors"
	"fmt"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/upb/commons-portal/repositories"
)

func TestNewDomainError(t *testing.T) {
	baseErr := errors.New("base error")
	domainErr := NewDomainError(ErrorTypeNotFound, "resource not found", baseErr)

	assert.Equal(t, ErrorTypeNotFound, domainErr.Type)
	assert.Equal(t, "resource not found", domainErr.Message)
	assert.Equal(t, baseErr, domainErr.Err)
	assert.NotNil(t, domainErr.Details)
}

func TestDomainError_Error(t *testing.T) {
	tests := []struct {
		name    string
		err     *DomainError
		wantMsg string
	}{
		{
			name:    "error with wrapped error",
			err:     &DomainError{Type: ErrorTypeNotFound, Message: "project not found", Err: errors.New("db error")},
			wantMsg: "not_found: project not found (db error)",
		},
		{
			name:    "error without wrapped error",
			err:     &DomainError{Type: ErrorTypeValidation, Message: "invalid input"},
			wantMsg: "validation: invalid input",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantMsg, tt.err.Error())
		})
	}
}

func TestDomainError_IsAndUnwrap(t *testing.T) {
	baseErr := errors.New("base error")
	domainErr := NewDomainError(ErrorTypeNotFound, "community not found", baseErr)

	assert.True(t, errors.Is(domainErr, ErrProjectNotFound))
	assert.False(t, errors.Is(domainErr, ErrForbidden))
	assert.Equal(t, baseErr, errors.Unwrap(domainErr))

	wrapped := fmt.Errorf("context: %w", domainErr)
	assert.True(t, IsNotFoundError(wrapped))
	assert.Equal(t, ErrorTypeNotFound, GetErrorType(wrapped))
}

func TestTypeHelpers(t *testing.T) {
	tests := []struct {
		err   error
		check func(error) bool
	}{
		{ErrInvalidEmail, IsValidationError},
		{ErrUnauthorized, IsUnauthorizedError},
		{ErrInsufficientPermissions, IsForbiddenError},
		{ErrAlreadyExists, IsConflictError},
		{ErrTransactionFailed, IsInternalError},
		{ErrStorage, IsExternalError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.True(t, tt.check(tt.err))
			assert.False(t, tt.check(errors.New("plain")))
		})
	}
	assert.Equal(t, ErrorType(""), GetErrorType(errors.New("plain")))
	assert.Nil(t, GetErrorDetails(errors.New("plain")))
}

func TestValidationFailed(t *testing.T) {
	err := ValidationFailed(map[string]string{"firstName": "First name is required"})
	assert.True(t, IsValidationError(err))
	assert.Equal(t, "First name is required", GetErrorDetails(err)["firstName"])
	assert.Empty(t, ErrInvalidInput.Details)
}

func TestFromRepository(t *testing.T) {
	assert.NoError(t, FromRepository(nil, ErrProjectNotFound))

	err := FromRepository(fmt.Errorf("project x: %w", repositories.ErrNotFound), ErrProjectNotFound)
	require.True(t, IsNotFoundError(err))
	assert.ErrorIs(t, err, repositories.ErrNotFound)
	assert.Contains(t, err.Error(), "project not found")

	err = FromRepository(fmt.Errorf("insert: %w", &pq.Error{Code: "23505"}), nil)
	assert.True(t, IsConflictError(err))

	err = FromRepository(errors.New("connection refused"), ErrProjectNotFound)
	assert.True(t, IsInternalError(err))

	err = FromRepository(ErrForbidden, nil)
	assert.True(t, IsForbiddenError(err))
}
