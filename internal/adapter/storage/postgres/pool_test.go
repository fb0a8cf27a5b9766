package postgres

import (
	"errors"
	"testing"

	"marketplace-wallet/pkg/apperror"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestTranslateError_UniqueViolation(t *testing.T) {
	err := translateError(&pgconn.PgError{Code: codeUniqueViolation})

	var appErr *apperror.AppError
	assert.ErrorAs(t, err, &appErr)
	assert.Equal(t, "LED_002", appErr.Code)
	assert.False(t, apperror.IsRetryable(err))
}

func TestTranslateError_SerializationFailure(t *testing.T) {
	for _, code := range []string{codeSerialization, codeDeadlockDetected} {
		err := translateError(&pgconn.PgError{Code: code})

		var appErr *apperror.AppError
		assert.ErrorAs(t, err, &appErr)
		assert.Equal(t, "SYS_002", appErr.Code)
		assert.True(t, apperror.IsRetryable(err))
	}
}

func TestTranslateError_Passthrough(t *testing.T) {
	plain := errors.New("connection reset")
	assert.Equal(t, plain, translateError(plain))

	other := &pgconn.PgError{Code: "22P02"}
	assert.Equal(t, error(other), translateError(other))
}
