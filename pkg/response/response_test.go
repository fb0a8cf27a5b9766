package response

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"marketplace-wallet/pkg/apperror"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupContext() (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	return c, w
}

func TestOK(t *testing.T) {
	c, w := setupContext()
	c.Set("request_id", "req-123")

	OK(c, gin.H{"balance": 500})

	assert.Equal(t, http.StatusOK, w.Code)

	var resp SuccessResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "req-123", resp.RequestID)
	assert.NotEmpty(t, resp.Timestamp)
}

func TestCreated(t *testing.T) {
	c, w := setupContext()

	Created(c, gin.H{"id": "wtx-1"})

	assert.Equal(t, http.StatusCreated, w.Code)

	var resp SuccessResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	// Request ID is generated when the middleware did not set one.
	assert.NotEmpty(t, resp.RequestID)
}

func TestError_AppError(t *testing.T) {
	c, w := setupContext()

	Error(c, apperror.ErrInsufficientBalance())

	assert.Equal(t, http.StatusPaymentRequired, w.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "LED_001", resp.ErrorCode)
	assert.False(t, resp.Retryable)
}

func TestError_RetryableConflict(t *testing.T) {
	c, w := setupContext()

	Error(c, apperror.ErrConcurrencyConflict(errors.New("40001")))

	assert.Equal(t, http.StatusConflict, w.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "SYS_002", resp.ErrorCode)
	assert.True(t, resp.Retryable)
}

func TestError_UnknownError(t *testing.T) {
	c, w := setupContext()

	Error(c, errors.New("something exploded"))

	assert.Equal(t, http.StatusInternalServerError, w.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "SYS_000", resp.ErrorCode)
	// Internal details never leak to clients.
	assert.NotContains(t, resp.Message, "exploded")
}
