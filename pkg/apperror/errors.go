package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError is a structured error that maps to HTTP responses.
type AppError struct {
	Code       string `json:"error_code"`
	Message    string `json:"message"`
	HTTPStatus int    `json:"-"`
	Retryable  bool   `json:"-"` // Caller may safely re-issue the same operation
	Err        error  `json:"-"` // Wrapped internal error (not exposed to client)
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError.
func New(code string, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

// Wrap wraps an internal error with an AppError.
func Wrap(code string, message string, httpStatus int, err error) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Err:        err,
	}
}

// IsRetryable reports whether err is an AppError the caller is expected
// to retry (currently only concurrency conflicts).
func IsRetryable(err error) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Retryable
	}
	return false
}

// ---- Validation (VAL) ----

// Validation returns a generic bad-input error.
func Validation(message string) *AppError {
	return New("VAL_001", message, http.StatusBadRequest)
}

func ErrInvalidAmount() *AppError {
	return New("VAL_001", "Amount must be greater than zero", http.StatusBadRequest)
}

func ErrInvalidAccountID(raw string) *AppError {
	return New("VAL_002", fmt.Sprintf("Malformed account id: %q", raw), http.StatusBadRequest)
}

// ---- Ledger (LED) ----

func ErrInsufficientBalance() *AppError {
	return New("LED_001", "Insufficient wallet balance", http.StatusPaymentRequired)
}

func ErrDuplicateEntry() *AppError {
	return New("LED_002", "Duplicate ledger entry", http.StatusConflict)
}

// ---- Accounts (ACC) ----

func ErrUserNotFound(who string) *AppError {
	return New("ACC_001", fmt.Sprintf("%s account not found", who), http.StatusNotFound)
}

// ---- Referrals (REF) ----

func ErrReferralNotFound() *AppError {
	return New("REF_001", "Referral record not found", http.StatusNotFound)
}

func ErrInvalidReferralStatus(status string) *AppError {
	return New("REF_002", fmt.Sprintf("Referral is not creditable in status %q", status), http.StatusConflict)
}

// ---- Settings (SET) ----

func ErrSettingsNotConfigured(kind string) *AppError {
	return New("SET_001", fmt.Sprintf("%s settings are not configured", kind), http.StatusPreconditionFailed)
}

// ---- Withdrawals (WDR) ----

func ErrWithdrawalNotFound() *AppError {
	return New("WDR_001", "Withdrawal request not found", http.StatusNotFound)
}

func ErrWithdrawalLimit(message string) *AppError {
	return New("WDR_002", message, http.StatusUnprocessableEntity)
}

func ErrWithdrawalNotProcessable(status string) *AppError {
	return New("WDR_003", fmt.Sprintf("Withdrawal is not processable in status %q", status), http.StatusConflict)
}

// ---- Authentication (AUTH) ----

func ErrInvalidCredentials() *AppError {
	return New("AUTH_001", "Invalid credentials", http.StatusUnauthorized)
}

func ErrUsernameExists() *AppError {
	return New("AUTH_002", "Username already exists", http.StatusConflict)
}

func ErrInvalidToken() *AppError {
	return New("AUTH_003", "Invalid or expired token", http.StatusUnauthorized)
}

// ---- System & Infrastructure (SYS) ----

// InternalError wraps an internal error as a SYS_001 error.
func InternalError(err error) *AppError {
	return Wrap("SYS_001", "Internal server error", http.StatusInternalServerError, err)
}

func ErrRateLimitExceeded() *AppError {
	return New("SYS_003", "Rate limit exceeded", http.StatusTooManyRequests)
}

// ErrConcurrencyConflict marks a unit of work that lost a write conflict
// and should be retried by the caller after backoff.
func ErrConcurrencyConflict(err error) *AppError {
	e := Wrap("SYS_002", "Concurrent update conflict, retry the operation", http.StatusConflict, err)
	e.Retryable = true
	return e
}
