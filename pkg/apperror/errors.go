package apperror

import (
	"fmt"
	"net/http"
)

// AppError is a structured error that maps to HTTP responses.
type AppError struct {
	Code       string `json:"error_code"`
	Message    string `json:"message"`
	HTTPStatus int    `json:"-"`
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

// ---- Settlement (SET) ----

func ErrInvoiceGeneration(err error) *AppError {
	return Wrap("SET_001", "Could not generate fulfillment invoice", http.StatusInternalServerError, err)
}

func ErrStoreNotFound() *AppError {
	return New("SET_002", "Store not found", http.StatusNotFound)
}

func ErrProductNotFound() *AppError {
	return New("SET_003", "Product not found", http.StatusNotFound)
}

func ErrOrderNotSettleable(status string) *AppError {
	return New("SET_004", fmt.Sprintf("Order in status %q cannot be settled", status), http.StatusConflict)
}

// ---- Withdrawals (WDR) ----

func ErrInsufficientBalance() *AppError {
	return New("WDR_001", "Insufficient wallet balance", http.StatusPaymentRequired)
}

func ErrInvalidPayoutDestination() *AppError {
	return New("WDR_002", "Invalid UPI id", http.StatusBadRequest)
}

func ErrBelowMinimumWithdrawal(minPaise int64) *AppError {
	return New("WDR_003", fmt.Sprintf("Withdrawal amount must be at least %d paise", minPaise), http.StatusBadRequest)
}

func ErrInvalidTransition(from, to string) *AppError {
	return New("WDR_004", fmt.Sprintf("Cannot move withdrawal from %s to %s", from, to), http.StatusConflict)
}

func ErrPendingWithdrawalExists() *AppError {
	return New("WDR_005", "A withdrawal request is already pending", http.StatusConflict)
}

func ErrReasonRequired() *AppError {
	return New("WDR_006", "A reason is required", http.StatusBadRequest)
}

// ---- Authentication (AUTH) ----

func ErrInvalidToken() *AppError {
	return New("AUTH_001", "Invalid or expired token", http.StatusUnauthorized)
}

func ErrForbidden() *AppError {
	return New("AUTH_002", "Caller is not allowed to perform this action", http.StatusForbidden)
}

// ---- Rate Limiting (RATE) ----

func ErrRateLimitExceeded() *AppError {
	return New("RATE_001", "Rate limit exceeded", http.StatusTooManyRequests)
}

// ---- Generic ----

func ErrNotFound(entity string) *AppError {
	return New("NOT_FOUND", fmt.Sprintf("%s not found", entity), http.StatusNotFound)
}

// ---- System & Infrastructure (SYS) ----

func ErrDatabaseError(err error) *AppError {
	return Wrap("SYS_001", "Internal database error", http.StatusInternalServerError, err)
}

// InternalError wraps an internal error as a SYS_001 error.
func InternalError(err error) *AppError {
	return Wrap("SYS_001", "Internal server error", http.StatusInternalServerError, err)
}

// Validation returns a VAL_001 validation error.
func Validation(message string) *AppError {
	return New("VAL_001", message, http.StatusBadRequest)
}
