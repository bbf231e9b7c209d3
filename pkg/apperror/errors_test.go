package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name     string
		appErr   *AppError
		expected string
	}{
		{
			name:     "without wrapped error",
			appErr:   New("WDR_001", "Insufficient wallet balance", http.StatusPaymentRequired),
			expected: "[WDR_001] Insufficient wallet balance",
		},
		{
			name:     "with wrapped error",
			appErr:   Wrap("SYS_001", "DB error", http.StatusInternalServerError, fmt.Errorf("connection refused")),
			expected: "[SYS_001] DB error: connection refused",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.appErr.Error())
		})
	}
}

func TestAppError_Unwrap(t *testing.T) {
	inner := fmt.Errorf("inner error")
	appErr := Wrap("SYS_001", "wrapped", http.StatusInternalServerError, inner)

	assert.True(t, errors.Is(appErr, inner))
}

func TestAppError_IsNilUnwrap(t *testing.T) {
	appErr := New("WDR_001", "test", http.StatusBadRequest)
	assert.Nil(t, appErr.Unwrap())
}

func TestSettlementErrors(t *testing.T) {
	cause := errors.New("unique violation")
	tests := []struct {
		name       string
		err        *AppError
		code       string
		httpStatus int
	}{
		{"InvoiceGeneration", ErrInvoiceGeneration(cause), "SET_001", 500},
		{"StoreNotFound", ErrStoreNotFound(), "SET_002", 404},
		{"ProductNotFound", ErrProductNotFound(), "SET_003", 404},
		{"OrderNotSettleable", ErrOrderNotSettleable("placed"), "SET_004", 409},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, tt.err.Code)
			assert.Equal(t, tt.httpStatus, tt.err.HTTPStatus)
		})
	}

	assert.ErrorIs(t, ErrInvoiceGeneration(cause), cause)
}

func TestWithdrawalErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        *AppError
		code       string
		httpStatus int
	}{
		{"InsufficientBalance", ErrInsufficientBalance(), "WDR_001", 402},
		{"InvalidPayoutDestination", ErrInvalidPayoutDestination(), "WDR_002", 400},
		{"BelowMinimum", ErrBelowMinimumWithdrawal(10000), "WDR_003", 400},
		{"InvalidTransition", ErrInvalidTransition("PAID", "FAILED"), "WDR_004", 409},
		{"PendingExists", ErrPendingWithdrawalExists(), "WDR_005", 409},
		{"ReasonRequired", ErrReasonRequired(), "WDR_006", 400},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, tt.err.Code)
			assert.Equal(t, tt.httpStatus, tt.err.HTTPStatus)
		})
	}
}

func TestWithdrawalErrors_Messages(t *testing.T) {
	assert.Contains(t, ErrBelowMinimumWithdrawal(10000).Message, "10000")
	assert.Equal(t, "Cannot move withdrawal from PAID to FAILED", ErrInvalidTransition("PAID", "FAILED").Message)
}

func TestAuthErrors(t *testing.T) {
	assert.Equal(t, "AUTH_001", ErrInvalidToken().Code)
	assert.Equal(t, 401, ErrInvalidToken().HTTPStatus)
	assert.Equal(t, "AUTH_002", ErrForbidden().Code)
	assert.Equal(t, 403, ErrForbidden().HTTPStatus)
}

func TestSystemErrors(t *testing.T) {
	inner := fmt.Errorf("pg: connection closed")
	dbErr := ErrDatabaseError(inner)
	assert.Equal(t, "SYS_001", dbErr.Code)
	assert.Equal(t, 500, dbErr.HTTPStatus)
	assert.True(t, errors.Is(dbErr, inner))

	internal := InternalError(inner)
	assert.Equal(t, "SYS_001", internal.Code)
	assert.True(t, errors.Is(internal, inner))
}

func TestRateLimitError(t *testing.T) {
	err := ErrRateLimitExceeded()
	assert.Equal(t, "RATE_001", err.Code)
	assert.Equal(t, 429, err.HTTPStatus)
}

func TestNotFoundEntity(t *testing.T) {
	err := ErrNotFound("Invoice")
	assert.Contains(t, err.Message, "Invoice")
	assert.Equal(t, "NOT_FOUND", err.Code)
	assert.Equal(t, 404, err.HTTPStatus)
}

func TestValidation(t *testing.T) {
	err := Validation("order_id is required")
	assert.Equal(t, "VAL_001", err.Code)
	assert.Equal(t, 400, err.HTTPStatus)
	assert.Equal(t, "order_id is required", err.Message)
}
