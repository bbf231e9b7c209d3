package domain

import (
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// WithdrawalStatus is the lifecycle state of a withdrawal request.
type WithdrawalStatus string

const (
	WithdrawalStatusPending  WithdrawalStatus = "PENDING"
	WithdrawalStatusApproved WithdrawalStatus = "APPROVED"
	WithdrawalStatusRejected WithdrawalStatus = "REJECTED"
	WithdrawalStatusPaid     WithdrawalStatus = "PAID"
	WithdrawalStatusFailed   WithdrawalStatus = "FAILED"
)

var withdrawalTransitions = map[WithdrawalStatus][]WithdrawalStatus{
	WithdrawalStatusPending:  {WithdrawalStatusApproved, WithdrawalStatusRejected},
	WithdrawalStatusApproved: {WithdrawalStatusPaid, WithdrawalStatusFailed},
}

// IsValid reports whether s is a known status.
func (s WithdrawalStatus) IsValid() bool {
	switch s {
	case WithdrawalStatusPending, WithdrawalStatusApproved, WithdrawalStatusRejected,
		WithdrawalStatusPaid, WithdrawalStatusFailed:
		return true
	}
	return false
}

// IsTerminal reports whether no further transition is allowed from s.
func (s WithdrawalStatus) IsTerminal() bool {
	return len(withdrawalTransitions[s]) == 0
}

// CanTransitionTo reports whether s -> next is an allowed edge.
func (s WithdrawalStatus) CanTransitionTo(next WithdrawalStatus) bool {
	for _, allowed := range withdrawalTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// WithdrawalRequest is a merchant's request to cash out ledger balance.
type WithdrawalRequest struct {
	ID                        uuid.UUID        `json:"id"`
	MerchantID                uuid.UUID        `json:"merchant_id"`
	AmountPaise               int64            `json:"amount_paise"`
	Currency                  string           `json:"currency"`
	UPIID                     string           `json:"upi_id"`
	Status                    WithdrawalStatus `json:"status"`
	RequestedAt               time.Time        `json:"requested_at"`
	ReviewedAt                *time.Time       `json:"reviewed_at,omitempty"`
	ReviewedBy                *uuid.UUID       `json:"reviewed_by,omitempty"`
	PaidAt                    *time.Time       `json:"paid_at,omitempty"`
	RejectionReason           *string          `json:"rejection_reason,omitempty"`
	FailureReason             *string          `json:"failure_reason,omitempty"`
	PayoutReference           *string          `json:"payout_reference,omitempty"`
	BalanceBeforeRequestPaise int64            `json:"balance_before_request_paise"`
	TransactionID             *uuid.UUID       `json:"transaction_id,omitempty"`
	ReversalTransactionID     *uuid.UUID       `json:"reversal_transaction_id,omitempty"`
	UpdatedAt                 time.Time        `json:"updated_at"`
}

var upiIDRe = regexp.MustCompile(`^[a-zA-Z0-9._-]{2,256}@[a-zA-Z]{2,64}$`)

// IsValidUPIID reports whether id looks like a UPI virtual payment address.
func IsValidUPIID(id string) bool {
	return upiIDRe.MatchString(strings.TrimSpace(id))
}
