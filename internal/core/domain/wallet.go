package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Wallet is the per-merchant, per-currency ledger anchor.
// It carries no balance: the balance is always the signed sum of its transactions.
// Debits lock this row to serialize balance checks.
type Wallet struct {
	ID         uuid.UUID `json:"id"`
	MerchantID uuid.UUID `json:"merchant_id"`
	Currency   string    `json:"currency"`
	CreatedAt  time.Time `json:"created_at"`
}

// EntryType is the direction of a ledger entry.
type EntryType string

const (
	EntryTypeCredit EntryType = "CREDIT"
	EntryTypeDebit  EntryType = "DEBIT"
)

// Ledger sources.
const (
	SourceOrderProfit        = "ORDER_PROFIT"
	SourceWithdrawal         = "WITHDRAWAL"
	SourceWithdrawalReversal = "WITHDRAWAL_REVERSAL"
)

// Ledger reference types.
const (
	ReferenceTypeOrder      = "ORDER"
	ReferenceTypeWithdrawal = "WITHDRAWAL"
)

// WalletTransaction is an immutable ledger entry.
type WalletTransaction struct {
	ID             uuid.UUID       `json:"id"`
	WalletID       uuid.UUID       `json:"wallet_id"`
	MerchantID     uuid.UUID       `json:"merchant_id"`
	Type           EntryType       `json:"type"`
	AmountPaise    int64           `json:"amount_paise"` // Always positive; Type carries the sign
	Currency       string          `json:"currency"`
	IdempotencyKey string          `json:"idempotency_key"`
	Source         string          `json:"source"`
	ReferenceType  string          `json:"reference_type"`
	ReferenceID    string          `json:"reference_id"`
	Metadata       json.RawMessage `json:"metadata,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

// SignedAmount returns the amount with the sign implied by Type.
func (t *WalletTransaction) SignedAmount() int64 {
	if t.Type == EntryTypeDebit {
		return -t.AmountPaise
	}
	return t.AmountPaise
}
