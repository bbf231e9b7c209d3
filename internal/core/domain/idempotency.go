package domain

import (
	"github.com/google/uuid"
)

// ProfitCreditKeyPrefix prefixes every order-profit ledger key.
const ProfitCreditKeyPrefix = "order-profit:"

// BuildProfitCreditKey is the ledger key for crediting an order's merchant profit.
// It depends only on the order identity so replayed settlements collapse onto one entry.
func BuildProfitCreditKey(orderID uuid.UUID) string {
	return ProfitCreditKeyPrefix + orderID.String()
}

// BuildWithdrawalDebitKey is the ledger key for the debit posted on approval.
func BuildWithdrawalDebitKey(withdrawalID uuid.UUID) string {
	return "withdrawal:" + withdrawalID.String() + ":debit"
}

// BuildWithdrawalReversalKey is the ledger key for the compensating credit after a failed payout.
func BuildWithdrawalReversalKey(withdrawalID uuid.UUID) string {
	return "withdrawal:" + withdrawalID.String() + ":reversal"
}

// BuildSettlementCacheKey is the fast-path cache key for a settled order.
func BuildSettlementCacheKey(orderID uuid.UUID) string {
	return "settlement:" + orderID.String()
}
