package ports

import (
	"context"
	"encoding/json"
	"time"

	"merchant-settlement/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// CostResolver returns the unit production cost of a catalog product.
type CostResolver interface {
	// ResolveUnitCost returns the variant price when one matches, else the base price.
	// Returns domain.ErrProductNotFound when the product does not exist.
	ResolveUnitCost(ctx context.Context, productID uuid.UUID, variant *domain.VariantChoice) (decimal.Decimal, error)
}

// InvoiceNumberAllocator issues year-scoped invoice numbers (INV-<year>-<seq>).
type InvoiceNumberAllocator interface {
	Allocate(ctx context.Context, year int) (string, error)
}

// InvoiceBuilder builds and persists the fulfillment invoice of an order.
type InvoiceBuilder interface {
	Estimate(ctx context.Context, order *domain.Order) (*domain.CostBreakdown, error)
	Build(ctx context.Context, order *domain.Order) (*domain.FulfillmentInvoice, error)
	BuildFromBreakdown(ctx context.Context, order *domain.Order, costs *domain.CostBreakdown) (*domain.FulfillmentInvoice, error)
}

// LedgerEntry is the input of a wallet credit or debit.
type LedgerEntry struct {
	MerchantID     uuid.UUID
	AmountPaise    int64
	IdempotencyKey string
	Source         string
	ReferenceType  string
	ReferenceID    string
	Metadata       json.RawMessage
}

// WalletLedger is the append-only merchant ledger.
// Credits and debits are idempotent on LedgerEntry.IdempotencyKey: replaying a key
// returns the transaction that was first recorded for it.
type WalletLedger interface {
	Credit(ctx context.Context, entry LedgerEntry) (*domain.WalletTransaction, error)
	CreditTx(ctx context.Context, tx pgx.Tx, entry LedgerEntry) (*domain.WalletTransaction, error)
	// Debit fails with domain.ErrInsufficientBalance when the derived balance is short.
	Debit(ctx context.Context, entry LedgerEntry) (*domain.WalletTransaction, error)
	DebitTx(ctx context.Context, tx pgx.Tx, entry LedgerEntry) (*domain.WalletTransaction, error)
	GetBalance(ctx context.Context, merchantID uuid.UUID) (int64, error)
	HasEntry(ctx context.Context, idempotencyKey string) (bool, error)
	ListTransactions(ctx context.Context, params LedgerListParams) ([]domain.WalletTransaction, int64, error)
}

// SettlementService turns a completed order into an invoice and a profit credit.
type SettlementService interface {
	Settle(ctx context.Context, order *domain.Order) (*domain.FulfillmentInvoice, error)
	SettleByID(ctx context.Context, orderID uuid.UUID) (*domain.FulfillmentInvoice, error)
	GetInvoice(ctx context.Context, orderID uuid.UUID) (*domain.FulfillmentInvoice, error)
	// CreditProfit posts the order's profit credit from an existing invoice.
	CreditProfit(ctx context.Context, invoice *domain.FulfillmentInvoice) error
}

// WithdrawalService drives the withdrawal request/approval/payout state machine.
type WithdrawalService interface {
	RequestWithdrawal(ctx context.Context, req WithdrawalRequestInput) (*domain.WithdrawalRequest, error)
	Approve(ctx context.Context, id uuid.UUID, adminID uuid.UUID) (*domain.WithdrawalRequest, error)
	Reject(ctx context.Context, id uuid.UUID, adminID uuid.UUID, reason string) (*domain.WithdrawalRequest, error)
	MarkPaid(ctx context.Context, id uuid.UUID, adminID uuid.UUID, payoutReference string) (*domain.WithdrawalRequest, error)
	MarkFailed(ctx context.Context, id uuid.UUID, adminID uuid.UUID, reason string) (*domain.WithdrawalRequest, error)
	Get(ctx context.Context, id uuid.UUID) (*domain.WithdrawalRequest, error)
	List(ctx context.Context, params WithdrawalListParams) ([]domain.WithdrawalRequest, int64, error)
	HasPendingRequest(ctx context.Context, merchantID uuid.UUID) (bool, error)
	OutstandingAmount(ctx context.Context, merchantID uuid.UUID) (int64, error)
}

// WithdrawalRequestInput holds validated input for a new withdrawal.
type WithdrawalRequestInput struct {
	MerchantID  uuid.UUID
	AmountPaise int64
	UPIID       string
}

// SettlementCache is the Redis-layer settlement check (fast path).
type SettlementCache interface {
	Get(ctx context.Context, key string) ([]byte, error) // Returns cached invoice JSON or nil
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// JobLock keeps replicas from running the same periodic job at once.
type JobLock interface {
	// TryAcquire returns an owner token when the lock was taken.
	TryAcquire(ctx context.Context, name string, ttl time.Duration) (string, bool, error)
	// Release frees the lock only while owner still holds it.
	Release(ctx context.Context, name string, owner string) error
}

// AuditService records audit entries.
type AuditService interface {
	Log(ctx context.Context, entry *domain.AuditLog)
}

// Caller roles carried in tokens.
const (
	RoleMerchant = "merchant"
	RoleAdmin    = "admin"
	RoleSystem   = "system"
)

// TokenService handles JWT token operations.
type TokenService interface {
	Generate(subject uuid.UUID, role string) (string, time.Time, error)
	Validate(tokenString string) (*TokenClaims, error)
}

// TokenClaims holds the parsed JWT claims.
type TokenClaims struct {
	Subject uuid.UUID
	Role    string
}
