package ports

import (
	"context"
	"time"

	"merchant-settlement/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// StoreRepository reads merchant storefronts.
type StoreRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Store, error)
}

// CatalogRepository reads products and their variant price records.
type CatalogRepository interface {
	GetProduct(ctx context.Context, id uuid.UUID) (*domain.Product, error)
}

// OrderRepository reads orders and writes back the fulfillment-payment projection.
type OrderRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Order, error)
	UpdateFulfillmentPayment(ctx context.Context, orderID uuid.UUID, fp domain.FulfillmentPayment) error
	// ListUnsettled returns completed orders updated before cutoff that have no
	// invoice, ordered by (updated_at, id) and starting strictly after the cursor
	// when one is given.
	ListUnsettled(ctx context.Context, cutoff time.Time, after *OrderCursor, limit int) ([]domain.Order, error)
}

// OrderCursor is a keyset position in the unsettled-orders scan.
type OrderCursor struct {
	UpdatedAt time.Time
	ID        uuid.UUID
}

// InvoiceRepository persists fulfillment invoices.
// Create returns domain.ErrInvoiceOrderExists or domain.ErrInvoiceNumberTaken on
// uniqueness violations.
type InvoiceRepository interface {
	Create(ctx context.Context, invoice *domain.FulfillmentInvoice) error
	GetByOrderID(ctx context.Context, orderID uuid.UUID) (*domain.FulfillmentInvoice, error)
	CountByYear(ctx context.Context, year int) (int64, error)
	// ListUncredited returns invoices with positive profit whose profit credit is missing from the ledger.
	ListUncredited(ctx context.Context, limit int) ([]domain.FulfillmentInvoice, error)
}

// WalletRepository manages wallet anchor rows.
// Methods accepting pgx.Tx are used inside transaction blocks for pessimistic locking.
type WalletRepository interface {
	Ensure(ctx context.Context, tx pgx.Tx, merchantID uuid.UUID, currency string) (*domain.Wallet, error)
	GetByMerchantID(ctx context.Context, merchantID uuid.UUID, currency string) (*domain.Wallet, error)
	GetByMerchantIDForUpdate(ctx context.Context, tx pgx.Tx, merchantID uuid.UUID, currency string) (*domain.Wallet, error)
}

// WalletTransactionRepository persists immutable ledger entries.
// Create returns domain.ErrDuplicateIdempotencyKey when the key was already applied.
type WalletTransactionRepository interface {
	Create(ctx context.Context, tx pgx.Tx, txn *domain.WalletTransaction) error
	GetByIdempotencyKey(ctx context.Context, key string) (*domain.WalletTransaction, error)
	GetByIdempotencyKeyTx(ctx context.Context, tx pgx.Tx, key string) (*domain.WalletTransaction, error)
	BalanceTx(ctx context.Context, tx pgx.Tx, walletID uuid.UUID) (int64, error)
	Balance(ctx context.Context, merchantID uuid.UUID, currency string) (int64, error)
	List(ctx context.Context, params LedgerListParams) ([]domain.WalletTransaction, int64, error)
}

// LedgerListParams holds filter + pagination for listing ledger entries.
type LedgerListParams struct {
	MerchantID uuid.UUID
	Type       *domain.EntryType
	Page       int
	PageSize   int
}

// WithdrawalRepository persists withdrawal requests.
// Create returns domain.ErrWithdrawalAlreadyPending when a pending request exists.
type WithdrawalRepository interface {
	Create(ctx context.Context, w *domain.WithdrawalRequest) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.WithdrawalRequest, error)
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.WithdrawalRequest, error)
	// UpdateTransition persists w only if the stored status still equals from.
	// Returns domain.ErrStaleWithdrawal otherwise.
	UpdateTransition(ctx context.Context, tx pgx.Tx, w *domain.WithdrawalRequest, from domain.WithdrawalStatus) error
	HasPending(ctx context.Context, merchantID uuid.UUID) (bool, error)
	SumOutstanding(ctx context.Context, merchantID uuid.UUID) (int64, error)
	List(ctx context.Context, params WithdrawalListParams) ([]domain.WithdrawalRequest, int64, error)
}

// WithdrawalListParams holds filter + pagination for listing withdrawals.
type WithdrawalListParams struct {
	MerchantID *uuid.UUID
	Status     *domain.WithdrawalStatus
	Page       int
	PageSize   int
}

// AuditRepository persists audit log entries.
type AuditRepository interface {
	Create(ctx context.Context, log *domain.AuditLog) error
}

// DBTransactor provides database transaction management.
type DBTransactor interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}
