package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"merchant-settlement/internal/core/domain"
	"merchant-settlement/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// WalletLedgerImpl implements ports.WalletLedger on Postgres.
//
// The balance is never stored: it is the signed sum of wallet_transactions.
// Debits lock the wallet row so concurrent debits see each other's entries
// before checking the balance. Credits need no lock.
type WalletLedgerImpl struct {
	wallets    ports.WalletRepository
	entries    ports.WalletTransactionRepository
	transactor ports.DBTransactor
	currency   string
	log        zerolog.Logger
	now        func() time.Time
}

// NewWalletLedger creates a new WalletLedgerImpl for a single currency.
func NewWalletLedger(
	wallets ports.WalletRepository,
	entries ports.WalletTransactionRepository,
	transactor ports.DBTransactor,
	currency string,
	log zerolog.Logger,
) *WalletLedgerImpl {
	return &WalletLedgerImpl{
		wallets:    wallets,
		entries:    entries,
		transactor: transactor,
		currency:   currency,
		log:        log,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Credit appends a CREDIT entry in its own transaction.
// Replaying a key returns the entry first recorded for it.
func (l *WalletLedgerImpl) Credit(ctx context.Context, entry ports.LedgerEntry) (*domain.WalletTransaction, error) {
	return l.inTx(ctx, entry, l.CreditTx)
}

// CreditTx appends a CREDIT entry inside tx.
// Returns domain.ErrDuplicateIdempotencyKey if a concurrent writer inserted the key first;
// the caller's transaction is then aborted and must be rolled back.
func (l *WalletLedgerImpl) CreditTx(ctx context.Context, tx pgx.Tx, entry ports.LedgerEntry) (*domain.WalletTransaction, error) {
	if err := validateEntry(entry); err != nil {
		return nil, err
	}

	wallet, err := l.wallets.Ensure(ctx, tx, entry.MerchantID, l.currency)
	if err != nil {
		return nil, fmt.Errorf("ensure wallet: %w", err)
	}

	existing, err := l.entries.GetByIdempotencyKeyTx(ctx, tx, entry.IdempotencyKey)
	if err != nil {
		return nil, fmt.Errorf("check idempotency key: %w", err)
	}
	if existing != nil {
		return existing, nil
	}

	return l.append(ctx, tx, wallet, domain.EntryTypeCredit, entry)
}

// Debit appends a DEBIT entry in its own transaction.
func (l *WalletLedgerImpl) Debit(ctx context.Context, entry ports.LedgerEntry) (*domain.WalletTransaction, error) {
	return l.inTx(ctx, entry, l.DebitTx)
}

// DebitTx locks the wallet, re-derives the balance and appends a DEBIT entry inside tx.
func (l *WalletLedgerImpl) DebitTx(ctx context.Context, tx pgx.Tx, entry ports.LedgerEntry) (*domain.WalletTransaction, error) {
	if err := validateEntry(entry); err != nil {
		return nil, err
	}

	if _, err := l.wallets.Ensure(ctx, tx, entry.MerchantID, l.currency); err != nil {
		return nil, fmt.Errorf("ensure wallet: %w", err)
	}
	wallet, err := l.wallets.GetByMerchantIDForUpdate(ctx, tx, entry.MerchantID, l.currency)
	if err != nil {
		return nil, fmt.Errorf("lock wallet: %w", err)
	}
	if wallet == nil {
		return nil, fmt.Errorf("wallet for merchant %s disappeared", entry.MerchantID)
	}

	existing, err := l.entries.GetByIdempotencyKeyTx(ctx, tx, entry.IdempotencyKey)
	if err != nil {
		return nil, fmt.Errorf("check idempotency key: %w", err)
	}
	if existing != nil {
		return existing, nil
	}

	balance, err := l.entries.BalanceTx(ctx, tx, wallet.ID)
	if err != nil {
		return nil, fmt.Errorf("derive balance: %w", err)
	}
	if balance < entry.AmountPaise {
		return nil, fmt.Errorf("%w: balance %d, requested %d", domain.ErrInsufficientBalance, balance, entry.AmountPaise)
	}

	return l.append(ctx, tx, wallet, domain.EntryTypeDebit, entry)
}

// GetBalance derives the merchant's current balance.
func (l *WalletLedgerImpl) GetBalance(ctx context.Context, merchantID uuid.UUID) (int64, error) {
	balance, err := l.entries.Balance(ctx, merchantID, l.currency)
	if err != nil {
		return 0, fmt.Errorf("derive balance: %w", err)
	}
	return balance, nil
}

// HasEntry reports whether a ledger entry was recorded under key.
func (l *WalletLedgerImpl) HasEntry(ctx context.Context, key string) (bool, error) {
	existing, err := l.entries.GetByIdempotencyKey(ctx, key)
	if err != nil {
		return false, fmt.Errorf("lookup idempotency key: %w", err)
	}
	return existing != nil, nil
}

// ListTransactions returns a page of the merchant's ledger, newest first.
func (l *WalletLedgerImpl) ListTransactions(ctx context.Context, params ports.LedgerListParams) ([]domain.WalletTransaction, int64, error) {
	params.Page, params.PageSize = normalizePage(params.Page, params.PageSize)
	txns, total, err := l.entries.List(ctx, params)
	if err != nil {
		return nil, 0, fmt.Errorf("list ledger: %w", err)
	}
	return txns, total, nil
}

func (l *WalletLedgerImpl) inTx(
	ctx context.Context,
	entry ports.LedgerEntry,
	apply func(context.Context, pgx.Tx, ports.LedgerEntry) (*domain.WalletTransaction, error),
) (*domain.WalletTransaction, error) {
	tx, err := l.transactor.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	txn, err := apply(ctx, tx, entry)
	if errors.Is(err, domain.ErrDuplicateIdempotencyKey) {
		// Lost the insert race; the winner's entry is the result.
		_ = tx.Rollback(ctx)
		existing, getErr := l.entries.GetByIdempotencyKey(ctx, entry.IdempotencyKey)
		if getErr != nil {
			return nil, fmt.Errorf("fetch existing entry: %w", getErr)
		}
		if existing == nil {
			return nil, err
		}
		return existing, nil
	}
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return txn, nil
}

func (l *WalletLedgerImpl) append(
	ctx context.Context,
	tx pgx.Tx,
	wallet *domain.Wallet,
	entryType domain.EntryType,
	entry ports.LedgerEntry,
) (*domain.WalletTransaction, error) {
	txn := &domain.WalletTransaction{
		ID:             uuid.New(),
		WalletID:       wallet.ID,
		MerchantID:     entry.MerchantID,
		Type:           entryType,
		AmountPaise:    entry.AmountPaise,
		Currency:       wallet.Currency,
		IdempotencyKey: entry.IdempotencyKey,
		Source:         entry.Source,
		ReferenceType:  entry.ReferenceType,
		ReferenceID:    entry.ReferenceID,
		Metadata:       entry.Metadata,
		CreatedAt:      l.now(),
	}
	if err := l.entries.Create(ctx, tx, txn); err != nil {
		return nil, fmt.Errorf("append %s entry: %w", entryType, err)
	}

	l.log.Info().
		Str("merchant_id", entry.MerchantID.String()).
		Str("type", string(entryType)).
		Int64("amount_paise", entry.AmountPaise).
		Str("idempotency_key", entry.IdempotencyKey).
		Msg("ledger entry appended")
	return txn, nil
}

func validateEntry(entry ports.LedgerEntry) error {
	if entry.AmountPaise <= 0 {
		return fmt.Errorf("ledger amount must be positive, got %d", entry.AmountPaise)
	}
	if entry.IdempotencyKey == "" {
		return errors.New("ledger idempotency key is required")
	}
	return nil
}

func normalizePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return page, pageSize
}
