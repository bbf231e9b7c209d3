package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"merchant-settlement/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// WalletRepo implements ports.WalletRepository.
type WalletRepo struct {
	pool Pool
}

// NewWalletRepo creates a new WalletRepo.
func NewWalletRepo(pool Pool) *WalletRepo {
	return &WalletRepo{pool: pool}
}

// Ensure creates the merchant's wallet for currency if missing and returns it.
func (r *WalletRepo) Ensure(ctx context.Context, tx pgx.Tx, merchantID uuid.UUID, currency string) (*domain.Wallet, error) {
	insert := `INSERT INTO wallets (id, merchant_id, currency, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (merchant_id, currency) DO NOTHING`

	if _, err := tx.Exec(ctx, insert, uuid.New(), merchantID, currency, time.Now().UTC()); err != nil {
		return nil, fmt.Errorf("ensure wallet: %w", err)
	}

	query := `SELECT id, merchant_id, currency, created_at
		FROM wallets WHERE merchant_id = $1 AND currency = $2`

	w, err := scanWallet(tx.QueryRow(ctx, query, merchantID, currency))
	if err != nil {
		return nil, fmt.Errorf("ensure wallet: %w", err)
	}
	if w == nil {
		return nil, fmt.Errorf("ensure wallet: wallet for merchant %s not visible after insert", merchantID)
	}
	return w, nil
}

// GetByMerchantID fetches a wallet by merchant ID and currency (non-locking read).
func (r *WalletRepo) GetByMerchantID(ctx context.Context, merchantID uuid.UUID, currency string) (*domain.Wallet, error) {
	query := `SELECT id, merchant_id, currency, created_at
		FROM wallets WHERE merchant_id = $1 AND currency = $2`

	w, err := scanWallet(r.pool.QueryRow(ctx, query, merchantID, currency))
	if err != nil {
		return nil, fmt.Errorf("get wallet by merchant id: %w", err)
	}
	return w, nil
}

// GetByMerchantIDForUpdate fetches a wallet by merchant ID and currency with pessimistic locking.
// This MUST be called within a transaction.
func (r *WalletRepo) GetByMerchantIDForUpdate(ctx context.Context, tx pgx.Tx, merchantID uuid.UUID, currency string) (*domain.Wallet, error) {
	query := `SELECT id, merchant_id, currency, created_at
		FROM wallets WHERE merchant_id = $1 AND currency = $2 FOR UPDATE`

	w, err := scanWallet(tx.QueryRow(ctx, query, merchantID, currency))
	if err != nil {
		return nil, fmt.Errorf("get wallet for update by merchant: %w", err)
	}
	return w, nil
}

func scanWallet(row pgx.Row) (*domain.Wallet, error) {
	w := &domain.Wallet{}
	err := row.Scan(&w.ID, &w.MerchantID, &w.Currency, &w.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return w, nil
}
