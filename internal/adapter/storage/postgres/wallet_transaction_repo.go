package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"merchant-settlement/internal/core/domain"
	"merchant-settlement/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const walletTxColumns = `id, wallet_id, merchant_id, type, amount_paise, currency, idempotency_key,
		source, reference_type, reference_id, metadata, created_at`

// signedAmountSQL sums ledger entries with debits negated.
const signedAmountSQL = `COALESCE(SUM(CASE WHEN type = 'CREDIT' THEN amount_paise ELSE -amount_paise END), 0)`

// WalletTransactionRepo implements ports.WalletTransactionRepository.
type WalletTransactionRepo struct {
	pool Pool
}

// NewWalletTransactionRepo creates a new WalletTransactionRepo.
func NewWalletTransactionRepo(pool Pool) *WalletTransactionRepo {
	return &WalletTransactionRepo{pool: pool}
}

// Create appends a ledger entry within a database transaction.
// Returns domain.ErrDuplicateIdempotencyKey when the key already exists.
func (r *WalletTransactionRepo) Create(ctx context.Context, tx pgx.Tx, t *domain.WalletTransaction) error {
	query := `INSERT INTO wallet_transactions (` + walletTxColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	_, err := tx.Exec(ctx, query,
		t.ID, t.WalletID, t.MerchantID, t.Type, t.AmountPaise, t.Currency,
		t.IdempotencyKey, t.Source, t.ReferenceType, t.ReferenceID, nullableJSON(t.Metadata), t.CreatedAt,
	)
	if err != nil {
		if mapped := mapUniqueViolation(err); mapped != err {
			return mapped
		}
		return fmt.Errorf("insert wallet transaction: %w", err)
	}
	return nil
}

// GetByIdempotencyKey fetches the entry recorded for key, or nil.
func (r *WalletTransactionRepo) GetByIdempotencyKey(ctx context.Context, key string) (*domain.WalletTransaction, error) {
	query := `SELECT ` + walletTxColumns + ` FROM wallet_transactions WHERE idempotency_key = $1`

	t, err := scanWalletTransaction(r.pool.QueryRow(ctx, query, key))
	if err != nil {
		return nil, fmt.Errorf("get wallet transaction by key: %w", err)
	}
	return t, nil
}

// GetByIdempotencyKeyTx is GetByIdempotencyKey inside tx.
func (r *WalletTransactionRepo) GetByIdempotencyKeyTx(ctx context.Context, tx pgx.Tx, key string) (*domain.WalletTransaction, error) {
	query := `SELECT ` + walletTxColumns + ` FROM wallet_transactions WHERE idempotency_key = $1`

	t, err := scanWalletTransaction(tx.QueryRow(ctx, query, key))
	if err != nil {
		return nil, fmt.Errorf("get wallet transaction by key: %w", err)
	}
	return t, nil
}

// BalanceTx derives the wallet balance inside tx. Callers lock the wallet row first.
func (r *WalletTransactionRepo) BalanceTx(ctx context.Context, tx pgx.Tx, walletID uuid.UUID) (int64, error) {
	query := `SELECT ` + signedAmountSQL + ` FROM wallet_transactions WHERE wallet_id = $1`

	var balance int64
	if err := tx.QueryRow(ctx, query, walletID).Scan(&balance); err != nil {
		return 0, fmt.Errorf("sum wallet balance: %w", err)
	}
	return balance, nil
}

// Balance derives the merchant's balance in currency.
func (r *WalletTransactionRepo) Balance(ctx context.Context, merchantID uuid.UUID, currency string) (int64, error) {
	query := `SELECT ` + signedAmountSQL + ` FROM wallet_transactions WHERE merchant_id = $1 AND currency = $2`

	var balance int64
	if err := r.pool.QueryRow(ctx, query, merchantID, currency).Scan(&balance); err != nil {
		return 0, fmt.Errorf("sum merchant balance: %w", err)
	}
	return balance, nil
}

// List fetches ledger entries with filtering and pagination, newest first.
func (r *WalletTransactionRepo) List(ctx context.Context, params ports.LedgerListParams) ([]domain.WalletTransaction, int64, error) {
	conditions := []string{"merchant_id = $1"}
	args := []any{params.MerchantID}

	if params.Type != nil {
		conditions = append(conditions, fmt.Sprintf("type = $%d", len(args)+1))
		args = append(args, *params.Type)
	}

	where := "WHERE " + strings.Join(conditions, " AND ")

	var total int64
	countQuery := "SELECT COUNT(*) FROM wallet_transactions " + where
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count wallet transactions: %w", err)
	}

	offset := (params.Page - 1) * params.PageSize
	dataQuery := fmt.Sprintf(`SELECT %s FROM wallet_transactions %s
		ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, walletTxColumns, where, len(args)+1, len(args)+2)
	args = append(args, params.PageSize, offset)

	rows, err := r.pool.Query(ctx, dataQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list wallet transactions: %w", err)
	}
	defer rows.Close()

	var txns []domain.WalletTransaction
	for rows.Next() {
		t, err := scanWalletTransaction(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan wallet transaction row: %w", err)
		}
		txns = append(txns, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate wallet transaction rows: %w", err)
	}
	return txns, total, nil
}

func scanWalletTransaction(row pgx.Row) (*domain.WalletTransaction, error) {
	t := &domain.WalletTransaction{}
	var metadata []byte
	err := row.Scan(
		&t.ID, &t.WalletID, &t.MerchantID, &t.Type, &t.AmountPaise, &t.Currency,
		&t.IdempotencyKey, &t.Source, &t.ReferenceType, &t.ReferenceID, &metadata, &t.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if len(metadata) > 0 {
		t.Metadata = metadata
	}
	return t, nil
}

// nullableJSON stores empty metadata as SQL NULL.
func nullableJSON(raw []byte) any {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}
