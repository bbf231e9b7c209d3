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

const withdrawalColumns = `id, merchant_id, amount_paise, currency, upi_id, status, requested_at,
		reviewed_at, reviewed_by, paid_at, rejection_reason, failure_reason, payout_reference,
		balance_before_request_paise, transaction_id, reversal_transaction_id, updated_at`

// WithdrawalRepo implements ports.WithdrawalRepository.
type WithdrawalRepo struct {
	pool Pool
}

// NewWithdrawalRepo creates a new WithdrawalRepo.
func NewWithdrawalRepo(pool Pool) *WithdrawalRepo {
	return &WithdrawalRepo{pool: pool}
}

// Create inserts a new request. The partial unique index on pending requests
// surfaces as domain.ErrWithdrawalAlreadyPending.
func (r *WithdrawalRepo) Create(ctx context.Context, w *domain.WithdrawalRequest) error {
	query := `INSERT INTO withdrawal_requests (` + withdrawalColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`

	_, err := r.pool.Exec(ctx, query,
		w.ID, w.MerchantID, w.AmountPaise, w.Currency, w.UPIID, w.Status, w.RequestedAt,
		w.ReviewedAt, w.ReviewedBy, w.PaidAt, w.RejectionReason, w.FailureReason, w.PayoutReference,
		w.BalanceBeforeRequestPaise, w.TransactionID, w.ReversalTransactionID, w.UpdatedAt,
	)
	if err != nil {
		if mapped := mapUniqueViolation(err); mapped != err {
			return mapped
		}
		return fmt.Errorf("insert withdrawal request: %w", err)
	}
	return nil
}

// GetByID fetches a request, or nil.
func (r *WithdrawalRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.WithdrawalRequest, error) {
	query := `SELECT ` + withdrawalColumns + ` FROM withdrawal_requests WHERE id = $1`

	w, err := scanWithdrawal(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, fmt.Errorf("get withdrawal by id: %w", err)
	}
	return w, nil
}

// GetByIDForUpdate fetches a request with pessimistic locking.
// This MUST be called within a transaction.
func (r *WithdrawalRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.WithdrawalRequest, error) {
	query := `SELECT ` + withdrawalColumns + ` FROM withdrawal_requests WHERE id = $1 FOR UPDATE`

	w, err := scanWithdrawal(tx.QueryRow(ctx, query, id))
	if err != nil {
		return nil, fmt.Errorf("get withdrawal for update: %w", err)
	}
	return w, nil
}

// UpdateTransition writes the mutable fields of w, guarded by the expected prior status.
func (r *WithdrawalRepo) UpdateTransition(ctx context.Context, tx pgx.Tx, w *domain.WithdrawalRequest, from domain.WithdrawalStatus) error {
	query := `UPDATE withdrawal_requests SET
		status = $1, reviewed_at = $2, reviewed_by = $3, paid_at = $4,
		rejection_reason = $5, failure_reason = $6, payout_reference = $7,
		transaction_id = $8, reversal_transaction_id = $9, updated_at = $10
		WHERE id = $11 AND status = $12`

	tag, err := tx.Exec(ctx, query,
		w.Status, w.ReviewedAt, w.ReviewedBy, w.PaidAt,
		w.RejectionReason, w.FailureReason, w.PayoutReference,
		w.TransactionID, w.ReversalTransactionID, w.UpdatedAt,
		w.ID, from,
	)
	if err != nil {
		return fmt.Errorf("update withdrawal status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrStaleWithdrawal
	}
	return nil
}

// HasPending reports whether the merchant has a PENDING request.
func (r *WithdrawalRepo) HasPending(ctx context.Context, merchantID uuid.UUID) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM withdrawal_requests WHERE merchant_id = $1 AND status = $2)`

	var exists bool
	if err := r.pool.QueryRow(ctx, query, merchantID, domain.WithdrawalStatusPending).Scan(&exists); err != nil {
		return false, fmt.Errorf("check pending withdrawal: %w", err)
	}
	return exists, nil
}

// SumOutstanding totals PENDING and APPROVED request amounts for the merchant.
func (r *WithdrawalRepo) SumOutstanding(ctx context.Context, merchantID uuid.UUID) (int64, error) {
	query := `SELECT COALESCE(SUM(amount_paise), 0) FROM withdrawal_requests
		WHERE merchant_id = $1 AND status IN ($2, $3)`

	var total int64
	err := r.pool.QueryRow(ctx, query, merchantID,
		domain.WithdrawalStatusPending, domain.WithdrawalStatusApproved).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("sum outstanding withdrawals: %w", err)
	}
	return total, nil
}

// List fetches requests with filtering and pagination, newest first.
func (r *WithdrawalRepo) List(ctx context.Context, params ports.WithdrawalListParams) ([]domain.WithdrawalRequest, int64, error) {
	var conditions []string
	var args []any

	if params.MerchantID != nil {
		args = append(args, *params.MerchantID)
		conditions = append(conditions, fmt.Sprintf("merchant_id = $%d", len(args)))
	}
	if params.Status != nil {
		args = append(args, *params.Status)
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	var total int64
	countQuery := "SELECT COUNT(*) FROM withdrawal_requests " + where
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count withdrawals: %w", err)
	}

	offset := (params.Page - 1) * params.PageSize
	dataQuery := fmt.Sprintf(`SELECT %s FROM withdrawal_requests %s
		ORDER BY requested_at DESC LIMIT $%d OFFSET $%d`, withdrawalColumns, where, len(args)+1, len(args)+2)
	args = append(args, params.PageSize, offset)

	rows, err := r.pool.Query(ctx, dataQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list withdrawals: %w", err)
	}
	defer rows.Close()

	var out []domain.WithdrawalRequest
	for rows.Next() {
		w, err := scanWithdrawal(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan withdrawal row: %w", err)
		}
		out = append(out, *w)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate withdrawal rows: %w", err)
	}
	return out, total, nil
}

func scanWithdrawal(row pgx.Row) (*domain.WithdrawalRequest, error) {
	w := &domain.WithdrawalRequest{}
	err := row.Scan(
		&w.ID, &w.MerchantID, &w.AmountPaise, &w.Currency, &w.UPIID, &w.Status, &w.RequestedAt,
		&w.ReviewedAt, &w.ReviewedBy, &w.PaidAt, &w.RejectionReason, &w.FailureReason, &w.PayoutReference,
		&w.BalanceBeforeRequestPaise, &w.TransactionID, &w.ReversalTransactionID, &w.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return w, nil
}
