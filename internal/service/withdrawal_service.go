package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"merchant-settlement/internal/core/domain"
	"merchant-settlement/internal/core/ports"
	"merchant-settlement/pkg/apperror"
	"merchant-settlement/pkg/metrics"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

// WithdrawalServiceImpl implements ports.WithdrawalService.
type WithdrawalServiceImpl struct {
	repo           ports.WithdrawalRepository
	ledger         ports.WalletLedger
	transactor     ports.DBTransactor
	minAmountPaise int64
	currency       string
	metrics        *metrics.SettlementMetrics
	log            zerolog.Logger
	now            func() time.Time
}

// NewWithdrawalService creates a new WithdrawalServiceImpl.
func NewWithdrawalService(
	repo ports.WithdrawalRepository,
	ledger ports.WalletLedger,
	transactor ports.DBTransactor,
	minAmountPaise int64,
	currency string,
	m *metrics.SettlementMetrics,
	log zerolog.Logger,
) *WithdrawalServiceImpl {
	return &WithdrawalServiceImpl{
		repo:           repo,
		ledger:         ledger,
		transactor:     transactor,
		minAmountPaise: minAmountPaise,
		currency:       currency,
		metrics:        m,
		log:            log,
		now:            func() time.Time { return time.Now().UTC() },
	}
}

// RequestWithdrawal opens a PENDING request after checking the payout
// destination, the minimum amount, the one-pending rule and the live balance.
func (s *WithdrawalServiceImpl) RequestWithdrawal(ctx context.Context, req ports.WithdrawalRequestInput) (*domain.WithdrawalRequest, error) {
	upiID := strings.TrimSpace(req.UPIID)
	if !domain.IsValidUPIID(upiID) {
		return nil, apperror.ErrInvalidPayoutDestination()
	}
	if req.AmountPaise < s.minAmountPaise {
		return nil, apperror.ErrBelowMinimumWithdrawal(s.minAmountPaise)
	}

	pending, err := s.repo.HasPending(ctx, req.MerchantID)
	if err != nil {
		return nil, apperror.ErrDatabaseError(err)
	}
	if pending {
		return nil, apperror.ErrPendingWithdrawalExists()
	}

	// APPROVED requests are already debited, so the live balance nets them out.
	balance, err := s.ledger.GetBalance(ctx, req.MerchantID)
	if err != nil {
		return nil, apperror.ErrDatabaseError(err)
	}
	if req.AmountPaise > balance {
		return nil, apperror.ErrInsufficientBalance()
	}

	now := s.now()
	w := &domain.WithdrawalRequest{
		ID:                        uuid.New(),
		MerchantID:                req.MerchantID,
		AmountPaise:               req.AmountPaise,
		Currency:                  s.currency,
		UPIID:                     upiID,
		Status:                    domain.WithdrawalStatusPending,
		RequestedAt:               now,
		BalanceBeforeRequestPaise: balance,
		UpdatedAt:                 now,
	}
	if err := s.repo.Create(ctx, w); err != nil {
		if errors.Is(err, domain.ErrWithdrawalAlreadyPending) {
			return nil, apperror.ErrPendingWithdrawalExists()
		}
		return nil, apperror.ErrDatabaseError(err)
	}

	s.metrics.IncWithdrawal(string(w.Status))
	s.log.Info().
		Str("withdrawal_id", w.ID.String()).
		Str("merchant_id", w.MerchantID.String()).
		Int64("amount_paise", w.AmountPaise).
		Int64("balance_paise", balance).
		Msg("withdrawal requested")

	return w, nil
}

// Approve debits the ledger and moves the request to APPROVED in one transaction.
// On insufficient balance the request stays PENDING.
func (s *WithdrawalServiceImpl) Approve(ctx context.Context, id uuid.UUID, adminID uuid.UUID) (*domain.WithdrawalRequest, error) {
	return s.transition(ctx, id, domain.WithdrawalStatusApproved, func(tx pgx.Tx, w *domain.WithdrawalRequest, now time.Time) error {
		metadata, err := json.Marshal(map[string]string{"upi_id": w.UPIID})
		if err != nil {
			return apperror.InternalError(err)
		}
		txn, err := s.ledger.DebitTx(ctx, tx, ports.LedgerEntry{
			MerchantID:     w.MerchantID,
			AmountPaise:    w.AmountPaise,
			IdempotencyKey: domain.BuildWithdrawalDebitKey(w.ID),
			Source:         domain.SourceWithdrawal,
			ReferenceType:  domain.ReferenceTypeWithdrawal,
			ReferenceID:    w.ID.String(),
			Metadata:       metadata,
		})
		if err != nil {
			if errors.Is(err, domain.ErrInsufficientBalance) {
				return apperror.ErrInsufficientBalance()
			}
			return apperror.InternalError(fmt.Errorf("debit wallet: %w", err))
		}

		w.TransactionID = &txn.ID
		w.ReviewedAt = &now
		w.ReviewedBy = &adminID
		return nil
	})
}

// Reject closes a PENDING request without touching the ledger.
func (s *WithdrawalServiceImpl) Reject(ctx context.Context, id uuid.UUID, adminID uuid.UUID, reason string) (*domain.WithdrawalRequest, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, apperror.ErrReasonRequired()
	}
	return s.transition(ctx, id, domain.WithdrawalStatusRejected, func(_ pgx.Tx, w *domain.WithdrawalRequest, now time.Time) error {
		w.RejectionReason = &reason
		w.ReviewedAt = &now
		w.ReviewedBy = &adminID
		return nil
	})
}

// MarkPaid records a completed manual payout.
func (s *WithdrawalServiceImpl) MarkPaid(ctx context.Context, id uuid.UUID, adminID uuid.UUID, payoutReference string) (*domain.WithdrawalRequest, error) {
	payoutReference = strings.TrimSpace(payoutReference)
	if payoutReference == "" {
		return nil, apperror.Validation("payout reference is required")
	}
	return s.transition(ctx, id, domain.WithdrawalStatusPaid, func(_ pgx.Tx, w *domain.WithdrawalRequest, now time.Time) error {
		w.PayoutReference = &payoutReference
		w.PaidAt = &now
		s.log.Debug().Str("withdrawal_id", w.ID.String()).Str("admin_id", adminID.String()).Msg("payout confirmed")
		return nil
	})
}

// MarkFailed records a failed payout and reverses the approval debit with a
// compensating credit in the same transaction.
func (s *WithdrawalServiceImpl) MarkFailed(ctx context.Context, id uuid.UUID, adminID uuid.UUID, reason string) (*domain.WithdrawalRequest, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, apperror.ErrReasonRequired()
	}
	return s.transition(ctx, id, domain.WithdrawalStatusFailed, func(tx pgx.Tx, w *domain.WithdrawalRequest, _ time.Time) error {
		w.FailureReason = &reason
		if w.TransactionID == nil {
			s.log.Warn().Str("withdrawal_id", w.ID.String()).Msg("approved withdrawal has no debit, nothing to reverse")
			return nil
		}

		metadata, err := json.Marshal(map[string]string{
			"reversed_key":   domain.BuildWithdrawalDebitKey(w.ID),
			"reversed_entry": w.TransactionID.String(),
			"reason":         reason,
			"admin_id":       adminID.String(),
		})
		if err != nil {
			return apperror.InternalError(err)
		}
		txn, err := s.ledger.CreditTx(ctx, tx, ports.LedgerEntry{
			MerchantID:     w.MerchantID,
			AmountPaise:    w.AmountPaise,
			IdempotencyKey: domain.BuildWithdrawalReversalKey(w.ID),
			Source:         domain.SourceWithdrawalReversal,
			ReferenceType:  domain.ReferenceTypeWithdrawal,
			ReferenceID:    w.ID.String(),
			Metadata:       metadata,
		})
		if err != nil {
			return apperror.InternalError(fmt.Errorf("reverse withdrawal debit: %w", err))
		}
		w.ReversalTransactionID = &txn.ID
		return nil
	})
}

// Get returns a withdrawal request by ID.
func (s *WithdrawalServiceImpl) Get(ctx context.Context, id uuid.UUID) (*domain.WithdrawalRequest, error) {
	w, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, apperror.ErrDatabaseError(err)
	}
	if w == nil {
		return nil, apperror.ErrNotFound("withdrawal")
	}
	return w, nil
}

// List returns a page of withdrawal requests.
func (s *WithdrawalServiceImpl) List(ctx context.Context, params ports.WithdrawalListParams) ([]domain.WithdrawalRequest, int64, error) {
	params.Page, params.PageSize = normalizePage(params.Page, params.PageSize)
	out, total, err := s.repo.List(ctx, params)
	if err != nil {
		return nil, 0, apperror.ErrDatabaseError(err)
	}
	return out, total, nil
}

// HasPendingRequest reports whether the merchant has a PENDING request. Always read live.
func (s *WithdrawalServiceImpl) HasPendingRequest(ctx context.Context, merchantID uuid.UUID) (bool, error) {
	pending, err := s.repo.HasPending(ctx, merchantID)
	if err != nil {
		return false, apperror.ErrDatabaseError(err)
	}
	return pending, nil
}

// OutstandingAmount totals the merchant's PENDING and APPROVED amounts. Always read live.
func (s *WithdrawalServiceImpl) OutstandingAmount(ctx context.Context, merchantID uuid.UUID) (int64, error) {
	total, err := s.repo.SumOutstanding(ctx, merchantID)
	if err != nil {
		return 0, apperror.ErrDatabaseError(err)
	}
	return total, nil
}

type transitionFunc func(tx pgx.Tx, w *domain.WithdrawalRequest, now time.Time) error

// transition locks the request, checks the edge, applies mutate and persists,
// all inside one transaction.
func (s *WithdrawalServiceImpl) transition(ctx context.Context, id uuid.UUID, to domain.WithdrawalStatus, mutate transitionFunc) (*domain.WithdrawalRequest, error) {
	tx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	w, err := s.repo.GetByIDForUpdate(ctx, tx, id)
	if err != nil {
		return nil, apperror.ErrDatabaseError(err)
	}
	if w == nil {
		return nil, apperror.ErrNotFound("withdrawal")
	}

	from := w.Status
	if !from.CanTransitionTo(to) {
		return nil, apperror.ErrInvalidTransition(string(from), string(to))
	}

	now := s.now()
	if err := mutate(tx, w, now); err != nil {
		if isAppError(err) {
			return nil, err
		}
		return nil, apperror.InternalError(err)
	}
	w.Status = to
	w.UpdatedAt = now

	if err := s.repo.UpdateTransition(ctx, tx, w, from); err != nil {
		if errors.Is(err, domain.ErrStaleWithdrawal) {
			return nil, apperror.ErrInvalidTransition(string(from), string(to))
		}
		return nil, apperror.ErrDatabaseError(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	s.metrics.IncWithdrawal(string(to))
	s.log.Info().
		Str("withdrawal_id", w.ID.String()).
		Str("merchant_id", w.MerchantID.String()).
		Str("from", string(from)).
		Str("to", string(to)).
		Msg("withdrawal transitioned")

	return w, nil
}

// isAppError reports whether err already carries an AppError.
func isAppError(err error) bool {
	var appErr *apperror.AppError
	return errors.As(err, &appErr)
}
