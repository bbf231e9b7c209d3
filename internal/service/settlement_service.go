package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"merchant-settlement/internal/core/domain"
	"merchant-settlement/internal/core/ports"
	"merchant-settlement/pkg/apperror"
	"merchant-settlement/pkg/metrics"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// SettlementServiceImpl implements ports.SettlementService.
//
// Profit crediting and invoice creation are independent, individually
// idempotent steps. A failed credit never blocks the invoice; the reconciler
// re-posts missing credits later.
type SettlementServiceImpl struct {
	orders   ports.OrderRepository
	stores   ports.StoreRepository
	invoices ports.InvoiceRepository
	builder  ports.InvoiceBuilder
	ledger   ports.WalletLedger
	cache    ports.SettlementCache
	cacheTTL time.Duration
	metrics  *metrics.SettlementMetrics
	log      zerolog.Logger
}

// NewSettlementService creates a new SettlementServiceImpl.
func NewSettlementService(
	orders ports.OrderRepository,
	stores ports.StoreRepository,
	invoices ports.InvoiceRepository,
	builder ports.InvoiceBuilder,
	ledger ports.WalletLedger,
	cache ports.SettlementCache,
	cacheTTL time.Duration,
	m *metrics.SettlementMetrics,
	log zerolog.Logger,
) *SettlementServiceImpl {
	return &SettlementServiceImpl{
		orders:   orders,
		stores:   stores,
		invoices: invoices,
		builder:  builder,
		ledger:   ledger,
		cache:    cache,
		cacheTTL: cacheTTL,
		metrics:  m,
		log:      log,
	}
}

// Settle produces the order's invoice and credits the merchant's profit.
// Safe to call any number of times for the same order.
func (s *SettlementServiceImpl) Settle(ctx context.Context, order *domain.Order) (*domain.FulfillmentInvoice, error) {
	start := time.Now()
	if order == nil {
		return nil, apperror.Validation("order is required")
	}
	if order.Status == domain.OrderStatusCancelled {
		return nil, apperror.ErrOrderNotSettleable(string(order.Status))
	}

	cacheKey := domain.BuildSettlementCacheKey(order.ID)

	// Layer 1: Redis fast path
	if inv := s.cached(ctx, cacheKey); inv != nil {
		s.metrics.ObserveSettlement(metrics.OutcomeExisting, time.Since(start))
		return inv, nil
	}

	// Layer 2: the invoice itself
	existing, err := s.invoices.GetByOrderID(ctx, order.ID)
	if err != nil {
		s.metrics.ObserveSettlement(metrics.OutcomeFailed, time.Since(start))
		return nil, apperror.ErrDatabaseError(fmt.Errorf("lookup invoice: %w", err))
	}
	if existing != nil {
		s.remember(ctx, cacheKey, existing)
		s.metrics.ObserveSettlement(metrics.OutcomeExisting, time.Since(start))
		return existing, nil
	}

	store, err := s.stores.GetByID(ctx, order.StoreID)
	if err != nil {
		s.metrics.ObserveSettlement(metrics.OutcomeFailed, time.Since(start))
		return nil, apperror.ErrDatabaseError(fmt.Errorf("lookup store: %w", err))
	}
	if store == nil {
		s.metrics.ObserveSettlement(metrics.OutcomeFailed, time.Since(start))
		return nil, apperror.ErrStoreNotFound()
	}

	costs, err := s.builder.Estimate(ctx, order)
	if err != nil {
		s.metrics.ObserveSettlement(metrics.OutcomeFailed, time.Since(start))
		return nil, apperror.ErrInvoiceGeneration(err)
	}

	profit := costs.Profit(order.Total)
	if profitPaise := domain.ToPaise(profit); profitPaise > 0 {
		if err := s.creditProfit(ctx, order.ID, order.MerchantID, profitPaise, order.Total.String(), costs.TotalAmount.String()); err != nil {
			s.metrics.IncProfitCreditFailure()
			s.log.Error().Err(err).
				Str("order_id", order.ID.String()).
				Str("merchant_id", order.MerchantID.String()).
				Int64("profit_paise", profitPaise).
				Msg("profit credit failed, continuing with invoice")
		}
	} else {
		s.log.Info().
			Str("order_id", order.ID.String()).
			Str("profit", profit.String()).
			Msg("no positive profit, skipping wallet credit")
	}

	inv, err := s.builder.BuildFromBreakdown(ctx, order, costs)
	if err != nil {
		s.metrics.ObserveSettlement(metrics.OutcomeFailed, time.Since(start))
		s.log.Error().Err(err).Str("order_id", order.ID.String()).Msg("invoice generation failed")
		return nil, apperror.ErrInvoiceGeneration(err)
	}

	s.remember(ctx, cacheKey, inv)
	s.metrics.ObserveSettlement(metrics.OutcomeCreated, time.Since(start))

	s.log.Info().
		Str("order_id", order.ID.String()).
		Str("merchant_id", order.MerchantID.String()).
		Str("store", store.Name).
		Str("invoice_number", inv.InvoiceNumber).
		Str("merchant_profit", inv.MerchantProfit.String()).
		Int("skipped_items", costs.SkippedItems).
		Msg("order settled")

	return inv, nil
}

// SettleByID loads the order and settles it.
func (s *SettlementServiceImpl) SettleByID(ctx context.Context, orderID uuid.UUID) (*domain.FulfillmentInvoice, error) {
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("lookup order: %w", err))
	}
	if order == nil {
		return nil, apperror.ErrNotFound("order")
	}
	return s.Settle(ctx, order)
}

// GetInvoice returns the invoice of an order.
func (s *SettlementServiceImpl) GetInvoice(ctx context.Context, orderID uuid.UUID) (*domain.FulfillmentInvoice, error) {
	inv, err := s.invoices.GetByOrderID(ctx, orderID)
	if err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("lookup invoice: %w", err))
	}
	if inv == nil {
		return nil, apperror.ErrNotFound("invoice")
	}
	return inv, nil
}

// CreditProfit posts the profit credit recorded on an invoice. Replays are no-ops.
func (s *SettlementServiceImpl) CreditProfit(ctx context.Context, inv *domain.FulfillmentInvoice) error {
	profitPaise := domain.ToPaise(inv.MerchantProfit)
	if profitPaise <= 0 {
		return nil
	}
	if err := s.creditProfit(ctx, inv.OrderID, inv.MerchantID, profitPaise,
		inv.CustomerPaidAmount.String(), inv.TotalAmount.String()); err != nil {
		s.metrics.IncProfitCreditFailure()
		return apperror.InternalError(err)
	}
	return nil
}

func (s *SettlementServiceImpl) creditProfit(ctx context.Context, orderID, merchantID uuid.UUID, profitPaise int64, paid, cost string) error {
	metadata, err := json.Marshal(map[string]string{
		"customer_paid": paid,
		"total_cost":    cost,
	})
	if err != nil {
		return fmt.Errorf("marshal credit metadata: %w", err)
	}

	txn, err := s.ledger.Credit(ctx, ports.LedgerEntry{
		MerchantID:     merchantID,
		AmountPaise:    profitPaise,
		IdempotencyKey: domain.BuildProfitCreditKey(orderID),
		Source:         domain.SourceOrderProfit,
		ReferenceType:  domain.ReferenceTypeOrder,
		ReferenceID:    orderID.String(),
		Metadata:       metadata,
	})
	if err != nil {
		return fmt.Errorf("credit profit: %w", err)
	}

	s.log.Info().
		Str("order_id", orderID.String()).
		Str("merchant_id", merchantID.String()).
		Str("transaction_id", txn.ID.String()).
		Int64("amount_paise", txn.AmountPaise).
		Msg("merchant profit credited")
	return nil
}

func (s *SettlementServiceImpl) cached(ctx context.Context, key string) *domain.FulfillmentInvoice {
	if s.cache == nil {
		return nil
	}
	raw, err := s.cache.Get(ctx, key)
	if err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("redis settlement check failed, falling through to DB")
		return nil
	}
	if raw == nil {
		return nil
	}
	var inv domain.FulfillmentInvoice
	if err := json.Unmarshal(raw, &inv); err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("discarding unreadable cached invoice")
		return nil
	}
	return &inv
}

func (s *SettlementServiceImpl) remember(ctx context.Context, key string, inv *domain.FulfillmentInvoice) {
	if s.cache == nil {
		return
	}
	raw, err := json.Marshal(inv)
	if err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("failed to marshal invoice for cache")
		return
	}
	if err := s.cache.Set(ctx, key, raw, s.cacheTTL); err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("failed to cache settlement in redis")
	}
}
