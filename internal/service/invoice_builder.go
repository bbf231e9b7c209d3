package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"merchant-settlement/internal/core/domain"
	"merchant-settlement/internal/core/ports"
	"merchant-settlement/pkg/metrics"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// InvoicePolicy holds the cost model and the number-collision retry bounds.
type InvoicePolicy struct {
	ShippingShare decimal.Decimal // fraction of the order's shipping charged to the merchant
	TaxRate       decimal.Decimal // flat rate applied to production cost
	MaxAttempts   int
	RetryMinDelay time.Duration
	RetryMaxDelay time.Duration
}

// DefaultInvoicePolicy returns the production defaults.
func DefaultInvoicePolicy() InvoicePolicy {
	return InvoicePolicy{
		ShippingShare: decimal.RequireFromString("0.8"),
		TaxRate:       decimal.RequireFromString("0.12"),
		MaxAttempts:   5,
		RetryMinDelay: 10 * time.Millisecond,
		RetryMaxDelay: 60 * time.Millisecond,
	}
}

// InvoiceBuilderImpl implements ports.InvoiceBuilder.
type InvoiceBuilderImpl struct {
	invoices ports.InvoiceRepository
	orders   ports.OrderRepository
	costs    ports.CostResolver
	numbers  ports.InvoiceNumberAllocator
	policy   InvoicePolicy
	metrics  *metrics.SettlementMetrics
	log      zerolog.Logger
	now      func() time.Time
}

// NewInvoiceBuilder creates a new InvoiceBuilderImpl.
func NewInvoiceBuilder(
	invoices ports.InvoiceRepository,
	orders ports.OrderRepository,
	costs ports.CostResolver,
	numbers ports.InvoiceNumberAllocator,
	policy InvoicePolicy,
	m *metrics.SettlementMetrics,
	log zerolog.Logger,
) *InvoiceBuilderImpl {
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}
	return &InvoiceBuilderImpl{
		invoices: invoices,
		orders:   orders,
		costs:    costs,
		numbers:  numbers,
		policy:   policy,
		metrics:  m,
		log:      log,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Estimate computes the cost basis of an order. Items whose product no longer
// resolves are skipped and counted in SkippedItems.
func (b *InvoiceBuilderImpl) Estimate(ctx context.Context, order *domain.Order) (*domain.CostBreakdown, error) {
	costs := &domain.CostBreakdown{Items: make([]domain.InvoiceItem, 0, len(order.Items))}
	production := decimal.Zero

	for _, item := range order.Items {
		unit, err := b.costs.ResolveUnitCost(ctx, item.ProductID, item.Variant)
		if err != nil {
			if errors.Is(err, domain.ErrProductNotFound) {
				b.log.Warn().
					Str("order_id", order.ID.String()).
					Str("product_id", item.ProductID.String()).
					Msg("product not found, item excluded from invoice")
				costs.SkippedItems++
				continue
			}
			return nil, fmt.Errorf("resolve unit cost: %w", err)
		}

		costs.Items = append(costs.Items, domain.InvoiceItem{
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			Quantity:    item.Quantity,
			UnitCost:    unit,
			Variant:     item.Variant,
		})
		production = production.Add(unit.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}

	costs.ProductionCost = domain.RoundMoney(production)
	costs.ShippingCost = domain.RoundMoney(order.Shipping.Mul(b.policy.ShippingShare))
	costs.Tax = domain.RoundMoney(costs.ProductionCost.Mul(b.policy.TaxRate))
	costs.TotalAmount = costs.ProductionCost.Add(costs.ShippingCost).Add(costs.Tax)
	return costs, nil
}

// Build returns the order's invoice, creating it on first call.
func (b *InvoiceBuilderImpl) Build(ctx context.Context, order *domain.Order) (*domain.FulfillmentInvoice, error) {
	existing, err := b.invoices.GetByOrderID(ctx, order.ID)
	if err != nil {
		return nil, fmt.Errorf("lookup invoice: %w", err)
	}
	if existing != nil {
		return existing, nil
	}

	costs, err := b.Estimate(ctx, order)
	if err != nil {
		return nil, err
	}
	return b.BuildFromBreakdown(ctx, order, costs)
}

// BuildFromBreakdown persists the invoice for an already computed cost basis.
// A concurrent winner's invoice is returned when the order already has one.
func (b *InvoiceBuilderImpl) BuildFromBreakdown(ctx context.Context, order *domain.Order, costs *domain.CostBreakdown) (*domain.FulfillmentInvoice, error) {
	now := b.now()
	inv := &domain.FulfillmentInvoice{
		ID:                 uuid.New(),
		OrderID:            order.ID,
		MerchantID:         order.MerchantID,
		StoreID:            order.StoreID,
		Items:              costs.Items,
		ProductionCost:     costs.ProductionCost,
		ShippingCost:       costs.ShippingCost,
		Tax:                costs.Tax,
		TotalAmount:        costs.TotalAmount,
		CustomerPaidAmount: order.Total,
		MerchantProfit:     costs.Profit(order.Total),
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if order.IsPrepaid() {
		inv.Status = domain.InvoiceStatusPaid
		inv.PaymentDetails = domain.PaymentDetails{Method: domain.SettlementDeductedFromRevenue, AutoPaid: true}
		inv.PaidAt = &now
	} else {
		inv.Status = domain.InvoiceStatusPending
		inv.PaymentDetails = domain.PaymentDetails{Method: domain.SettlementAwaitingMerchantPayment}
	}

	for attempt := 1; attempt <= b.policy.MaxAttempts; attempt++ {
		number, err := b.numbers.Allocate(ctx, now.Year())
		if err != nil {
			return nil, fmt.Errorf("allocate invoice number: %w", err)
		}
		inv.InvoiceNumber = number

		err = b.invoices.Create(ctx, inv)
		switch {
		case err == nil:
			b.log.Info().
				Str("order_id", order.ID.String()).
				Str("invoice_number", inv.InvoiceNumber).
				Str("status", string(inv.Status)).
				Int("attempt", attempt).
				Msg("fulfillment invoice created")
			b.project(ctx, inv)
			return inv, nil

		case errors.Is(err, domain.ErrInvoiceOrderExists):
			existing, getErr := b.invoices.GetByOrderID(ctx, order.ID)
			if getErr != nil {
				return nil, fmt.Errorf("refetch invoice after conflict: %w", getErr)
			}
			if existing == nil {
				return nil, fmt.Errorf("invoice for order %s conflicted but was not found", order.ID)
			}
			return existing, nil

		case errors.Is(err, domain.ErrInvoiceNumberTaken):
			b.metrics.IncNumberCollision()
			b.log.Debug().
				Str("order_id", order.ID.String()).
				Str("invoice_number", number).
				Int("attempt", attempt).
				Msg("invoice number collision, retrying")
			if attempt < b.policy.MaxAttempts {
				if err := b.backoff(ctx); err != nil {
					return nil, fmt.Errorf("invoice retry interrupted: %w", err)
				}
			}

		default:
			return nil, fmt.Errorf("insert invoice: %w", err)
		}
	}

	return nil, fmt.Errorf("invoice number still taken after %d attempts: %w", b.policy.MaxAttempts, domain.ErrInvoiceNumberTaken)
}

// project writes the invoice outcome onto the order. Failures are logged only:
// the invoice is authoritative and the projection can be rewritten later.
func (b *InvoiceBuilderImpl) project(ctx context.Context, inv *domain.FulfillmentInvoice) {
	fp := domain.FulfillmentPayment{
		Status:             inv.Status,
		WalletAppliedPaise: 0,
		TotalAmountPaise:   domain.ToPaise(inv.TotalAmount),
	}
	if err := b.orders.UpdateFulfillmentPayment(ctx, inv.OrderID, fp); err != nil {
		b.log.Error().Err(err).
			Str("order_id", inv.OrderID.String()).
			Str("invoice_number", inv.InvoiceNumber).
			Msg("failed to update order fulfillment payment")
	}
}

// backoff sleeps a random delay within the policy window to desynchronize colliding writers.
func (b *InvoiceBuilderImpl) backoff(ctx context.Context) error {
	d := b.policy.RetryMinDelay
	if spread := b.policy.RetryMaxDelay - b.policy.RetryMinDelay; spread > 0 {
		d += rand.N(spread)
	}
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
