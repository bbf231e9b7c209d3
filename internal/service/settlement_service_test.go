package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"merchant-settlement/internal/core/domain"
	"merchant-settlement/internal/core/ports"
	"merchant-settlement/internal/core/ports/mocks"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type settlementTestDeps struct {
	svc      *SettlementServiceImpl
	orders   *mocks.MockOrderRepository
	stores   *mocks.MockStoreRepository
	invoices *mocks.MockInvoiceRepository
	builder  *mocks.MockInvoiceBuilder
	ledger   *mocks.MockWalletLedger
	cache    *mocks.MockSettlementCache
}

func setupSettlementService(t *testing.T, withCache bool) *settlementTestDeps {
	ctrl := gomock.NewController(t)
	d := &settlementTestDeps{
		orders:   mocks.NewMockOrderRepository(ctrl),
		stores:   mocks.NewMockStoreRepository(ctrl),
		invoices: mocks.NewMockInvoiceRepository(ctrl),
		builder:  mocks.NewMockInvoiceBuilder(ctrl),
		ledger:   mocks.NewMockWalletLedger(ctrl),
		cache:    mocks.NewMockSettlementCache(ctrl),
	}
	var cache ports.SettlementCache
	if withCache {
		cache = d.cache
	}
	d.svc = NewSettlementService(d.orders, d.stores, d.invoices, d.builder, d.ledger, cache, time.Hour, nil, newTestLogger())
	return d
}

func testBreakdown(total string) *domain.CostBreakdown {
	return &domain.CostBreakdown{
		ProductionCost: dec(total),
		ShippingCost:   decimal.Zero,
		Tax:            decimal.Zero,
		TotalAmount:    dec(total),
	}
}

func TestSettlementService_Settle_CacheHit(t *testing.T) {
	d := setupSettlementService(t, true)
	order, _, _ := newTestOrder(domain.PaymentMethodOnline)
	cached := domain.FulfillmentInvoice{ID: uuid.New(), OrderID: order.ID, InvoiceNumber: "INV-2026-0004"}
	raw, err := json.Marshal(cached)
	require.NoError(t, err)

	d.cache.EXPECT().Get(gomock.Any(), domain.BuildSettlementCacheKey(order.ID)).Return(raw, nil)

	inv, err := d.svc.Settle(context.Background(), order)
	require.NoError(t, err)
	assert.Equal(t, "INV-2026-0004", inv.InvoiceNumber)
}

func TestSettlementService_Settle_CacheErrorFallsThrough(t *testing.T) {
	d := setupSettlementService(t, true)
	order, _, _ := newTestOrder(domain.PaymentMethodOnline)
	existing := &domain.FulfillmentInvoice{ID: uuid.New(), OrderID: order.ID, InvoiceNumber: "INV-2026-0002"}
	key := domain.BuildSettlementCacheKey(order.ID)

	d.cache.EXPECT().Get(gomock.Any(), key).Return(nil, errors.New("redis down"))
	d.invoices.EXPECT().GetByOrderID(gomock.Any(), order.ID).Return(existing, nil)
	d.cache.EXPECT().Set(gomock.Any(), key, gomock.Any(), time.Hour).Return(errors.New("redis down"))

	inv, err := d.svc.Settle(context.Background(), order)
	require.NoError(t, err)
	assert.Same(t, existing, inv)
}

func TestSettlementService_Settle_ExistingInvoice(t *testing.T) {
	d := setupSettlementService(t, false)
	order, _, _ := newTestOrder(domain.PaymentMethodOnline)
	existing := &domain.FulfillmentInvoice{ID: uuid.New(), OrderID: order.ID}

	d.invoices.EXPECT().GetByOrderID(gomock.Any(), order.ID).Return(existing, nil)

	inv, err := d.svc.Settle(context.Background(), order)
	require.NoError(t, err)
	assert.Same(t, existing, inv)
}

func TestSettlementService_Settle_Rejections(t *testing.T) {
	t.Run("nil order", func(t *testing.T) {
		d := setupSettlementService(t, false)
		_, err := d.svc.Settle(context.Background(), nil)
		assertAppError(t, err, "VAL_001")
	})

	t.Run("cancelled order", func(t *testing.T) {
		d := setupSettlementService(t, false)
		order, _, _ := newTestOrder(domain.PaymentMethodOnline)
		order.Status = domain.OrderStatusCancelled
		_, err := d.svc.Settle(context.Background(), order)
		assertAppError(t, err, "SET_004")
	})

	t.Run("invoice lookup fails", func(t *testing.T) {
		d := setupSettlementService(t, false)
		order, _, _ := newTestOrder(domain.PaymentMethodOnline)
		d.invoices.EXPECT().GetByOrderID(gomock.Any(), order.ID).Return(nil, errors.New("timeout"))
		_, err := d.svc.Settle(context.Background(), order)
		assertAppError(t, err, "SYS_001")
	})

	t.Run("store missing", func(t *testing.T) {
		d := setupSettlementService(t, false)
		order, _, _ := newTestOrder(domain.PaymentMethodOnline)
		d.invoices.EXPECT().GetByOrderID(gomock.Any(), order.ID).Return(nil, nil)
		d.stores.EXPECT().GetByID(gomock.Any(), order.StoreID).Return(nil, nil)
		_, err := d.svc.Settle(context.Background(), order)
		assertAppError(t, err, "SET_002")
	})

	t.Run("estimate fails", func(t *testing.T) {
		d := setupSettlementService(t, false)
		order, _, _ := newTestOrder(domain.PaymentMethodOnline)
		d.invoices.EXPECT().GetByOrderID(gomock.Any(), order.ID).Return(nil, nil)
		d.stores.EXPECT().GetByID(gomock.Any(), order.StoreID).Return(&domain.Store{ID: order.StoreID}, nil)
		d.builder.EXPECT().Estimate(gomock.Any(), order).Return(nil, errors.New("catalog down"))
		_, err := d.svc.Settle(context.Background(), order)
		assertAppError(t, err, "SET_001")
	})
}

func TestSettlementService_Settle_CreditsProfitThenInvoices(t *testing.T) {
	d := setupSettlementService(t, false)
	order, _, _ := newTestOrder(domain.PaymentMethodOnline)
	costs := testBreakdown("32.8")
	built := &domain.FulfillmentInvoice{ID: uuid.New(), OrderID: order.ID, InvoiceNumber: "INV-2026-0001", MerchantProfit: dec("27.2")}

	d.invoices.EXPECT().GetByOrderID(gomock.Any(), order.ID).Return(nil, nil)
	d.stores.EXPECT().GetByID(gomock.Any(), order.StoreID).Return(&domain.Store{ID: order.StoreID, Name: "Acme"}, nil)
	d.builder.EXPECT().Estimate(gomock.Any(), order).Return(costs, nil)
	gomock.InOrder(
		d.ledger.EXPECT().Credit(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, e ports.LedgerEntry) (*domain.WalletTransaction, error) {
				assert.Equal(t, order.MerchantID, e.MerchantID)
				assert.Equal(t, int64(2720), e.AmountPaise)
				assert.Equal(t, domain.BuildProfitCreditKey(order.ID), e.IdempotencyKey)
				assert.Equal(t, domain.SourceOrderProfit, e.Source)
				assert.Equal(t, order.ID.String(), e.ReferenceID)
				assert.JSONEq(t, `{"customer_paid":"60","total_cost":"32.8"}`, string(e.Metadata))
				return &domain.WalletTransaction{ID: uuid.New(), AmountPaise: e.AmountPaise}, nil
			}),
		d.builder.EXPECT().BuildFromBreakdown(gomock.Any(), order, costs).Return(built, nil),
	)

	inv, err := d.svc.Settle(context.Background(), order)
	require.NoError(t, err)
	assert.Same(t, built, inv)
}

func TestSettlementService_Settle_NoCreditWithoutProfit(t *testing.T) {
	tests := []struct {
		name string
		cost string
	}{
		{"break even", "60"},
		{"loss", "75.5"},
		{"sub-paise profit", "59.996"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := setupSettlementService(t, false)
			order, _, _ := newTestOrder(domain.PaymentMethodCashOnDelivery)
			costs := testBreakdown(tt.cost)

			d.invoices.EXPECT().GetByOrderID(gomock.Any(), order.ID).Return(nil, nil)
			d.stores.EXPECT().GetByID(gomock.Any(), order.StoreID).Return(&domain.Store{ID: order.StoreID}, nil)
			d.builder.EXPECT().Estimate(gomock.Any(), order).Return(costs, nil)
			d.builder.EXPECT().BuildFromBreakdown(gomock.Any(), order, costs).Return(&domain.FulfillmentInvoice{OrderID: order.ID}, nil)

			_, err := d.svc.Settle(context.Background(), order)
			require.NoError(t, err)
		})
	}
}

func TestSettlementService_Settle_CreditFailureStillInvoices(t *testing.T) {
	d := setupSettlementService(t, false)
	order, _, _ := newTestOrder(domain.PaymentMethodOnline)
	costs := testBreakdown("10")

	d.invoices.EXPECT().GetByOrderID(gomock.Any(), order.ID).Return(nil, nil)
	d.stores.EXPECT().GetByID(gomock.Any(), order.StoreID).Return(&domain.Store{ID: order.StoreID}, nil)
	d.builder.EXPECT().Estimate(gomock.Any(), order).Return(costs, nil)
	d.ledger.EXPECT().Credit(gomock.Any(), gomock.Any()).Return(nil, errors.New("ledger unavailable"))
	d.builder.EXPECT().BuildFromBreakdown(gomock.Any(), order, costs).Return(&domain.FulfillmentInvoice{OrderID: order.ID, InvoiceNumber: "INV-2026-0009"}, nil)

	inv, err := d.svc.Settle(context.Background(), order)
	require.NoError(t, err)
	assert.Equal(t, "INV-2026-0009", inv.InvoiceNumber)
}

func TestSettlementService_Settle_BuildFailure(t *testing.T) {
	d := setupSettlementService(t, false)
	order, _, _ := newTestOrder(domain.PaymentMethodOnline)
	costs := testBreakdown("70")

	d.invoices.EXPECT().GetByOrderID(gomock.Any(), order.ID).Return(nil, nil)
	d.stores.EXPECT().GetByID(gomock.Any(), order.StoreID).Return(&domain.Store{ID: order.StoreID}, nil)
	d.builder.EXPECT().Estimate(gomock.Any(), order).Return(costs, nil)
	d.builder.EXPECT().BuildFromBreakdown(gomock.Any(), order, costs).Return(nil, domain.ErrInvoiceNumberTaken)

	_, err := d.svc.Settle(context.Background(), order)
	assertAppError(t, err, "SET_001")
	assert.ErrorIs(t, err, domain.ErrInvoiceNumberTaken)
}

func TestSettlementService_SettleByID(t *testing.T) {
	t.Run("order missing", func(t *testing.T) {
		d := setupSettlementService(t, false)
		id := uuid.New()
		d.orders.EXPECT().GetByID(gomock.Any(), id).Return(nil, nil)
		_, err := d.svc.SettleByID(context.Background(), id)
		assertAppError(t, err, "NOT_FOUND")
	})

	t.Run("loads and settles", func(t *testing.T) {
		d := setupSettlementService(t, false)
		order, _, _ := newTestOrder(domain.PaymentMethodOnline)
		existing := &domain.FulfillmentInvoice{OrderID: order.ID}
		d.orders.EXPECT().GetByID(gomock.Any(), order.ID).Return(order, nil)
		d.invoices.EXPECT().GetByOrderID(gomock.Any(), order.ID).Return(existing, nil)
		inv, err := d.svc.SettleByID(context.Background(), order.ID)
		require.NoError(t, err)
		assert.Same(t, existing, inv)
	})
}

func TestSettlementService_GetInvoice(t *testing.T) {
	d := setupSettlementService(t, false)
	found, missing := uuid.New(), uuid.New()
	d.invoices.EXPECT().GetByOrderID(gomock.Any(), found).Return(&domain.FulfillmentInvoice{OrderID: found}, nil)
	d.invoices.EXPECT().GetByOrderID(gomock.Any(), missing).Return(nil, nil)

	inv, err := d.svc.GetInvoice(context.Background(), found)
	require.NoError(t, err)
	assert.Equal(t, found, inv.OrderID)

	_, err = d.svc.GetInvoice(context.Background(), missing)
	assertAppError(t, err, "NOT_FOUND")
}

func TestSettlementService_CreditProfit(t *testing.T) {
	t.Run("no profit is a no-op", func(t *testing.T) {
		d := setupSettlementService(t, false)
		err := d.svc.CreditProfit(context.Background(), &domain.FulfillmentInvoice{MerchantProfit: dec("-3")})
		assert.NoError(t, err)
	})

	t.Run("ledger failure", func(t *testing.T) {
		d := setupSettlementService(t, false)
		d.ledger.EXPECT().Credit(gomock.Any(), gomock.Any()).Return(nil, errors.New("boom"))
		err := d.svc.CreditProfit(context.Background(), &domain.FulfillmentInvoice{OrderID: uuid.New(), MerchantProfit: dec("1.50")})
		assertAppError(t, err, "SYS_001")
	})

	t.Run("posts the order key", func(t *testing.T) {
		d := setupSettlementService(t, false)
		inv := &domain.FulfillmentInvoice{OrderID: uuid.New(), MerchantID: uuid.New(), MerchantProfit: dec("1.50")}
		d.ledger.EXPECT().Credit(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, e ports.LedgerEntry) (*domain.WalletTransaction, error) {
				assert.Equal(t, int64(150), e.AmountPaise)
				assert.Equal(t, domain.BuildProfitCreditKey(inv.OrderID), e.IdempotencyKey)
				return &domain.WalletTransaction{ID: uuid.New(), AmountPaise: 150}, nil
			})
		assert.NoError(t, d.svc.CreditProfit(context.Background(), inv))
	})
}

// settlementHarness wires the real builder, ledger, cost resolver and allocator
// over the in-memory repositories.
type settlementHarness struct {
	svc      *SettlementServiceImpl
	orders   *memOrderRepo
	invoices *memInvoiceRepo
	entries  *memWalletTxRepo
	ledger   *WalletLedgerImpl
	storeID  uuid.UUID
	p1, p2   uuid.UUID
}

func newSettlementHarness(t *testing.T, numbers ports.InvoiceNumberAllocator) *settlementHarness {
	t.Helper()
	h := &settlementHarness{
		orders:   &memOrderRepo{orders: make(map[uuid.UUID]*domain.Order)},
		invoices: newMemInvoiceRepo(),
		entries:  newMemWalletTxRepo(),
		storeID:  uuid.New(),
		p1:       uuid.New(),
		p2:       uuid.New(),
	}
	stores := &memStoreRepo{stores: map[uuid.UUID]*domain.Store{h.storeID: {ID: h.storeID, Name: "Acme"}}}
	catalog := &memCatalogRepo{products: map[uuid.UUID]*domain.Product{
		h.p1: {ID: h.p1, Name: "Tee", BasePrice: dec("10")},
		h.p2: {ID: h.p2, Name: "Mug", BasePrice: dec("7"), Variants: []domain.ProductVariant{
			{ID: uuid.New(), ProductID: h.p2, Color: "red", Price: dec("5")},
		}},
	}}
	if numbers == nil {
		numbers = NewInvoiceNumberAllocator(h.invoices)
	}

	log := newTestLogger()
	h.ledger = NewWalletLedger(newMemWalletRepo(), h.entries, memTransactor{}, "INR", log)
	builder := NewInvoiceBuilder(h.invoices, h.orders, NewCostResolver(catalog), numbers, testInvoicePolicy(), nil, log)
	h.svc = NewSettlementService(h.orders, stores, h.invoices, builder, h.ledger, nil, 0, nil, log)
	return h
}

func (h *settlementHarness) addOrder() *domain.Order {
	order, _, _ := newTestOrder(domain.PaymentMethodOnline)
	order.StoreID = h.storeID
	order.Items[0].ProductID = h.p1
	order.Items[1].ProductID = h.p2
	h.orders.mu.Lock()
	h.orders.orders[order.ID] = order
	h.orders.mu.Unlock()
	return order
}

func TestSettlementService_EndToEnd(t *testing.T) {
	h := newSettlementHarness(t, nil)
	order := h.addOrder()

	inv, err := h.svc.SettleByID(context.Background(), order.ID)
	require.NoError(t, err)

	assert.True(t, inv.TotalAmount.Equal(dec("32.8")))
	assert.True(t, inv.MerchantProfit.Equal(dec("27.2")))
	assert.Equal(t, domain.InvoiceStatusPaid, inv.Status)

	balance, err := h.ledger.GetBalance(context.Background(), order.MerchantID)
	require.NoError(t, err)
	assert.Equal(t, int64(2720), balance)

	stored, err := h.orders.GetByID(context.Background(), order.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.FulfillmentPayment)
	assert.Equal(t, int64(3280), stored.FulfillmentPayment.TotalAmountPaise)
	assert.Equal(t, domain.InvoiceStatusPaid, stored.FulfillmentPayment.Status)

	// Replays return the same invoice and leave the balance alone.
	again, err := h.svc.SettleByID(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, inv.InvoiceNumber, again.InvoiceNumber)
	balance, err = h.ledger.GetBalance(context.Background(), order.MerchantID)
	require.NoError(t, err)
	assert.Equal(t, int64(2720), balance)
}

func TestSettlementService_ConcurrentSettleOfOneOrder(t *testing.T) {
	h := newSettlementHarness(t, nil)
	order := h.addOrder()

	const n = 16
	numbers := make([]string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			inv, err := h.svc.SettleByID(context.Background(), order.ID)
			if assert.NoError(t, err) {
				numbers[i] = inv.InvoiceNumber
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, h.invoices.count())
	assert.Equal(t, 1, h.entries.countByKey(domain.BuildProfitCreditKey(order.ID)))
	for _, number := range numbers {
		assert.Equal(t, numbers[0], number)
	}
	balance, err := h.ledger.GetBalance(context.Background(), order.MerchantID)
	require.NoError(t, err)
	assert.Equal(t, int64(2720), balance)
}

// scriptedAllocator hands out a fixed sequence of numbers.
type scriptedAllocator struct {
	mu      sync.Mutex
	numbers []string
}

func (a *scriptedAllocator) Allocate(context.Context, int) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.numbers) == 0 {
		return "", errors.New("allocator exhausted")
	}
	n := a.numbers[0]
	a.numbers = a.numbers[1:]
	return n, nil
}

func TestSettlementService_NumberCollisionGetsFreshNumber(t *testing.T) {
	numbers := &scriptedAllocator{numbers: []string{"INV-2026-0001", "INV-2026-0001", "INV-2026-0002"}}
	h := newSettlementHarness(t, numbers)
	first, second := h.addOrder(), h.addOrder()

	a, err := h.svc.SettleByID(context.Background(), first.ID)
	require.NoError(t, err)
	b, err := h.svc.SettleByID(context.Background(), second.ID)
	require.NoError(t, err)

	assert.Equal(t, "INV-2026-0001", a.InvoiceNumber)
	assert.Equal(t, "INV-2026-0002", b.InvoiceNumber)
	assert.Equal(t, 2, h.invoices.count())
}
