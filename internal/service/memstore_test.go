package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"merchant-settlement/internal/core/domain"
	"merchant-settlement/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// In-memory repositories that enforce the same unique constraints as schema.sql.
// Transactions are no-ops, which is enough for the credit and invoice paths:
// both rely on unique constraints rather than row locks.

type memTransactor struct{}

func (memTransactor) Begin(context.Context) (pgx.Tx, error) { return &mockTx{}, nil }

type memStoreRepo struct {
	stores map[uuid.UUID]*domain.Store
}

func (r *memStoreRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.Store, error) {
	return r.stores[id], nil
}

type memCatalogRepo struct {
	products map[uuid.UUID]*domain.Product
}

func (r *memCatalogRepo) GetProduct(_ context.Context, id uuid.UUID) (*domain.Product, error) {
	return r.products[id], nil
}

type memOrderRepo struct {
	mu     sync.Mutex
	orders map[uuid.UUID]*domain.Order
}

func (r *memOrderRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return nil, nil
	}
	cp := *o
	return &cp, nil
}

func (r *memOrderRepo) UpdateFulfillmentPayment(_ context.Context, id uuid.UUID, fp domain.FulfillmentPayment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return fmt.Errorf("order not found: %s", id)
	}
	o.FulfillmentPayment = &fp
	return nil
}

func (r *memOrderRepo) ListUnsettled(context.Context, time.Time, *ports.OrderCursor, int) ([]domain.Order, error) {
	return nil, nil
}

type memInvoiceRepo struct {
	mu       sync.Mutex
	byOrder  map[uuid.UUID]*domain.FulfillmentInvoice
	byNumber map[string]uuid.UUID
}

func newMemInvoiceRepo() *memInvoiceRepo {
	return &memInvoiceRepo{
		byOrder:  make(map[uuid.UUID]*domain.FulfillmentInvoice),
		byNumber: make(map[string]uuid.UUID),
	}
}

func (r *memInvoiceRepo) Create(_ context.Context, inv *domain.FulfillmentInvoice) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byOrder[inv.OrderID]; ok {
		return domain.ErrInvoiceOrderExists
	}
	if _, ok := r.byNumber[inv.InvoiceNumber]; ok {
		return domain.ErrInvoiceNumberTaken
	}
	cp := *inv
	r.byOrder[inv.OrderID] = &cp
	r.byNumber[inv.InvoiceNumber] = inv.OrderID
	return nil
}

func (r *memInvoiceRepo) GetByOrderID(_ context.Context, orderID uuid.UUID) (*domain.FulfillmentInvoice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	inv, ok := r.byOrder[orderID]
	if !ok {
		return nil, nil
	}
	cp := *inv
	return &cp, nil
}

func (r *memInvoiceRepo) CountByYear(_ context.Context, year int) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	prefix := fmt.Sprintf("INV-%d-", year)
	var n int64
	for number := range r.byNumber {
		if strings.HasPrefix(number, prefix) {
			n++
		}
	}
	return n, nil
}

func (r *memInvoiceRepo) ListUncredited(context.Context, int) ([]domain.FulfillmentInvoice, error) {
	return nil, nil
}

func (r *memInvoiceRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byOrder)
}

type memWalletRepo struct {
	mu      sync.Mutex
	wallets map[string]*domain.Wallet
}

func newMemWalletRepo() *memWalletRepo {
	return &memWalletRepo{wallets: make(map[string]*domain.Wallet)}
}

func (r *memWalletRepo) Ensure(_ context.Context, _ pgx.Tx, merchantID uuid.UUID, currency string) (*domain.Wallet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := merchantID.String() + ":" + currency
	if w, ok := r.wallets[key]; ok {
		return w, nil
	}
	w := &domain.Wallet{ID: uuid.New(), MerchantID: merchantID, Currency: currency, CreatedAt: time.Now()}
	r.wallets[key] = w
	return w, nil
}

func (r *memWalletRepo) GetByMerchantID(_ context.Context, merchantID uuid.UUID, currency string) (*domain.Wallet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.wallets[merchantID.String()+":"+currency], nil
}

func (r *memWalletRepo) GetByMerchantIDForUpdate(ctx context.Context, _ pgx.Tx, merchantID uuid.UUID, currency string) (*domain.Wallet, error) {
	return r.GetByMerchantID(ctx, merchantID, currency)
}

type memWalletTxRepo struct {
	mu      sync.Mutex
	entries []domain.WalletTransaction
	byKey   map[string]int
}

func newMemWalletTxRepo() *memWalletTxRepo {
	return &memWalletTxRepo{byKey: make(map[string]int)}
}

func (r *memWalletTxRepo) Create(_ context.Context, _ pgx.Tx, txn *domain.WalletTransaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byKey[txn.IdempotencyKey]; ok {
		return domain.ErrDuplicateIdempotencyKey
	}
	r.byKey[txn.IdempotencyKey] = len(r.entries)
	r.entries = append(r.entries, *txn)
	return nil
}

func (r *memWalletTxRepo) GetByIdempotencyKey(_ context.Context, key string) (*domain.WalletTransaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	i, ok := r.byKey[key]
	if !ok {
		return nil, nil
	}
	cp := r.entries[i]
	return &cp, nil
}

func (r *memWalletTxRepo) GetByIdempotencyKeyTx(ctx context.Context, _ pgx.Tx, key string) (*domain.WalletTransaction, error) {
	return r.GetByIdempotencyKey(ctx, key)
}

func (r *memWalletTxRepo) BalanceTx(_ context.Context, _ pgx.Tx, walletID uuid.UUID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var sum int64
	for i := range r.entries {
		if r.entries[i].WalletID == walletID {
			sum += r.entries[i].SignedAmount()
		}
	}
	return sum, nil
}

func (r *memWalletTxRepo) Balance(_ context.Context, merchantID uuid.UUID, currency string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var sum int64
	for i := range r.entries {
		if r.entries[i].MerchantID == merchantID && r.entries[i].Currency == currency {
			sum += r.entries[i].SignedAmount()
		}
	}
	return sum, nil
}

func (r *memWalletTxRepo) List(_ context.Context, params ports.LedgerListParams) ([]domain.WalletTransaction, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.WalletTransaction
	for _, e := range r.entries {
		if e.MerchantID == params.MerchantID && (params.Type == nil || e.Type == *params.Type) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, int64(len(out)), nil
}

func (r *memWalletTxRepo) countByKey(key string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.entries {
		if e.IdempotencyKey == key {
			n++
		}
	}
	return n
}
