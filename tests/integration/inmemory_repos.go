package integration

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
	"github.com/jackc/pgx/v5/pgconn"
)

// --- In-Memory Store Repo ---

type inMemoryStoreRepo struct {
	mu     sync.RWMutex
	stores map[uuid.UUID]*domain.Store
}

func newInMemoryStoreRepo() *inMemoryStoreRepo {
	return &inMemoryStoreRepo{stores: make(map[uuid.UUID]*domain.Store)}
}

func (r *inMemoryStoreRepo) add(s *domain.Store) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stores[s.ID] = s
}

func (r *inMemoryStoreRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Store, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.stores[id], nil
}

// --- In-Memory Catalog Repo ---

type inMemoryCatalogRepo struct {
	mu       sync.RWMutex
	products map[uuid.UUID]*domain.Product
}

func newInMemoryCatalogRepo() *inMemoryCatalogRepo {
	return &inMemoryCatalogRepo{products: make(map[uuid.UUID]*domain.Product)}
}

func (r *inMemoryCatalogRepo) add(p *domain.Product) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.products[p.ID] = p
}

func (r *inMemoryCatalogRepo) GetProduct(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.products[id], nil
}

// --- In-Memory Order Repo ---

type inMemoryOrderRepo struct {
	mu       sync.RWMutex
	orders   map[uuid.UUID]*domain.Order
	invoices *inMemoryInvoiceRepo
}

func newInMemoryOrderRepo(invoices *inMemoryInvoiceRepo) *inMemoryOrderRepo {
	return &inMemoryOrderRepo{orders: make(map[uuid.UUID]*domain.Order), invoices: invoices}
}

func (r *inMemoryOrderRepo) add(o *domain.Order) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.orders[o.ID] = o
}

func (r *inMemoryOrderRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	o, ok := r.orders[id]
	if !ok {
		return nil, nil
	}
	cp := *o
	return &cp, nil
}

func (r *inMemoryOrderRepo) UpdateFulfillmentPayment(ctx context.Context, orderID uuid.UUID, fp domain.FulfillmentPayment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[orderID]
	if !ok {
		return fmt.Errorf("order not found: %s", orderID)
	}
	o.FulfillmentPayment = &fp
	return nil
}

func (r *inMemoryOrderRepo) ListUnsettled(ctx context.Context, cutoff time.Time, after *ports.OrderCursor, limit int) ([]domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []domain.Order
	for _, o := range r.orders {
		if o.Status != domain.OrderStatusCompleted || !o.UpdatedAt.Before(cutoff) || r.invoices.has(o.ID) {
			continue
		}
		if after != nil && !orderAfter(o, after) {
			continue
		}
		out = append(out, *o)
	}
	sort.Slice(out, func(i, j int) bool { return orderAfter(&out[j], &ports.OrderCursor{UpdatedAt: out[i].UpdatedAt, ID: out[i].ID}) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// orderAfter mirrors the row comparison (updated_at, id) > (cursor).
func orderAfter(o *domain.Order, c *ports.OrderCursor) bool {
	if !o.UpdatedAt.Equal(c.UpdatedAt) {
		return o.UpdatedAt.After(c.UpdatedAt)
	}
	return strings.Compare(o.ID.String(), c.ID.String()) > 0
}

func (r *inMemoryOrderRepo) fulfillment(id uuid.UUID) *domain.FulfillmentPayment {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if o, ok := r.orders[id]; ok {
		return o.FulfillmentPayment
	}
	return nil
}

// --- In-Memory Invoice Repo ---

type inMemoryInvoiceRepo struct {
	mu       sync.RWMutex
	byOrder  map[uuid.UUID]*domain.FulfillmentInvoice
	byNumber map[string]uuid.UUID
	entries  *inMemoryWalletTransactionRepo
}

func newInMemoryInvoiceRepo(entries *inMemoryWalletTransactionRepo) *inMemoryInvoiceRepo {
	return &inMemoryInvoiceRepo{
		byOrder:  make(map[uuid.UUID]*domain.FulfillmentInvoice),
		byNumber: make(map[string]uuid.UUID),
		entries:  entries,
	}
}

func (r *inMemoryInvoiceRepo) Create(ctx context.Context, inv *domain.FulfillmentInvoice) error {
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

func (r *inMemoryInvoiceRepo) GetByOrderID(ctx context.Context, orderID uuid.UUID) (*domain.FulfillmentInvoice, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	inv, ok := r.byOrder[orderID]
	if !ok {
		return nil, nil
	}
	cp := *inv
	return &cp, nil
}

func (r *inMemoryInvoiceRepo) CountByYear(ctx context.Context, year int) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	prefix := fmt.Sprintf("INV-%d-", year)
	var n int64
	for number := range r.byNumber {
		if strings.HasPrefix(number, prefix) {
			n++
		}
	}
	return n, nil
}

func (r *inMemoryInvoiceRepo) ListUncredited(ctx context.Context, limit int) ([]domain.FulfillmentInvoice, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []domain.FulfillmentInvoice
	for _, inv := range r.byOrder {
		if !inv.MerchantProfit.IsPositive() || r.entries.hasKey(domain.ProfitCreditKeyPrefix+inv.OrderID.String()) {
			continue
		}
		out = append(out, *inv)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *inMemoryInvoiceRepo) has(orderID uuid.UUID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.byOrder[orderID]
	return ok
}

func (r *inMemoryInvoiceRepo) count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byOrder)
}

// --- In-Memory Wallet Repo ---

type inMemoryWalletRepo struct {
	mu      sync.Mutex
	wallets map[string]*domain.Wallet
}

func newInMemoryWalletRepo() *inMemoryWalletRepo {
	return &inMemoryWalletRepo{wallets: make(map[string]*domain.Wallet)}
}

func (r *inMemoryWalletRepo) Ensure(ctx context.Context, tx pgx.Tx, merchantID uuid.UUID, currency string) (*domain.Wallet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := merchantID.String() + ":" + currency
	if w, ok := r.wallets[key]; ok {
		return w, nil
	}
	w := &domain.Wallet{ID: uuid.New(), MerchantID: merchantID, Currency: currency, CreatedAt: time.Now().UTC()}
	r.wallets[key] = w
	return w, nil
}

func (r *inMemoryWalletRepo) GetByMerchantID(ctx context.Context, merchantID uuid.UUID, currency string) (*domain.Wallet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.wallets[merchantID.String()+":"+currency], nil
}

func (r *inMemoryWalletRepo) GetByMerchantIDForUpdate(ctx context.Context, tx pgx.Tx, merchantID uuid.UUID, currency string) (*domain.Wallet, error) {
	return r.GetByMerchantID(ctx, merchantID, currency)
}

// --- In-Memory Wallet Transaction Repo ---

type inMemoryWalletTransactionRepo struct {
	mu      sync.RWMutex
	entries []domain.WalletTransaction
	byKey   map[string]int
}

func newInMemoryWalletTransactionRepo() *inMemoryWalletTransactionRepo {
	return &inMemoryWalletTransactionRepo{byKey: make(map[string]int)}
}

func (r *inMemoryWalletTransactionRepo) Create(ctx context.Context, tx pgx.Tx, txn *domain.WalletTransaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byKey[txn.IdempotencyKey]; ok {
		return domain.ErrDuplicateIdempotencyKey
	}
	r.byKey[txn.IdempotencyKey] = len(r.entries)
	r.entries = append(r.entries, *txn)
	return nil
}

func (r *inMemoryWalletTransactionRepo) GetByIdempotencyKey(ctx context.Context, key string) (*domain.WalletTransaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	i, ok := r.byKey[key]
	if !ok {
		return nil, nil
	}
	cp := r.entries[i]
	return &cp, nil
}

func (r *inMemoryWalletTransactionRepo) GetByIdempotencyKeyTx(ctx context.Context, tx pgx.Tx, key string) (*domain.WalletTransaction, error) {
	return r.GetByIdempotencyKey(ctx, key)
}

func (r *inMemoryWalletTransactionRepo) BalanceTx(ctx context.Context, tx pgx.Tx, walletID uuid.UUID) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var sum int64
	for i := range r.entries {
		if r.entries[i].WalletID == walletID {
			sum += r.entries[i].SignedAmount()
		}
	}
	return sum, nil
}

func (r *inMemoryWalletTransactionRepo) Balance(ctx context.Context, merchantID uuid.UUID, currency string) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var sum int64
	for i := range r.entries {
		if r.entries[i].MerchantID == merchantID && r.entries[i].Currency == currency {
			sum += r.entries[i].SignedAmount()
		}
	}
	return sum, nil
}

func (r *inMemoryWalletTransactionRepo) List(ctx context.Context, params ports.LedgerListParams) ([]domain.WalletTransaction, int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var matched []domain.WalletTransaction
	for _, e := range r.entries {
		if e.MerchantID == params.MerchantID && (params.Type == nil || e.Type == *params.Type) {
			matched = append(matched, e)
		}
	}
	sort.SliceStable(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })
	return paginate(matched, params.Page, params.PageSize), int64(len(matched)), nil
}

func (r *inMemoryWalletTransactionRepo) hasKey(key string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.byKey[key]
	return ok
}

func (r *inMemoryWalletTransactionRepo) countByKey(key string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, e := range r.entries {
		if e.IdempotencyKey == key {
			n++
		}
	}
	return n
}

// --- In-Memory Withdrawal Repo ---

type inMemoryWithdrawalRepo struct {
	mu    sync.RWMutex
	items map[uuid.UUID]domain.WithdrawalRequest
}

func newInMemoryWithdrawalRepo() *inMemoryWithdrawalRepo {
	return &inMemoryWithdrawalRepo{items: make(map[uuid.UUID]domain.WithdrawalRequest)}
}

func (r *inMemoryWithdrawalRepo) Create(ctx context.Context, w *domain.WithdrawalRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.items {
		if existing.MerchantID == w.MerchantID && existing.Status == domain.WithdrawalStatusPending {
			return domain.ErrWithdrawalAlreadyPending
		}
	}
	r.items[w.ID] = *w
	return nil
}

func (r *inMemoryWithdrawalRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.WithdrawalRequest, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	w, ok := r.items[id]
	if !ok {
		return nil, nil
	}
	return &w, nil
}

func (r *inMemoryWithdrawalRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.WithdrawalRequest, error) {
	return r.GetByID(ctx, id)
}

func (r *inMemoryWithdrawalRepo) UpdateTransition(ctx context.Context, tx pgx.Tx, w *domain.WithdrawalRequest, from domain.WithdrawalStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.items[w.ID].Status != from {
		return domain.ErrStaleWithdrawal
	}
	r.items[w.ID] = *w
	return nil
}

func (r *inMemoryWithdrawalRepo) HasPending(ctx context.Context, merchantID uuid.UUID) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, w := range r.items {
		if w.MerchantID == merchantID && w.Status == domain.WithdrawalStatusPending {
			return true, nil
		}
	}
	return false, nil
}

func (r *inMemoryWithdrawalRepo) SumOutstanding(ctx context.Context, merchantID uuid.UUID) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var sum int64
	for _, w := range r.items {
		if w.MerchantID == merchantID &&
			(w.Status == domain.WithdrawalStatusPending || w.Status == domain.WithdrawalStatusApproved) {
			sum += w.AmountPaise
		}
	}
	return sum, nil
}

func (r *inMemoryWithdrawalRepo) List(ctx context.Context, params ports.WithdrawalListParams) ([]domain.WithdrawalRequest, int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var matched []domain.WithdrawalRequest
	for _, w := range r.items {
		if params.MerchantID != nil && w.MerchantID != *params.MerchantID {
			continue
		}
		if params.Status != nil && w.Status != *params.Status {
			continue
		}
		matched = append(matched, w)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].RequestedAt.After(matched[j].RequestedAt) })
	return paginate(matched, params.Page, params.PageSize), int64(len(matched)), nil
}

// --- In-Memory Audit Repo ---

type inMemoryAuditRepo struct {
	mu   sync.Mutex
	logs []domain.AuditLog
}

func (r *inMemoryAuditRepo) Create(ctx context.Context, log *domain.AuditLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logs = append(r.logs, *log)
	return nil
}

func (r *inMemoryAuditRepo) actions() []domain.AuditAction {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.AuditAction, 0, len(r.logs))
	for _, l := range r.logs {
		out = append(out, l.Action)
	}
	return out
}

func paginate[T any](items []T, page, pageSize int) []T {
	if pageSize <= 0 {
		return items
	}
	start := (page - 1) * pageSize
	if start < 0 || start >= len(items) {
		return nil
	}
	end := start + pageSize
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}

// --- In-Memory Transactor ---

// inMemoryTransactor serializes transactions behind one mutex, standing in for
// the wallet row lock that keeps concurrent debits from overdrawing.
type inMemoryTransactor struct {
	mu sync.Mutex
}

func newInMemoryTransactor() *inMemoryTransactor {
	return &inMemoryTransactor{}
}

func (t *inMemoryTransactor) Begin(ctx context.Context) (pgx.Tx, error) {
	t.mu.Lock()
	return &lockedTx{release: t.mu.Unlock}, nil
}

// lockedTx is a no-op pgx.Tx that releases the transactor lock when it ends.
type lockedTx struct {
	once    sync.Once
	release func()
}

func (t *lockedTx) end() { t.once.Do(t.release) }

func (t *lockedTx) Begin(ctx context.Context) (pgx.Tx, error) { return t, nil }
func (t *lockedTx) Commit(ctx context.Context) error          { t.end(); return nil }
func (t *lockedTx) Rollback(ctx context.Context) error        { t.end(); return nil }
func (t *lockedTx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	return 0, nil
}
func (t *lockedTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults { return nil }
func (t *lockedTx) LargeObjects() pgx.LargeObjects                               { return pgx.LargeObjects{} }
func (t *lockedTx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	return nil, nil
}
func (t *lockedTx) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	return pgconn.NewCommandTag(""), nil
}
func (t *lockedTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, nil
}
func (t *lockedTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return nil
}
func (t *lockedTx) Conn() *pgx.Conn { return nil }
