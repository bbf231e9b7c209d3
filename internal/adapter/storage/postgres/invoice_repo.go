package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"merchant-settlement/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const invoiceColumns = `id, invoice_number, order_id, merchant_id, store_id, items,
		production_cost, shipping_cost, tax, total_amount, customer_paid_amount, merchant_profit,
		status, payment_method, auto_paid, paid_at, created_at, updated_at`

// InvoiceRepo implements ports.InvoiceRepository.
type InvoiceRepo struct {
	pool Pool
}

// NewInvoiceRepo creates a new InvoiceRepo.
func NewInvoiceRepo(pool Pool) *InvoiceRepo {
	return &InvoiceRepo{pool: pool}
}

// Create inserts an invoice. The unique constraints on order_id and
// invoice_number surface as domain.ErrInvoiceOrderExists and
// domain.ErrInvoiceNumberTaken.
func (r *InvoiceRepo) Create(ctx context.Context, inv *domain.FulfillmentInvoice) error {
	items, err := json.Marshal(inv.Items)
	if err != nil {
		return fmt.Errorf("marshal invoice items: %w", err)
	}

	query := `INSERT INTO fulfillment_invoices (` + invoiceColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`

	_, err = r.pool.Exec(ctx, query,
		inv.ID, inv.InvoiceNumber, inv.OrderID, inv.MerchantID, inv.StoreID, string(items),
		inv.ProductionCost, inv.ShippingCost, inv.Tax, inv.TotalAmount, inv.CustomerPaidAmount, inv.MerchantProfit,
		inv.Status, inv.PaymentDetails.Method, inv.PaymentDetails.AutoPaid, inv.PaidAt, inv.CreatedAt, inv.UpdatedAt,
	)
	if err != nil {
		if mapped := mapUniqueViolation(err); mapped != err {
			return mapped
		}
		return fmt.Errorf("insert invoice: %w", err)
	}
	return nil
}

// GetByOrderID fetches the invoice of an order, or nil.
func (r *InvoiceRepo) GetByOrderID(ctx context.Context, orderID uuid.UUID) (*domain.FulfillmentInvoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM fulfillment_invoices WHERE order_id = $1`

	inv, err := scanInvoice(r.pool.QueryRow(ctx, query, orderID))
	if err != nil {
		return nil, fmt.Errorf("get invoice by order id: %w", err)
	}
	return inv, nil
}

// CountByYear counts invoices numbered within year.
func (r *InvoiceRepo) CountByYear(ctx context.Context, year int) (int64, error) {
	query := `SELECT COUNT(*) FROM fulfillment_invoices WHERE invoice_number LIKE $1`

	var count int64
	if err := r.pool.QueryRow(ctx, query, fmt.Sprintf("INV-%d-%%", year)).Scan(&count); err != nil {
		return 0, fmt.Errorf("count invoices for year %d: %w", year, err)
	}
	return count, nil
}

// ListUncredited returns profitable invoices with no matching profit credit in the ledger.
func (r *InvoiceRepo) ListUncredited(ctx context.Context, limit int) ([]domain.FulfillmentInvoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM fulfillment_invoices fi
		WHERE fi.merchant_profit > 0
		AND NOT EXISTS (
			SELECT 1 FROM wallet_transactions wt
			WHERE wt.idempotency_key = $1 || fi.order_id::text
		)
		ORDER BY fi.created_at
		LIMIT $2`

	rows, err := r.pool.Query(ctx, query, domain.ProfitCreditKeyPrefix, limit)
	if err != nil {
		return nil, fmt.Errorf("list uncredited invoices: %w", err)
	}
	defer rows.Close()

	var invoices []domain.FulfillmentInvoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, fmt.Errorf("scan invoice row: %w", err)
		}
		invoices = append(invoices, *inv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate invoice rows: %w", err)
	}
	return invoices, nil
}

func scanInvoice(row pgx.Row) (*domain.FulfillmentInvoice, error) {
	inv := &domain.FulfillmentInvoice{}
	var items []byte
	err := row.Scan(
		&inv.ID, &inv.InvoiceNumber, &inv.OrderID, &inv.MerchantID, &inv.StoreID, &items,
		&inv.ProductionCost, &inv.ShippingCost, &inv.Tax, &inv.TotalAmount, &inv.CustomerPaidAmount, &inv.MerchantProfit,
		&inv.Status, &inv.PaymentDetails.Method, &inv.PaymentDetails.AutoPaid, &inv.PaidAt, &inv.CreatedAt, &inv.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if err := json.Unmarshal(items, &inv.Items); err != nil {
		return nil, fmt.Errorf("unmarshal invoice items: %w", err)
	}
	return inv, nil
}
