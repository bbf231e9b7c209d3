package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"merchant-settlement/internal/core/domain"
	"merchant-settlement/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const orderColumns = `id, merchant_id, store_id, customer_id, items, subtotal, shipping, tax, total,
		status, payment_method, payment_status, fulfillment_payment, created_at, updated_at`

// OrderRepo implements ports.OrderRepository over the orders table
// written by the checkout service.
type OrderRepo struct {
	pool Pool
}

// NewOrderRepo creates a new OrderRepo.
func NewOrderRepo(pool Pool) *OrderRepo {
	return &OrderRepo{pool: pool}
}

// GetByID fetches an order, or nil.
func (r *OrderRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	o, err := scanOrder(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, fmt.Errorf("get order by id: %w", err)
	}
	return o, nil
}

// UpdateFulfillmentPayment writes the settlement projection onto the order.
func (r *OrderRepo) UpdateFulfillmentPayment(ctx context.Context, orderID uuid.UUID, fp domain.FulfillmentPayment) error {
	payload, err := json.Marshal(fp)
	if err != nil {
		return fmt.Errorf("marshal fulfillment payment: %w", err)
	}

	query := `UPDATE orders SET fulfillment_payment = $1, updated_at = NOW() WHERE id = $2`

	tag, err := r.pool.Exec(ctx, query, string(payload), orderID)
	if err != nil {
		return fmt.Errorf("update fulfillment payment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("order not found: %s", orderID)
	}
	return nil
}

// ListUnsettled returns completed orders last touched before cutoff that have no
// invoice, keyset-paged on (updated_at, id).
func (r *OrderRepo) ListUnsettled(ctx context.Context, cutoff time.Time, after *ports.OrderCursor, limit int) ([]domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders o
		WHERE o.status = $1 AND o.updated_at < $2
		AND NOT EXISTS (SELECT 1 FROM fulfillment_invoices fi WHERE fi.order_id = o.id)`
	args := []any{domain.OrderStatusCompleted, cutoff}
	if after != nil {
		query += ` AND (o.updated_at, o.id) > ($3, $4)`
		args = append(args, after.UpdatedAt, after.ID)
	}
	args = append(args, limit)
	query += fmt.Sprintf(` ORDER BY o.updated_at, o.id LIMIT $%d`, len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list unsettled orders: %w", err)
	}
	defer rows.Close()

	var orders []domain.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order row: %w", err)
		}
		orders = append(orders, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order rows: %w", err)
	}
	return orders, nil
}

func scanOrder(row pgx.Row) (*domain.Order, error) {
	o := &domain.Order{}
	var items, fulfillment []byte
	err := row.Scan(
		&o.ID, &o.MerchantID, &o.StoreID, &o.CustomerID, &items,
		&o.Subtotal, &o.Shipping, &o.Tax, &o.Total,
		&o.Status, &o.Payment.Method, &o.Payment.Status, &fulfillment, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if err := json.Unmarshal(items, &o.Items); err != nil {
		return nil, fmt.Errorf("unmarshal order items: %w", err)
	}
	if len(fulfillment) > 0 {
		o.FulfillmentPayment = &domain.FulfillmentPayment{}
		if err := json.Unmarshal(fulfillment, o.FulfillmentPayment); err != nil {
			return nil, fmt.Errorf("unmarshal fulfillment payment: %w", err)
		}
	}
	return o, nil
}
