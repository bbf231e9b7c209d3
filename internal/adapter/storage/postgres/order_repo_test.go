package postgres

import (
	"context"
	"testing"
	"time"

	"merchant-settlement/internal/core/domain"
	"merchant-settlement/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var orderCols = []string{
	"id", "merchant_id", "store_id", "customer_id", "items", "subtotal", "shipping", "tax", "total",
	"status", "payment_method", "payment_status", "fulfillment_payment", "created_at", "updated_at",
}

func orderRow(rows *pgxmock.Rows, o *domain.Order, items, fulfillment []byte) *pgxmock.Rows {
	return rows.AddRow(
		o.ID, o.MerchantID, o.StoreID, o.CustomerID, items, o.Subtotal, o.Shipping, o.Tax, o.Total,
		o.Status, o.Payment.Method, o.Payment.Status, fulfillment, o.CreatedAt, o.UpdatedAt,
	)
}

func newTestOrder() *domain.Order {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &domain.Order{
		ID:         uuid.New(),
		MerchantID: uuid.New(),
		StoreID:    uuid.New(),
		CustomerID: uuid.New(),
		Subtotal:   decimal.RequireFromString("50"),
		Shipping:   decimal.RequireFromString("8"),
		Tax:        decimal.RequireFromString("2"),
		Total:      decimal.RequireFromString("60"),
		Status:     domain.OrderStatusCompleted,
		Payment:    domain.OrderPayment{Method: domain.PaymentMethodOnline, Status: "paid"},
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

func TestOrderRepo_GetByID(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	o := newTestOrder()
	productID := uuid.New()
	items := []byte(`[{"product_id":"` + productID.String() + `","product_name":"Tee","quantity":2,"unit_price":"25","variant":{"size":"M"}}]`)

	mock.ExpectQuery("SELECT .+ FROM orders WHERE id").
		WithArgs(o.ID).
		WillReturnRows(orderRow(pgxmock.NewRows(orderCols), o, items, []byte(nil)))

	result, err := NewOrderRepo(mock).GetByID(context.Background(), o.ID)
	require.NoError(t, err)
	require.NotNil(t, result)
	require.Len(t, result.Items, 1)
	assert.Equal(t, productID, result.Items[0].ProductID)
	assert.Equal(t, "M", result.Items[0].Variant.Size)
	assert.Nil(t, result.FulfillmentPayment)
	assert.True(t, result.IsPrepaid())
}

func TestOrderRepo_GetByID_WithFulfillmentPayment(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	o := newTestOrder()
	fp := []byte(`{"status":"paid","wallet_applied_paise":0,"total_amount_paise":2720}`)

	mock.ExpectQuery("SELECT .+ FROM orders WHERE id").
		WithArgs(o.ID).
		WillReturnRows(orderRow(pgxmock.NewRows(orderCols), o, []byte(`[]`), fp))

	result, err := NewOrderRepo(mock).GetByID(context.Background(), o.ID)
	require.NoError(t, err)
	require.NotNil(t, result.FulfillmentPayment)
	assert.Equal(t, domain.InvoiceStatusPaid, result.FulfillmentPayment.Status)
	assert.Equal(t, int64(2720), result.FulfillmentPayment.TotalAmountPaise)
}

func TestOrderRepo_GetByID_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	id := uuid.New()
	mock.ExpectQuery("SELECT .+ FROM orders WHERE id").
		WithArgs(id).
		WillReturnError(pgx.ErrNoRows)

	result, err := NewOrderRepo(mock).GetByID(context.Background(), id)
	assert.NoError(t, err)
	assert.Nil(t, result)
}

func TestOrderRepo_UpdateFulfillmentPayment(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	orderID := uuid.New()
	mock.ExpectExec("UPDATE orders SET fulfillment_payment").
		WithArgs(`{"status":"pending","wallet_applied_paise":0,"total_amount_paise":1500}`, orderID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err = NewOrderRepo(mock).UpdateFulfillmentPayment(context.Background(), orderID, domain.FulfillmentPayment{
		Status:           domain.InvoiceStatusPending,
		TotalAmountPaise: 1500,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepo_UpdateFulfillmentPayment_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec("UPDATE orders SET fulfillment_payment").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err = NewOrderRepo(mock).UpdateFulfillmentPayment(context.Background(), uuid.New(), domain.FulfillmentPayment{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "order not found")
}

func TestOrderRepo_ListUnsettled(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	o := newTestOrder()
	cutoff := time.Now().Add(-10 * time.Minute)

	mock.ExpectQuery("SELECT .+ FROM orders o WHERE o.status = \\$1 AND o.updated_at < \\$2 AND NOT EXISTS .+ ORDER BY o.updated_at, o.id LIMIT \\$3").
		WithArgs(domain.OrderStatusCompleted, cutoff, 25).
		WillReturnRows(orderRow(pgxmock.NewRows(orderCols), o, []byte(`[]`), []byte(nil)))

	orders, err := NewOrderRepo(mock).ListUnsettled(context.Background(), cutoff, nil, 25)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, o.ID, orders[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepo_ListUnsettled_AfterCursor(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	cutoff := time.Now().Add(-10 * time.Minute)
	after := &ports.OrderCursor{UpdatedAt: cutoff.Add(-time.Hour), ID: uuid.New()}

	mock.ExpectQuery("AND \\(o.updated_at, o.id\\) > \\(\\$3, \\$4\\) ORDER BY o.updated_at, o.id LIMIT \\$5").
		WithArgs(domain.OrderStatusCompleted, cutoff, after.UpdatedAt, after.ID, 25).
		WillReturnRows(pgxmock.NewRows(orderCols))

	orders, err := NewOrderRepo(mock).ListUnsettled(context.Background(), cutoff, after, 25)
	require.NoError(t, err)
	assert.Empty(t, orders)
	assert.NoError(t, mock.ExpectationsWereMet())
}
