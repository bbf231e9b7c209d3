package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentMethod is how the customer paid for an order.
type PaymentMethod string

const (
	PaymentMethodOnline         PaymentMethod = "online"
	PaymentMethodCashOnDelivery PaymentMethod = "cash-on-delivery"
)

// OrderStatus is the checkout-side lifecycle state of an order.
type OrderStatus string

const (
	OrderStatusPlaced    OrderStatus = "placed"
	OrderStatusPaid      OrderStatus = "paid"
	OrderStatusCompleted OrderStatus = "completed"
	OrderStatusCancelled OrderStatus = "cancelled"
)

// OrderItem is a single purchased line of an order.
type OrderItem struct {
	ProductID   uuid.UUID       `json:"product_id"`
	ProductName string          `json:"product_name"`
	Variant     *VariantChoice  `json:"variant,omitempty"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"` // Retail price charged to the customer
}

// OrderPayment describes the customer-side payment of an order.
type OrderPayment struct {
	Method PaymentMethod `json:"method"`
	Status string        `json:"status,omitempty"` // "paid" once the gateway confirmed capture
}

// FulfillmentPayment is the order-side projection of the fulfillment invoice.
type FulfillmentPayment struct {
	Status             InvoiceStatus `json:"status"`
	WalletAppliedPaise int64         `json:"wallet_applied_paise"`
	TotalAmountPaise   int64         `json:"total_amount_paise"`
}

// Order is read from the checkout collaborator. Only FulfillmentPayment is written back.
type Order struct {
	ID                 uuid.UUID           `json:"id"`
	MerchantID         uuid.UUID           `json:"merchant_id"`
	StoreID            uuid.UUID           `json:"store_id"`
	CustomerID         uuid.UUID           `json:"customer_id"`
	Items              []OrderItem         `json:"items"`
	Subtotal           decimal.Decimal     `json:"subtotal"`
	Shipping           decimal.Decimal     `json:"shipping"`
	Tax                decimal.Decimal     `json:"tax"`
	Total              decimal.Decimal     `json:"total"`
	Status             OrderStatus         `json:"status"`
	Payment            OrderPayment        `json:"payment"`
	FulfillmentPayment *FulfillmentPayment `json:"fulfillment_payment,omitempty"`
	CreatedAt          time.Time           `json:"created_at"`
	UpdatedAt          time.Time           `json:"updated_at"`
}

// IsPrepaid reports whether the platform already holds the customer's funds.
func (o *Order) IsPrepaid() bool {
	return o.Payment.Method == PaymentMethodOnline ||
		o.Payment.Status == "paid" ||
		o.Status == OrderStatusPaid
}

// Store is the merchant storefront an order was placed on.
type Store struct {
	ID         uuid.UUID `json:"id"`
	MerchantID uuid.UUID `json:"merchant_id"`
	Name       string    `json:"name"`
	CreatedAt  time.Time `json:"created_at"`
}
