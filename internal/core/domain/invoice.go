package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// InvoiceStatus is the payment state of a fulfillment invoice.
type InvoiceStatus string

const (
	InvoiceStatusPending   InvoiceStatus = "pending"
	InvoiceStatusPaid      InvoiceStatus = "paid"
	InvoiceStatusCancelled InvoiceStatus = "cancelled"
)

// SettlementMethod records how the production cost was settled.
type SettlementMethod string

const (
	SettlementDeductedFromRevenue     SettlementMethod = "deducted-from-revenue"
	SettlementAwaitingMerchantPayment SettlementMethod = "awaiting-merchant-payment"
)

// InvoiceItem is the per-line snapshot taken at settlement time.
type InvoiceItem struct {
	ProductID   uuid.UUID       `json:"product_id"`
	ProductName string          `json:"product_name"`
	Quantity    int             `json:"quantity"`
	UnitCost    decimal.Decimal `json:"unit_cost"`
	Variant     *VariantChoice  `json:"variant,omitempty"`
}

// PaymentDetails records how an invoice was (or will be) paid.
type PaymentDetails struct {
	Method   SettlementMethod `json:"method"`
	AutoPaid bool             `json:"auto_paid"`
}

// FulfillmentInvoice is the merchant-side cost-of-fulfillment record for one order.
type FulfillmentInvoice struct {
	ID                 uuid.UUID       `json:"id"`
	InvoiceNumber      string          `json:"invoice_number"`
	OrderID            uuid.UUID       `json:"order_id"`
	MerchantID         uuid.UUID       `json:"merchant_id"`
	StoreID            uuid.UUID       `json:"store_id"`
	Items              []InvoiceItem   `json:"items"`
	ProductionCost     decimal.Decimal `json:"production_cost"`
	ShippingCost       decimal.Decimal `json:"shipping_cost"`
	Tax                decimal.Decimal `json:"tax"`
	TotalAmount        decimal.Decimal `json:"total_amount"`
	CustomerPaidAmount decimal.Decimal `json:"customer_paid_amount"`
	MerchantProfit     decimal.Decimal `json:"merchant_profit"`
	Status             InvoiceStatus   `json:"status"`
	PaymentDetails     PaymentDetails  `json:"payment_details"`
	PaidAt             *time.Time      `json:"paid_at,omitempty"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

// IsTerminal returns true once the invoice can no longer change state.
func (i *FulfillmentInvoice) IsTerminal() bool {
	return i.Status == InvoiceStatusCancelled
}

// CostBreakdown is the cost basis shared by profit crediting and invoice creation.
type CostBreakdown struct {
	Items          []InvoiceItem
	SkippedItems   int
	ProductionCost decimal.Decimal
	ShippingCost   decimal.Decimal
	Tax            decimal.Decimal
	TotalAmount    decimal.Decimal
}

// Profit returns paid minus the total cost; may be zero or negative.
func (c *CostBreakdown) Profit(customerPaid decimal.Decimal) decimal.Decimal {
	return customerPaid.Sub(c.TotalAmount)
}
