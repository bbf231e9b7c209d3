package dto

import (
	"time"

	"merchant-settlement/internal/core/domain"
)

// SettleRequest is the request body for settling a completed order.
type SettleRequest struct {
	OrderID string `json:"order_id" binding:"required,uuid"`
}

// WithdrawalRequest is the request body for a new withdrawal.
type WithdrawalRequest struct {
	AmountPaise int64  `json:"amount_paise" binding:"required,gt=0"`
	UPIID       string `json:"upi_id" binding:"required,upi_id"`
}

// ReasonRequest is the request body for rejecting or failing a withdrawal.
type ReasonRequest struct {
	Reason string `json:"reason" binding:"required,max=500"`
}

// PayoutRequest is the request body for confirming a manual payout.
type PayoutRequest struct {
	PayoutReference string `json:"payout_reference" binding:"required,max=100,safe_id"`
}

// InvoiceItemResponse is one line of an invoice.
type InvoiceItemResponse struct {
	ProductID   string `json:"product_id"`
	ProductName string `json:"product_name"`
	Quantity    int    `json:"quantity"`
	UnitCost    string `json:"unit_cost"`
	Size        string `json:"size,omitempty"`
	Color       string `json:"color,omitempty"`
}

// InvoiceResponse is the response body for a fulfillment invoice.
type InvoiceResponse struct {
	ID                 string                `json:"id"`
	InvoiceNumber      string                `json:"invoice_number"`
	OrderID            string                `json:"order_id"`
	MerchantID         string                `json:"merchant_id"`
	StoreID            string                `json:"store_id"`
	Items              []InvoiceItemResponse `json:"items"`
	ProductionCost     string                `json:"production_cost"`
	ShippingCost       string                `json:"shipping_cost"`
	Tax                string                `json:"tax"`
	TotalAmount        string                `json:"total_amount"`
	CustomerPaidAmount string                `json:"customer_paid_amount"`
	MerchantProfit     string                `json:"merchant_profit"`
	Status             string                `json:"status"`
	SettlementMethod   string                `json:"settlement_method"`
	AutoPaid           bool                  `json:"auto_paid"`
	PaidAt             *string               `json:"paid_at,omitempty"`
	CreatedAt          string                `json:"created_at"`
}

// WalletBalanceResponse is the response for a balance query.
type WalletBalanceResponse struct {
	BalancePaise     int64  `json:"balance_paise"`
	Balance          string `json:"balance"`
	Currency         string `json:"currency"`
	OutstandingPaise int64  `json:"outstanding_withdrawals_paise"`
	HasPending       bool   `json:"has_pending_withdrawal"`
}

// LedgerEntryResponse is one wallet transaction.
type LedgerEntryResponse struct {
	ID            string `json:"id"`
	Type          string `json:"type"`
	AmountPaise   int64  `json:"amount_paise"`
	Currency      string `json:"currency"`
	Source        string `json:"source"`
	ReferenceType string `json:"reference_type,omitempty"`
	ReferenceID   string `json:"reference_id,omitempty"`
	CreatedAt     string `json:"created_at"`
}

// WithdrawalResponse is the response body for a withdrawal request.
type WithdrawalResponse struct {
	ID                        string  `json:"id"`
	MerchantID                string  `json:"merchant_id"`
	AmountPaise               int64   `json:"amount_paise"`
	Currency                  string  `json:"currency"`
	UPIID                     string  `json:"upi_id"`
	Status                    string  `json:"status"`
	RequestedAt               string  `json:"requested_at"`
	ReviewedAt                *string `json:"reviewed_at,omitempty"`
	ReviewedBy                *string `json:"reviewed_by,omitempty"`
	PaidAt                    *string `json:"paid_at,omitempty"`
	RejectionReason           *string `json:"rejection_reason,omitempty"`
	FailureReason             *string `json:"failure_reason,omitempty"`
	PayoutReference           *string `json:"payout_reference,omitempty"`
	BalanceBeforeRequestPaise int64   `json:"balance_before_request_paise"`
	TransactionID             *string `json:"transaction_id,omitempty"`
	ReversalTransactionID     *string `json:"reversal_transaction_id,omitempty"`
}

// NewInvoiceResponse maps a domain invoice to its response body.
func NewInvoiceResponse(inv *domain.FulfillmentInvoice) InvoiceResponse {
	items := make([]InvoiceItemResponse, 0, len(inv.Items))
	for _, it := range inv.Items {
		item := InvoiceItemResponse{
			ProductID:   it.ProductID.String(),
			ProductName: it.ProductName,
			Quantity:    it.Quantity,
			UnitCost:    it.UnitCost.StringFixed(2),
		}
		if it.Variant != nil {
			item.Size = it.Variant.Size
			item.Color = it.Variant.Color
		}
		items = append(items, item)
	}

	return InvoiceResponse{
		ID:                 inv.ID.String(),
		InvoiceNumber:      inv.InvoiceNumber,
		OrderID:            inv.OrderID.String(),
		MerchantID:         inv.MerchantID.String(),
		StoreID:            inv.StoreID.String(),
		Items:              items,
		ProductionCost:     inv.ProductionCost.StringFixed(2),
		ShippingCost:       inv.ShippingCost.StringFixed(2),
		Tax:                inv.Tax.StringFixed(2),
		TotalAmount:        inv.TotalAmount.StringFixed(2),
		CustomerPaidAmount: inv.CustomerPaidAmount.StringFixed(2),
		MerchantProfit:     inv.MerchantProfit.StringFixed(2),
		Status:             string(inv.Status),
		SettlementMethod:   string(inv.PaymentDetails.Method),
		AutoPaid:           inv.PaymentDetails.AutoPaid,
		PaidAt:             formatTime(inv.PaidAt),
		CreatedAt:          inv.CreatedAt.Format(time.RFC3339),
	}
}

// NewLedgerEntryResponse maps a wallet transaction to its response body.
func NewLedgerEntryResponse(t *domain.WalletTransaction) LedgerEntryResponse {
	return LedgerEntryResponse{
		ID:            t.ID.String(),
		Type:          string(t.Type),
		AmountPaise:   t.AmountPaise,
		Currency:      t.Currency,
		Source:        t.Source,
		ReferenceType: t.ReferenceType,
		ReferenceID:   t.ReferenceID,
		CreatedAt:     t.CreatedAt.Format(time.RFC3339),
	}
}

// NewWithdrawalResponse maps a withdrawal request to its response body.
func NewWithdrawalResponse(w *domain.WithdrawalRequest) WithdrawalResponse {
	resp := WithdrawalResponse{
		ID:                        w.ID.String(),
		MerchantID:                w.MerchantID.String(),
		AmountPaise:               w.AmountPaise,
		Currency:                  w.Currency,
		UPIID:                     w.UPIID,
		Status:                    string(w.Status),
		RequestedAt:               w.RequestedAt.Format(time.RFC3339),
		ReviewedAt:                formatTime(w.ReviewedAt),
		PaidAt:                    formatTime(w.PaidAt),
		RejectionReason:           w.RejectionReason,
		FailureReason:             w.FailureReason,
		PayoutReference:           w.PayoutReference,
		BalanceBeforeRequestPaise: w.BalanceBeforeRequestPaise,
	}
	if w.ReviewedBy != nil {
		s := w.ReviewedBy.String()
		resp.ReviewedBy = &s
	}
	if w.TransactionID != nil {
		s := w.TransactionID.String()
		resp.TransactionID = &s
	}
	if w.ReversalTransactionID != nil {
		s := w.ReversalTransactionID.String()
		resp.ReversalTransactionID = &s
	}
	return resp
}

func formatTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(time.RFC3339)
	return &s
}
