package service

import (
	"context"
	"fmt"

	"merchant-settlement/internal/core/ports"
)

// InvoiceNumberAllocatorImpl implements ports.InvoiceNumberAllocator.
//
// Numbers are count-based: two concurrent callers can receive the same number.
// The unique constraint on invoice_number rejects the loser, which retries
// with a recomputed count.
type InvoiceNumberAllocatorImpl struct {
	invoices ports.InvoiceRepository
}

// NewInvoiceNumberAllocator creates a new InvoiceNumberAllocatorImpl.
func NewInvoiceNumberAllocator(invoices ports.InvoiceRepository) *InvoiceNumberAllocatorImpl {
	return &InvoiceNumberAllocatorImpl{invoices: invoices}
}

// Allocate returns INV-<year>-<seq> where seq is the year's invoice count plus one.
func (a *InvoiceNumberAllocatorImpl) Allocate(ctx context.Context, year int) (string, error) {
	count, err := a.invoices.CountByYear(ctx, year)
	if err != nil {
		return "", fmt.Errorf("count invoices: %w", err)
	}
	return FormatInvoiceNumber(year, count+1), nil
}

// FormatInvoiceNumber renders an invoice number with a zero-padded sequence.
func FormatInvoiceNumber(year int, seq int64) string {
	return fmt.Sprintf("INV-%d-%04d", year, seq)
}
