package domain

import "errors"

// Storage-level conflicts surfaced by repositories.
var (
	ErrInvoiceOrderExists       = errors.New("invoice already exists for order")
	ErrInvoiceNumberTaken       = errors.New("invoice number already taken")
	ErrDuplicateIdempotencyKey  = errors.New("idempotency key already applied")
	ErrWithdrawalAlreadyPending = errors.New("merchant already has a pending withdrawal")
	ErrStaleWithdrawal          = errors.New("withdrawal status changed concurrently")
)

// Business rule violations.
var (
	ErrInsufficientBalance = errors.New("insufficient wallet balance")
	ErrProductNotFound     = errors.New("product not found")
)
