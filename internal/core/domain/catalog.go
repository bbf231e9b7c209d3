package domain

import (
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// VariantChoice is the size/color a customer picked for an order item.
type VariantChoice struct {
	Size  string `json:"size,omitempty"`
	Color string `json:"color,omitempty"`
}

// IsEmpty reports whether no variant attribute was chosen.
func (v *VariantChoice) IsEmpty() bool {
	return v == nil || (strings.TrimSpace(v.Size) == "" && strings.TrimSpace(v.Color) == "")
}

// ProductVariant is a variant-specific production price record.
type ProductVariant struct {
	ID        uuid.UUID       `json:"id"`
	ProductID uuid.UUID       `json:"product_id"`
	Size      string          `json:"size"`
	Color     string          `json:"color"`
	Price     decimal.Decimal `json:"price"`
}

// Matches reports whether this record prices the given choice.
// A blank attribute on the choice matches any value on the record.
func (pv ProductVariant) Matches(choice *VariantChoice) bool {
	if choice.IsEmpty() {
		return false
	}
	if s := strings.TrimSpace(choice.Size); s != "" && !strings.EqualFold(s, pv.Size) {
		return false
	}
	if c := strings.TrimSpace(choice.Color); c != "" && !strings.EqualFold(c, pv.Color) {
		return false
	}
	return true
}

// Product is a catalog entry with its base production cost.
type Product struct {
	ID        uuid.UUID        `json:"id"`
	Name      string           `json:"name"`
	BasePrice decimal.Decimal  `json:"base_price"`
	Variants  []ProductVariant `json:"variants,omitempty"`
}
