package service

import (
	"context"
	"fmt"

	"merchant-settlement/internal/core/domain"
	"merchant-settlement/internal/core/ports"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CostResolverImpl implements ports.CostResolver over the product catalog.
type CostResolverImpl struct {
	catalog ports.CatalogRepository
}

// NewCostResolver creates a new CostResolverImpl.
func NewCostResolver(catalog ports.CatalogRepository) *CostResolverImpl {
	return &CostResolverImpl{catalog: catalog}
}

// ResolveUnitCost prefers a matching variant price and falls back to the base price.
func (r *CostResolverImpl) ResolveUnitCost(ctx context.Context, productID uuid.UUID, variant *domain.VariantChoice) (decimal.Decimal, error) {
	product, err := r.catalog.GetProduct(ctx, productID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("get product %s: %w", productID, err)
	}
	if product == nil {
		return decimal.Zero, fmt.Errorf("%w: %s", domain.ErrProductNotFound, productID)
	}

	if !variant.IsEmpty() {
		for _, v := range product.Variants {
			if v.Matches(variant) {
				return v.Price, nil
			}
		}
	}
	return product.BasePrice, nil
}
