package postgres

import (
	"context"
	"errors"
	"fmt"

	"merchant-settlement/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// StoreRepo implements ports.StoreRepository.
type StoreRepo struct {
	pool Pool
}

func NewStoreRepo(pool Pool) *StoreRepo {
	return &StoreRepo{pool: pool}
}

// GetByID fetches a store, or nil.
func (r *StoreRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Store, error) {
	query := `SELECT id, merchant_id, name, created_at FROM stores WHERE id = $1`

	s := &domain.Store{}
	err := r.pool.QueryRow(ctx, query, id).Scan(&s.ID, &s.MerchantID, &s.Name, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get store by id: %w", err)
	}
	return s, nil
}

// CatalogRepo implements ports.CatalogRepository.
type CatalogRepo struct {
	pool Pool
}

func NewCatalogRepo(pool Pool) *CatalogRepo {
	return &CatalogRepo{pool: pool}
}

// GetProduct fetches a product with its variant price records, or nil.
func (r *CatalogRepo) GetProduct(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	query := `SELECT id, name, base_price FROM products WHERE id = $1`

	p := &domain.Product{}
	err := r.pool.QueryRow(ctx, query, id).Scan(&p.ID, &p.Name, &p.BasePrice)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get product by id: %w", err)
	}

	rows, err := r.pool.Query(ctx,
		`SELECT id, product_id, size, color, price FROM product_variants WHERE product_id = $1 ORDER BY id`, id)
	if err != nil {
		return nil, fmt.Errorf("list product variants: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var v domain.ProductVariant
		if err := rows.Scan(&v.ID, &v.ProductID, &v.Size, &v.Color, &v.Price); err != nil {
			return nil, fmt.Errorf("scan product variant: %w", err)
		}
		p.Variants = append(p.Variants, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate product variants: %w", err)
	}
	return p, nil
}
