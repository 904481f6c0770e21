package product

import (
	"context"
	"fmt"
	"strings"

	"3tcapital/ms_ecommerce_audit/internal/core/product"
)

// Service orchestrates product-related use cases.
type Service struct {
	repo product.Repository
}

// NewService creates a new product service with the given repository.
func NewService(repo product.Repository) *Service {
	return &Service{
		repo: repo,
	}
}

// ProductRequest is the client payload for creating or replacing a product.
type ProductRequest struct {
	Name          string  `json:"name"`
	Description   string  `json:"description"`
	Price         float64 `json:"price"`
	StockQuantity int     `json:"stockQuantity"`
}

func (r ProductRequest) toProduct(id string) product.Product {
	return product.Product{
		ID:            id,
		Name:          strings.TrimSpace(r.Name),
		Description:   strings.TrimSpace(r.Description),
		Price:         r.Price,
		StockQuantity: r.StockQuantity,
	}
}

// Create validates the request and stores a new product.
func (s *Service) Create(ctx context.Context, req ProductRequest) (product.Product, error) {
	p := req.toProduct("")
	if err := p.Validate(); err != nil {
		return product.Product{}, err
	}

	created, err := s.repo.Create(ctx, p)
	if err != nil {
		return product.Product{}, fmt.Errorf("failed to create product: %w", err)
	}
	return created, nil
}

// List returns the whole catalog.
func (s *Service) List(ctx context.Context) ([]product.Product, error) {
	products, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	if products == nil {
		products = []product.Product{}
	}
	return products, nil
}

// Get returns product.ErrNotFound when the id is unknown.
func (s *Service) Get(ctx context.Context, id string) (product.Product, error) {
	if strings.TrimSpace(id) == "" {
		return product.Product{}, product.ErrNotFound
	}

	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return product.Product{}, fmt.Errorf("failed to get product %s: %w", id, err)
	}
	return p, nil
}

// Update replaces an existing product.
func (s *Service) Update(ctx context.Context, id string, req ProductRequest) (product.Product, error) {
	p := req.toProduct(id)
	if err := p.Validate(); err != nil {
		return product.Product{}, err
	}

	updated, err := s.repo.Update(ctx, p)
	if err != nil {
		return product.Product{}, fmt.Errorf("failed to update product %s: %w", id, err)
	}
	return updated, nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete product %s: %w", id, err)
	}
	return nil
}
