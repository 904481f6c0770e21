package product

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound is returned when no product matches the identifier.
	ErrNotFound = errors.New("product not found")

	// ErrInvalidProduct is returned when a product fails validation.
	ErrInvalidProduct = errors.New("invalid product")
)

// Product is a catalog item exposed by the API.
type Product struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	Description   string  `json:"description"`
	Price         float64 `json:"price"`
	StockQuantity int     `json:"stockQuantity"`
}

// Validate checks the fields a client must provide.
func (p Product) Validate() error {
	var problems []string
	if strings.TrimSpace(p.Name) == "" {
		problems = append(problems, "name is required")
	}
	if p.Price < 0 {
		problems = append(problems, "price must not be negative")
	}
	if p.StockQuantity < 0 {
		problems = append(problems, "stockQuantity must not be negative")
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidProduct, strings.Join(problems, "; "))
	}
	return nil
}

// Repository defines the interface for product persistence operations.
type Repository interface {
	// Create persists a new product and returns it with its assigned ID.
	Create(ctx context.Context, p Product) (Product, error)

	// GetByID returns ErrNotFound when the product does not exist.
	GetByID(ctx context.Context, id string) (Product, error)

	List(ctx context.Context) ([]Product, error)

	// Update replaces an existing product. It never inserts.
	Update(ctx context.Context, p Product) (Product, error)

	Delete(ctx context.Context, id string) error
}
