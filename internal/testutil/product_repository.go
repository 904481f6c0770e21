package testutil

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"3tcapital/ms_ecommerce_audit/internal/core/product"
)

// FakeProductRepository is an in-memory product.Repository.
type FakeProductRepository struct {
	mu       sync.Mutex
	products map[string]product.Product
	order    []string

	// Err, when set, is returned by every call.
	Err error
}

// NewFakeProductRepository creates an empty repository.
func NewFakeProductRepository() *FakeProductRepository {
	return &FakeProductRepository{products: make(map[string]product.Product)}
}

func (r *FakeProductRepository) Create(_ context.Context, p product.Product) (product.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return product.Product{}, r.Err
	}
	p.ID = uuid.NewString()
	r.products[p.ID] = p
	r.order = append(r.order, p.ID)
	return p, nil
}

func (r *FakeProductRepository) GetByID(_ context.Context, id string) (product.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return product.Product{}, r.Err
	}
	p, ok := r.products[id]
	if !ok {
		return product.Product{}, product.ErrNotFound
	}
	return p, nil
}

func (r *FakeProductRepository) List(_ context.Context) ([]product.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return nil, r.Err
	}
	out := make([]product.Product, 0, len(r.order))
	for _, id := range r.order {
		if p, ok := r.products[id]; ok {
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *FakeProductRepository) Update(_ context.Context, p product.Product) (product.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return product.Product{}, r.Err
	}
	if _, ok := r.products[p.ID]; !ok {
		return product.Product{}, product.ErrNotFound
	}
	r.products[p.ID] = p
	return p, nil
}

func (r *FakeProductRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	if _, ok := r.products[id]; !ok {
		return product.ErrNotFound
	}
	delete(r.products, id)
	return nil
}
