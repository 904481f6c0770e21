package product

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"3tcapital/ms_ecommerce_audit/internal/core/product"
	"3tcapital/ms_ecommerce_audit/internal/testutil"
)

func TestService_Create(t *testing.T) {
	repo := testutil.NewFakeProductRepository()
	service := NewService(repo)

	created, err := service.Create(context.Background(), ProductRequest{
		Name:          "  Mechanical Keyboard ",
		Description:   "TKL",
		Price:         89.5,
		StockQuantity: 12,
	})

	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "Mechanical Keyboard", created.Name)

	stored, err := service.Get(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, created, stored)
}

func TestService_Create_Validation(t *testing.T) {
	tests := []struct {
		name string
		req  ProductRequest
	}{
		{"missing name", ProductRequest{Name: "   ", Price: 1}},
		{"negative price", ProductRequest{Name: "Mouse", Price: -0.01}},
		{"negative stock", ProductRequest{Name: "Mouse", StockQuantity: -1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := testutil.NewFakeProductRepository()
			_, err := NewService(repo).Create(context.Background(), tt.req)

			assert.ErrorIs(t, err, product.ErrInvalidProduct)
			products, _ := repo.List(context.Background())
			assert.Empty(t, products, "invalid products must not reach storage")
		})
	}
}

func TestService_Create_RepositoryError(t *testing.T) {
	repo := testutil.NewFakeProductRepository()
	repo.Err = errors.New("connection refused")

	_, err := NewService(repo).Create(context.Background(), ProductRequest{Name: "Mouse"})

	require.Error(t, err)
	assert.ErrorIs(t, err, repo.Err)
	assert.NotErrorIs(t, err, product.ErrInvalidProduct)
}

func TestService_List(t *testing.T) {
	service := NewService(testutil.NewFakeProductRepository())

	empty, err := service.List(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, empty, "an empty catalog renders as [] rather than null")

	_, _ = service.Create(context.Background(), ProductRequest{Name: "Monitor"})
	_, _ = service.Create(context.Background(), ProductRequest{Name: "Cable"})

	products, err := service.List(context.Background())
	require.NoError(t, err)
	require.Len(t, products, 2)
	assert.Equal(t, "Cable", products[0].Name)
}

func TestService_Get_NotFound(t *testing.T) {
	service := NewService(testutil.NewFakeProductRepository())

	_, err := service.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, product.ErrNotFound)

	_, err = service.Get(context.Background(), " ")
	assert.ErrorIs(t, err, product.ErrNotFound)
}

func TestService_UpdateAndDelete(t *testing.T) {
	ctx := context.Background()
	service := NewService(testutil.NewFakeProductRepository())

	created, err := service.Create(ctx, ProductRequest{Name: "Headset", Price: 40})
	require.NoError(t, err)

	updated, err := service.Update(ctx, created.ID, ProductRequest{Name: "Headset Pro", Price: 60, StockQuantity: 2})
	require.NoError(t, err)
	assert.Equal(t, created.ID, updated.ID)
	assert.Equal(t, "Headset Pro", updated.Name)

	_, err = service.Update(ctx, "missing", ProductRequest{Name: "Ghost"})
	assert.ErrorIs(t, err, product.ErrNotFound)

	_, err = service.Update(ctx, created.ID, ProductRequest{Name: ""})
	assert.ErrorIs(t, err, product.ErrInvalidProduct)

	require.NoError(t, service.Delete(ctx, created.ID))
	assert.ErrorIs(t, service.Delete(ctx, created.ID), product.ErrNotFound)
}
