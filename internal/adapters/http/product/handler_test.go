package product

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appproduct "3tcapital/ms_ecommerce_audit/internal/application/product"
	"3tcapital/ms_ecommerce_audit/internal/core/product"
	"3tcapital/ms_ecommerce_audit/internal/testutil"
)

func newRouter(repo *testutil.FakeProductRepository) http.Handler {
	h := NewHandler(appproduct.NewService(repo), testutil.NewNullLogger())
	r := chi.NewRouter()
	r.Route("/api/products", h.Routes)
	return r
}

func serve(router http.Handler, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestHandler_CreateProduct(t *testing.T) {
	router := newRouter(testutil.NewFakeProductRepository())

	w := serve(router, testutil.CreateRequest(http.MethodPost, "/api/products",
		map[string]any{"name": "Keyboard", "price": 49.9, "stockQuantity": 3}, nil))

	var created product.Product
	testutil.ReadJSONResponse(t, w, http.StatusCreated, &created)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "Keyboard", created.Name)
	assert.Equal(t, "/api/products/"+created.ID, w.Header().Get("Location"))
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
}

func TestHandler_CreateProduct_BadRequests(t *testing.T) {
	tests := []struct {
		name     string
		body     any
		contains string
	}{
		{"malformed json", `{"name":`, "not valid JSON"},
		{"unknown field", `{"name":"Mouse","colour":"red"}`, "not valid JSON"},
		{"missing name", map[string]any{"price": 1}, "name is required"},
		{"negative price", map[string]any{"name": "Mouse", "price": -1}, "price must not be negative"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(newRouter(testutil.NewFakeProductRepository()),
				testutil.CreateRequest(http.MethodPost, "/api/products", tt.body, nil))

			body := testutil.ReadErrorResponse(t, w, http.StatusBadRequest)
			assert.Equal(t, "Validation Error", body.Message)
			require.NotEmpty(t, body.Errors)
			assert.Contains(t, body.Errors[0], tt.contains)
		})
	}
}

func TestHandler_ListAndGet(t *testing.T) {
	repo := testutil.NewFakeProductRepository()
	router := newRouter(repo)

	var empty []product.Product
	testutil.ReadJSONResponse(t, serve(router, testutil.CreateRequest(http.MethodGet, "/api/products", nil, nil)), http.StatusOK, &empty)
	assert.Empty(t, empty)

	var created product.Product
	testutil.ReadJSONResponse(t, serve(router, testutil.CreateRequest(http.MethodPost, "/api/products",
		map[string]any{"name": "Monitor", "price": 199}, nil)), http.StatusCreated, &created)

	var listed []product.Product
	testutil.ReadJSONResponse(t, serve(router, testutil.CreateRequest(http.MethodGet, "/api/products", nil, nil)), http.StatusOK, &listed)
	require.Len(t, listed, 1)

	var fetched product.Product
	testutil.ReadJSONResponse(t, serve(router, testutil.CreateRequest(http.MethodGet, "/api/products/"+created.ID, nil, nil)), http.StatusOK, &fetched)
	assert.Equal(t, created, fetched)
}

func TestHandler_GetProduct_NotFound(t *testing.T) {
	w := serve(newRouter(testutil.NewFakeProductRepository()),
		testutil.CreateRequest(http.MethodGet, "/api/products/does-not-exist", nil, nil))

	body := testutil.ReadErrorResponse(t, w, http.StatusNotFound)
	assert.Equal(t, []string{"product not found"}, body.Errors)
}

func TestHandler_UpdateAndDelete(t *testing.T) {
	router := newRouter(testutil.NewFakeProductRepository())

	var created product.Product
	testutil.ReadJSONResponse(t, serve(router, testutil.CreateRequest(http.MethodPost, "/api/products",
		map[string]any{"name": "Webcam", "price": 30}, nil)), http.StatusCreated, &created)

	var updated product.Product
	testutil.ReadJSONResponse(t, serve(router, testutil.CreateRequest(http.MethodPut, "/api/products/"+created.ID,
		map[string]any{"name": "Webcam HD", "price": 45, "stockQuantity": 7}, nil)), http.StatusOK, &updated)
	assert.Equal(t, created.ID, updated.ID)
	assert.Equal(t, 7, updated.StockQuantity)

	w := serve(router, testutil.CreateRequest(http.MethodDelete, "/api/products/"+created.ID, nil, nil))
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = serve(router, testutil.CreateRequest(http.MethodDelete, "/api/products/"+created.ID, nil, nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandler_StorageFailure(t *testing.T) {
	repo := testutil.NewFakeProductRepository()
	repo.Err = errors.New("pool closed")

	w := serve(newRouter(repo), testutil.CreateRequest(http.MethodGet, "/api/products", nil, nil))

	body := testutil.ReadErrorResponse(t, w, http.StatusInternalServerError)
	assert.NotContains(t, body.Errors[0], "pool closed", "internal errors are not leaked")
}
