package product

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	appproduct "3tcapital/ms_ecommerce_audit/internal/application/product"
	"3tcapital/ms_ecommerce_audit/internal/core/product"
	ctxutil "3tcapital/ms_ecommerce_audit/internal/infrastructure/context"
	httperrors "3tcapital/ms_ecommerce_audit/internal/infrastructure/http"
)

// Handler exposes the product catalog over HTTP.
type Handler struct {
	service *appproduct.Service
	log     *slog.Logger
}

func NewHandler(service *appproduct.Service, log *slog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log,
	}
}

// Routes mounts the product endpoints on r.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/", h.CreateProduct)
	r.Get("/", h.ListProducts)
	r.Get("/{id}", h.GetProduct)
	r.Put("/{id}", h.UpdateProduct)
	r.Delete("/{id}", h.DeleteProduct)
}

func (h *Handler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decode(w, r)
	if !ok {
		return
	}

	created, err := h.service.Create(r.Context(), req)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	w.Header().Set("Location", "/api/products/"+created.ID)
	httperrors.WriteJSON(w, http.StatusCreated, created, h.log)
}

func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.service.List(r.Context())
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	httperrors.WriteJSON(w, http.StatusOK, products, h.log)
}

func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	httperrors.WriteJSON(w, http.StatusOK, p, h.log)
}

func (h *Handler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decode(w, r)
	if !ok {
		return
	}

	updated, err := h.service.Update(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	httperrors.WriteJSON(w, http.StatusOK, updated, h.log)
}

func (h *Handler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.handleError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request) (appproduct.ProductRequest, bool) {
	var req appproduct.ProductRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		httperrors.WriteError(w, http.StatusBadRequest, "Validation Error", []string{"request body is not valid JSON: " + err.Error()}, h.log)
		return req, false
	}
	return req, true
}

func (h *Handler) handleError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, product.ErrNotFound):
		httperrors.WriteError(w, http.StatusNotFound, "Not Found", []string{"product not found"}, h.log)
	case errors.Is(err, product.ErrInvalidProduct):
		httperrors.WriteError(w, http.StatusBadRequest, "Validation Error", validationMessages(err), h.log)
	default:
		h.log.ErrorContext(r.Context(), "product request failed", "error", err, ctxutil.TraceAttr(r.Context()))
		httperrors.WriteError(w, http.StatusInternalServerError, "Internal Server Error", []string{"an internal error occurred"}, h.log)
	}
}

// validationMessages splits "invalid product: a; b" into its individual problems.
func validationMessages(err error) []string {
	msg := strings.TrimPrefix(err.Error(), product.ErrInvalidProduct.Error()+": ")
	return strings.Split(msg, "; ")
}
