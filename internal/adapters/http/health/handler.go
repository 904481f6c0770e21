package health

import (
	"net/http"

	apphealth "3tcapital/ms_ecommerce_audit/internal/application/health"
	corehealth "3tcapital/ms_ecommerce_audit/internal/core/health"
	httperrors "3tcapital/ms_ecommerce_audit/internal/infrastructure/http"
)

type Handler struct {
	service *apphealth.Service
}

func NewHandler(service *apphealth.Service) *Handler {
	return &Handler{service: service}
}

// Status renders the health snapshot: 200 when UP, 503 when DEGRADED.
// Probes are never cached, so load balancers see the live state.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	snapshot := h.service.Status(r.Context())

	code := http.StatusOK
	if snapshot.Status != corehealth.StatusUp {
		code = http.StatusServiceUnavailable
	}
	w.Header().Set("Cache-Control", "no-store")
	httperrors.WriteJSON(w, code, snapshot, nil)
}
