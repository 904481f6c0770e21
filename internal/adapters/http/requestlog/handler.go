package requestlog

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	apprequestlog "3tcapital/ms_ecommerce_audit/internal/application/requestlog"
	"3tcapital/ms_ecommerce_audit/internal/core/requestlog"
	ctxutil "3tcapital/ms_ecommerce_audit/internal/infrastructure/context"
	httperrors "3tcapital/ms_ecommerce_audit/internal/infrastructure/http"
)

// Handler serves the log viewer API.
type Handler struct {
	service *apprequestlog.Service
	log     *slog.Logger
}

func NewHandler(service *apprequestlog.Service, log *slog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log,
	}
}

// Routes mounts the log viewer endpoints on r.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/", h.SearchLogs)
	r.Get("/recent", h.RecentLogs)
}

// SearchLogs handles GET /api/logs?method=&path=&traceId=&statusCode=&from=&to=&page=&pageSize=
func (h *Handler) SearchLogs(w http.ResponseWriter, r *http.Request) {
	filter, problems := parseFilter(r.URL.Query())
	if len(problems) > 0 {
		httperrors.WriteError(w, http.StatusBadRequest, "Validation Error", problems, h.log)
		return
	}

	page, err := h.service.Search(r.Context(), filter)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	httperrors.WriteJSON(w, http.StatusOK, page, h.log)
}

// RecentLogs handles GET /api/logs/recent?limit=
func (h *Handler) RecentLogs(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			httperrors.WriteError(w, http.StatusBadRequest, "Validation Error", []string{"limit must be a positive integer"}, h.log)
			return
		}
		limit = parsed
	}

	records, err := h.service.Recent(r.Context(), limit)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	httperrors.WriteJSON(w, http.StatusOK, records, h.log)
}

func (h *Handler) handleError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, requestlog.ErrInvalidFilter) {
		httperrors.WriteError(w, http.StatusBadRequest, "Validation Error", []string{err.Error()}, h.log)
		return
	}
	h.log.ErrorContext(r.Context(), "log query failed", "error", err, ctxutil.TraceAttr(r.Context()))
	httperrors.WriteError(w, http.StatusInternalServerError, "Internal Server Error", []string{"an internal error occurred"}, h.log)
}

func parseFilter(q url.Values) (requestlog.Filter, []string) {
	filter := requestlog.Filter{
		Method:  strings.TrimSpace(q.Get("method")),
		Path:    strings.TrimSpace(q.Get("path")),
		TraceID: strings.TrimSpace(q.Get("traceId")),
	}
	var problems []string

	if raw := q.Get("statusCode"); raw != "" {
		code, err := strconv.Atoi(raw)
		if err != nil || code < 100 || code > 599 {
			problems = append(problems, "statusCode must be an HTTP status code")
		} else {
			filter.StatusCode = &code
		}
	}

	for _, bound := range []struct {
		name string
		dst  **time.Time
	}{
		{"from", &filter.From},
		{"to", &filter.To},
	} {
		raw := q.Get(bound.name)
		if raw == "" {
			continue
		}
		ts, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			problems = append(problems, fmt.Sprintf("%s must be an RFC 3339 timestamp", bound.name))
			continue
		}
		ts = ts.UTC()
		*bound.dst = &ts
	}

	for _, n := range []struct {
		name string
		dst  *int
	}{
		{"page", &filter.Page},
		{"pageSize", &filter.PageSize},
	} {
		raw := q.Get(n.name)
		if raw == "" {
			continue
		}
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 {
			problems = append(problems, n.name+" must be a positive integer")
			continue
		}
		*n.dst = v
	}

	return filter, problems
}
