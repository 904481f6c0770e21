package requestlog

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apprequestlog "3tcapital/ms_ecommerce_audit/internal/application/requestlog"
	"3tcapital/ms_ecommerce_audit/internal/core/requestlog"
	"3tcapital/ms_ecommerce_audit/internal/testutil"
)

var base = time.Date(2026, 5, 10, 9, 0, 0, 0, time.UTC)

func newRouter(store requestlog.Repository) http.Handler {
	h := NewHandler(apprequestlog.NewService(store), testutil.NewNullLogger())
	r := chi.NewRouter()
	r.Route("/api/logs", h.Routes)
	return r
}

func get(router http.Handler, target string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, target, nil))
	return w
}

func seeded() *testutil.FakeLogStore {
	return testutil.NewFakeLogStore(
		requestlog.Record{TimestampUTC: base, TraceID: "t-1", Method: "POST", Path: "/api/products", StatusCode: 201},
		requestlog.Record{TimestampUTC: base.Add(time.Minute), TraceID: "t-2", Method: "GET", Path: "/api/products", StatusCode: 200},
		requestlog.Record{TimestampUTC: base.Add(2 * time.Minute), TraceID: "t-3", Method: "GET", Path: "/api/products/x", StatusCode: 404},
	)
}

func TestHandler_SearchLogs(t *testing.T) {
	q := url.Values{}
	q.Set("method", "get")
	q.Set("from", base.Add(30*time.Second).Format(time.RFC3339))
	q.Set("pageSize", "1")

	w := get(newRouter(seeded()), "/api/logs?"+q.Encode())

	var page apprequestlog.Page
	testutil.ReadJSONResponse(t, w, http.StatusOK, &page)
	assert.Equal(t, int64(2), page.Total)
	assert.Equal(t, 2, page.TotalPages)
	assert.Equal(t, 1, page.PageSize)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "t-3", page.Items[0].TraceID)
}

func TestHandler_SearchLogs_StatusCode(t *testing.T) {
	w := get(newRouter(seeded()), "/api/logs?statusCode=201")

	var page apprequestlog.Page
	testutil.ReadJSONResponse(t, w, http.StatusOK, &page)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "t-1", page.Items[0].TraceID)
}

func TestHandler_SearchLogs_BadParameters(t *testing.T) {
	tests := map[string]string{
		"status code not a number": "statusCode=abc",
		"status code out of range": "statusCode=42",
		"bad from":                 "from=yesterday",
		"zero page":                "page=0",
		"page that would overflow": "page=9223372036854775807",
		"bad page size":            "pageSize=ten",
		"invalid regex":            "path=%28unclosed",
		"inverted range":           "from=2026-05-10T10:00:00Z&to=2026-05-10T09:00:00Z",
	}

	for name, query := range tests {
		t.Run(name, func(t *testing.T) {
			w := get(newRouter(seeded()), "/api/logs?"+query)

			body := testutil.ReadErrorResponse(t, w, http.StatusBadRequest)
			assert.Equal(t, "Validation Error", body.Message)
			assert.NotEmpty(t, body.Errors)
		})
	}
}

func TestHandler_RecentLogs(t *testing.T) {
	router := newRouter(seeded())

	var records []requestlog.Record
	testutil.ReadJSONResponse(t, get(router, "/api/logs/recent?limit=2"), http.StatusOK, &records)
	require.Len(t, records, 2)
	assert.Equal(t, "t-3", records[0].TraceID)

	var defaults []requestlog.Record
	testutil.ReadJSONResponse(t, get(router, "/api/logs/recent"), http.StatusOK, &defaults)
	assert.Len(t, defaults, 3)

	w := get(router, "/api/logs/recent?limit=-1")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

type failingStore struct{ requestlog.Repository }

func (failingStore) Find(_ context.Context, _ requestlog.Filter) ([]requestlog.Record, error) {
	return nil, errors.New("mongo: server selection timeout")
}

func (failingStore) Count(_ context.Context, _ requestlog.Filter) (int64, error) {
	return 0, errors.New("mongo: server selection timeout")
}

func TestHandler_StorageFailure(t *testing.T) {
	w := get(newRouter(failingStore{}), "/api/logs")

	body := testutil.ReadErrorResponse(t, w, http.StatusInternalServerError)
	assert.Equal(t, []string{"an internal error occurred"}, body.Errors)
}
