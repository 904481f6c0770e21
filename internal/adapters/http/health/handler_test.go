package health

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apphealth "3tcapital/ms_ecommerce_audit/internal/application/health"
	corehealth "3tcapital/ms_ecommerce_audit/internal/core/health"
	"3tcapital/ms_ecommerce_audit/internal/testutil"
)

func serveHealth(t *testing.T, checks ...apphealth.Check) (*httptest.ResponseRecorder, corehealth.Status) {
	t.Helper()
	service := apphealth.NewService(apphealth.Metadata{Service: "ecommerce_api", Version: "0.3.1", Environment: "test"}, checks...)

	w := httptest.NewRecorder()
	NewHandler(service).Status(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	var status corehealth.Status
	testutil.ReadJSONResponse(t, w, w.Code, &status)
	return w, status
}

func TestHandler_StatusUp(t *testing.T) {
	w, status := serveHealth(t, apphealth.Check{Name: "mongo", Probe: func(context.Context) error { return nil }})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
	assert.Equal(t, corehealth.StatusUp, status.Status)
	assert.Equal(t, "ecommerce_api", status.Service)
	require.Len(t, status.Dependencies, 1)
	assert.Equal(t, corehealth.StatusUp, status.Dependencies[0].Status)
}

func TestHandler_StatusDegradedIs503(t *testing.T) {
	w, status := serveHealth(t,
		apphealth.Check{Name: "mongo", Probe: func(context.Context) error { return errors.New("server selection timeout") }},
		apphealth.Check{Name: "rabbitmq", Probe: func(context.Context) error { return nil }},
	)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, corehealth.StatusDegraded, status.Status)
	require.Len(t, status.Dependencies, 2)
	assert.Equal(t, "server selection timeout", status.Dependencies[0].Error)
	assert.Empty(t, status.Dependencies[1].Error)
}

func TestHandler_NoDependencies(t *testing.T) {
	w, status := serveHealth(t)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Nil(t, status.Dependencies)
	assert.Equal(t, "0.3.1", status.Version)
}
