package testutil

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

// ErrorBody mirrors the JSON error payload written by the HTTP layer.
type ErrorBody struct {
	Message string   `json:"message"`
	Errors  []string `json:"errors"`
}

// ReadJSONResponse checks the status code and decodes the JSON body into v.
func ReadJSONResponse(t testing.TB, w *httptest.ResponseRecorder, status int, v any) {
	t.Helper()
	if w.Code != status {
		t.Fatalf("expected status %d, got %d: %s", status, w.Code, w.Body.String())
	}
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("failed to decode JSON response: %v", err)
	}
}

// ReadErrorResponse checks the status code and decodes the error payload.
func ReadErrorResponse(t testing.TB, w *httptest.ResponseRecorder, status int) ErrorBody {
	t.Helper()
	var body ErrorBody
	ReadJSONResponse(t, w, status, &body)
	return body
}

// CreateRequest creates an HTTP request with an optional JSON body and headers.
// A string body is sent verbatim.
func CreateRequest(method, path string, body any, headers map[string]string) *http.Request {
	var payload []byte
	switch b := body.(type) {
	case nil:
	case string:
		payload = []byte(b)
	default:
		payload, _ = json.Marshal(b)
	}

	req := httptest.NewRequest(method, path, bytes.NewReader(payload))
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return req
}
