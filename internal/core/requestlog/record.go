package requestlog

import (
	"context"
	"time"
)

// Record represents one captured HTTP request/response exchange.
// Records are append-only: they are created by the capture middleware,
// shipped through the broker and made durable by a Repository, which is
// the only place where ID gets assigned.
type Record struct {
	ID              string            `json:"id,omitempty"`
	TimestampUTC    time.Time         `json:"timestampUtc"`
	TraceID         string            `json:"traceId"`
	Method          string            `json:"method"`
	Path            string            `json:"path"`
	StatusCode      int               `json:"statusCode"`
	RequestBody     string            `json:"requestBody"`
	ResponseBody    string            `json:"responseBody"`
	RequestHeaders  map[string]string `json:"requestHeaders"`
	ResponseHeaders map[string]string `json:"responseHeaders"`
}

// Repository defines the storage contract for request logs.
type Repository interface {
	// Insert persists the record and returns the identifier assigned by storage.
	// Any ID already present on rec is ignored.
	Insert(ctx context.Context, rec Record) (string, error)

	// Find returns the page of records selected by the filter, newest first.
	// The filter is expected to be normalized.
	Find(ctx context.Context, filter Filter) ([]Record, error)

	// Count returns the number of records matching the filter, ignoring pagination.
	Count(ctx context.Context, filter Filter) (int64, error)
}
