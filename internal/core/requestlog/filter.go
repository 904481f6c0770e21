package requestlog

import (
	"errors"
	"fmt"
	"regexp"
	"time"
)

const (
	DefaultPageSize = 50
	MaxPageSize     = 500
	// MaxPage keeps (Page-1)*PageSize well inside a 32-bit int.
	MaxPage = 1_000_000
)

// ErrInvalidFilter is returned when a query filter cannot be evaluated.
var ErrInvalidFilter = errors.New("invalid log filter")

// Filter selects request logs for the log viewer.
// Method, Path and TraceID are case-insensitive regular expressions;
// From and To are inclusive bounds on TimestampUTC.
type Filter struct {
	Method     string
	Path       string
	TraceID    string
	StatusCode *int
	From       *time.Time
	To         *time.Time
	Page       int
	PageSize   int
}

// Normalize applies pagination defaults and caps.
func (f Filter) Normalize() Filter {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PageSize < 1 {
		f.PageSize = DefaultPageSize
	}
	if f.PageSize > MaxPageSize {
		f.PageSize = MaxPageSize
	}
	return f
}

// Skip returns the number of records preceding the requested page.
func (f Filter) Skip() int {
	if f.Page < 1 || f.PageSize < 1 {
		return 0
	}
	if f.Page > MaxPage || f.PageSize > MaxPageSize {
		return MaxPage * MaxPageSize
	}
	return (f.Page - 1) * f.PageSize
}

// Validate checks the page bound, that patterns compile and that the time
// range is not inverted.
func (f Filter) Validate() error {
	if f.Page > MaxPage {
		return fmt.Errorf("%w: page must not exceed %d", ErrInvalidFilter, MaxPage)
	}

	patterns := []struct {
		field string
		value string
	}{
		{"method", f.Method},
		{"path", f.Path},
		{"traceId", f.TraceID},
	}
	for _, p := range patterns {
		if p.value == "" {
			continue
		}
		if _, err := regexp.Compile("(?i)" + p.value); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalidFilter, p.field, err)
		}
	}

	if f.From != nil && f.To != nil && f.From.After(*f.To) {
		return fmt.Errorf("%w: from must not be after to", ErrInvalidFilter)
	}
	return nil
}
