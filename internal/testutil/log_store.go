package testutil

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"sync"

	"3tcapital/ms_ecommerce_audit/internal/core/requestlog"
)

// ErrStorageUnavailable is the error injected by FakeLogStore.FailNext.
var ErrStorageUnavailable = errors.New("storage unavailable")

// FakeLogStore is an in-memory requestlog.Repository.
type FakeLogStore struct {
	mu       sync.Mutex
	records  []requestlog.Record
	failures int
	inserts  int
	nextID   int

	// OnInsert, when set, runs before every insert attempt.
	OnInsert func(ctx context.Context, rec requestlog.Record)
}

// NewFakeLogStore creates a store seeded with records. Seeds without an ID get one.
func NewFakeLogStore(seed ...requestlog.Record) *FakeLogStore {
	s := &FakeLogStore{}
	for _, rec := range seed {
		if rec.ID == "" {
			s.nextID++
			rec.ID = fmt.Sprintf("log-%d", s.nextID)
		}
		s.records = append(s.records, rec)
	}
	return s
}

// FailNext makes the next n inserts return ErrStorageUnavailable.
func (s *FakeLogStore) FailNext(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = n
}

// Insert stores a copy of rec with a fresh identifier.
func (s *FakeLogStore) Insert(ctx context.Context, rec requestlog.Record) (string, error) {
	if s.OnInsert != nil {
		s.OnInsert(ctx, rec)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.inserts++
	if s.failures > 0 {
		s.failures--
		return "", ErrStorageUnavailable
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	s.nextID++
	rec.ID = fmt.Sprintf("log-%d", s.nextID)
	s.records = append(s.records, rec)
	return rec.ID, nil
}

// Find evaluates the filter the way the real stores do.
func (s *FakeLogStore) Find(_ context.Context, filter requestlog.Filter) ([]requestlog.Record, error) {
	matched, err := s.match(filter)
	if err != nil {
		return nil, err
	}

	start := filter.Skip()
	if start >= len(matched) {
		return []requestlog.Record{}, nil
	}
	end := len(matched)
	if filter.PageSize > 0 && start+filter.PageSize < end {
		end = start + filter.PageSize
	}
	return matched[start:end], nil
}

// Count returns the number of matching records.
func (s *FakeLogStore) Count(_ context.Context, filter requestlog.Filter) (int64, error) {
	matched, err := s.match(filter)
	if err != nil {
		return 0, err
	}
	return int64(len(matched)), nil
}

// Records returns the stored records in insertion order.
func (s *FakeLogStore) Records() []requestlog.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]requestlog.Record, len(s.records))
	copy(out, s.records)
	return out
}

// InsertCalls returns how many inserts were attempted.
func (s *FakeLogStore) InsertCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inserts
}

func (s *FakeLogStore) match(filter requestlog.Filter) ([]requestlog.Record, error) {
	type field struct {
		pattern string
		value   func(requestlog.Record) string
	}
	fields := []field{
		{filter.Method, func(r requestlog.Record) string { return r.Method }},
		{filter.Path, func(r requestlog.Record) string { return r.Path }},
		{filter.TraceID, func(r requestlog.Record) string { return r.TraceID }},
	}

	var regexps []*regexp.Regexp
	var getters []func(requestlog.Record) string
	for _, f := range fields {
		if f.pattern == "" {
			continue
		}
		re, err := regexp.Compile("(?i)" + f.pattern)
		if err != nil {
			return nil, err
		}
		regexps = append(regexps, re)
		getters = append(getters, f.value)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var out []requestlog.Record
next:
	for _, rec := range s.records {
		for i, re := range regexps {
			if !re.MatchString(getters[i](rec)) {
				continue next
			}
		}
		if filter.StatusCode != nil && rec.StatusCode != *filter.StatusCode {
			continue
		}
		if filter.From != nil && rec.TimestampUTC.Before(*filter.From) {
			continue
		}
		if filter.To != nil && rec.TimestampUTC.After(*filter.To) {
			continue
		}
		out = append(out, rec)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].TimestampUTC.After(out[j].TimestampUTC)
	})
	return out, nil
}
