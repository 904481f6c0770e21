package requestlog

import (
	"context"
	"fmt"

	"3tcapital/ms_ecommerce_audit/internal/core/requestlog"
)

const (
	DefaultRecentLimit = 5
	MaxRecentLimit     = 100
)

// Page is one page of log viewer results.
type Page struct {
	Items      []requestlog.Record `json:"items"`
	Total      int64               `json:"total"`
	Page       int                 `json:"page"`
	PageSize   int                 `json:"pageSize"`
	TotalPages int                 `json:"totalPages"`
}

// Service answers log viewer queries against the request log store.
type Service struct {
	repo requestlog.Repository
}

func NewService(repo requestlog.Repository) *Service {
	return &Service{repo: repo}
}

// Search returns the filtered page, newest first. Invalid patterns and
// inverted ranges fail with requestlog.ErrInvalidFilter.
func (s *Service) Search(ctx context.Context, filter requestlog.Filter) (Page, error) {
	filter = filter.Normalize()
	if err := filter.Validate(); err != nil {
		return Page{}, err
	}

	total, err := s.repo.Count(ctx, filter)
	if err != nil {
		return Page{}, fmt.Errorf("failed to count request logs: %w", err)
	}

	items := []requestlog.Record{}
	if total > int64(filter.Skip()) {
		items, err = s.repo.Find(ctx, filter)
		if err != nil {
			return Page{}, fmt.Errorf("failed to find request logs: %w", err)
		}
		if items == nil {
			items = []requestlog.Record{}
		}
	}

	return Page{
		Items:      items,
		Total:      total,
		Page:       filter.Page,
		PageSize:   filter.PageSize,
		TotalPages: totalPages(total, filter.PageSize),
	}, nil
}

// Recent returns the newest limit records. Non-positive limits fall back to
// DefaultRecentLimit.
func (s *Service) Recent(ctx context.Context, limit int) ([]requestlog.Record, error) {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}
	if limit > MaxRecentLimit {
		limit = MaxRecentLimit
	}

	items, err := s.repo.Find(ctx, requestlog.Filter{Page: 1, PageSize: limit})
	if err != nil {
		return nil, fmt.Errorf("failed to load recent request logs: %w", err)
	}
	if items == nil {
		items = []requestlog.Record{}
	}
	return items, nil
}

func totalPages(total int64, pageSize int) int {
	if total == 0 || pageSize <= 0 {
		return 0
	}
	return int((total + int64(pageSize) - 1) / int64(pageSize))
}
