package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"3tcapital/ms_ecommerce_audit/internal/core/requestlog"
)

const selectColumns = `
	SELECT id::text, timestamp_utc, trace_id, method, path, status_code,
	       request_body, response_body, request_headers, response_headers
	FROM http_logs`

// Repository implements the requestlog.Repository interface using PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
	log  *slog.Logger
}

// NewRepository creates a new PostgreSQL request log repository.
func NewRepository(pool *pgxpool.Pool, log *slog.Logger) *Repository {
	return &Repository{pool: pool, log: log}
}

// Insert persists a request log under a fresh UUID.
func (r *Repository) Insert(ctx context.Context, rec requestlog.Record) (string, error) {
	requestHeadersJSON, err := marshalHeaders(rec.RequestHeaders)
	if err != nil {
		return "", fmt.Errorf("marshal request headers: %w", err)
	}
	responseHeadersJSON, err := marshalHeaders(rec.ResponseHeaders)
	if err != nil {
		return "", fmt.Errorf("marshal response headers: %w", err)
	}

	id := uuid.New()
	query := `
		INSERT INTO http_logs (
			id, timestamp_utc, trace_id, method, path, status_code,
			request_body, response_body, request_headers, response_headers
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err = r.pool.Exec(ctx, query,
		id,
		rec.TimestampUTC.UTC(),
		rec.TraceID,
		rec.Method,
		rec.Path,
		rec.StatusCode,
		rec.RequestBody,
		rec.ResponseBody,
		requestHeadersJSON,
		responseHeadersJSON,
	)
	if err != nil {
		return "", fmt.Errorf("insert request log: %w", err)
	}

	r.log.Debug("request log stored", "id", id.String(), "trace_id", rec.TraceID)
	return id.String(), nil
}

// Find returns the requested page, newest first.
func (r *Repository) Find(ctx context.Context, filter requestlog.Filter) ([]requestlog.Record, error) {
	where, args := buildWhere(filter)
	args = append(args, filter.PageSize, filter.Skip())
	query := fmt.Sprintf("%s%s ORDER BY timestamp_utc DESC LIMIT $%d OFFSET $%d", selectColumns, where, len(args)-1, len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query request logs: %w", err)
	}
	defer rows.Close()

	records := []requestlog.Record{}
	for rows.Next() {
		var rec requestlog.Record
		var requestHeadersJSON, responseHeadersJSON []byte

		err := rows.Scan(
			&rec.ID,
			&rec.TimestampUTC,
			&rec.TraceID,
			&rec.Method,
			&rec.Path,
			&rec.StatusCode,
			&rec.RequestBody,
			&rec.ResponseBody,
			&requestHeadersJSON,
			&responseHeadersJSON,
		)
		if err != nil {
			return nil, fmt.Errorf("scan request log: %w", err)
		}

		if err := json.Unmarshal(requestHeadersJSON, &rec.RequestHeaders); err != nil {
			return nil, fmt.Errorf("unmarshal request headers: %w", err)
		}
		if err := json.Unmarshal(responseHeadersJSON, &rec.ResponseHeaders); err != nil {
			return nil, fmt.Errorf("unmarshal response headers: %w", err)
		}
		rec.TimestampUTC = rec.TimestampUTC.UTC()

		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	return records, nil
}

// Count returns how many records match the filter.
func (r *Repository) Count(ctx context.Context, filter requestlog.Filter) (int64, error) {
	where, args := buildWhere(filter)

	var total int64
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM http_logs"+where, args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("count request logs: %w", err)
	}
	return total, nil
}

func marshalHeaders(headers map[string]string) ([]byte, error) {
	if headers == nil {
		headers = map[string]string{}
	}
	return json.Marshal(headers)
}

// buildWhere renders the filter as a WHERE clause with positional arguments.
// Text criteria use the case-insensitive regex operator.
func buildWhere(filter requestlog.Filter) (string, []any) {
	var conditions []string
	var args []any

	add := func(condition string, value any) {
		args = append(args, value)
		conditions = append(conditions, fmt.Sprintf(condition, len(args)))
	}

	if filter.Method != "" {
		add("method ~* $%d", filter.Method)
	}
	if filter.Path != "" {
		add("path ~* $%d", filter.Path)
	}
	if filter.TraceID != "" {
		add("trace_id ~* $%d", filter.TraceID)
	}
	if filter.StatusCode != nil {
		add("status_code = $%d", *filter.StatusCode)
	}
	if filter.From != nil {
		add("timestamp_utc >= $%d", filter.From.UTC())
	}
	if filter.To != nil {
		add("timestamp_utc <= $%d", filter.To.UTC())
	}

	if len(conditions) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}
