// Package warehouse executes compiled report SQL against the PostgreSQL
// reporting warehouse.
package warehouse

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" driver

	"govreport/internal/domain"
)

// Open connects to the warehouse through the pgx database/sql driver.
func Open(ctx context.Context, dsn string, maxOpen int) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open warehouse: %w", err)
	}
	if maxOpen > 0 {
		db.SetMaxOpenConns(maxOpen)
		db.SetMaxIdleConns(maxOpen)
	}
	db.SetConnMaxIdleTime(5 * time.Minute)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping warehouse: %w", err)
	}
	return db, nil
}

// Executor runs read-only queries.
type Executor struct {
	db     *sql.DB
	logger *slog.Logger
}

var _ domain.Warehouse = (*Executor)(nil)

// NewExecutor wraps a warehouse connection pool.
func NewExecutor(db *sql.DB, logger *slog.Logger) *Executor {
	return &Executor{db: db, logger: logger.With("component", "warehouse")}
}

// Query runs a data query and buffers its rows.
func (e *Executor) Query(ctx context.Context, query string, args []any) (*domain.RowSet, error) {
	start := time.Now()
	rows, err := e.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, domain.ErrInternal("warehouse query failed", err)
	}
	defer rows.Close() //nolint:errcheck

	cols, err := rows.Columns()
	if err != nil {
		return nil, domain.ErrInternal("warehouse query failed", err)
	}
	rs := &domain.RowSet{Columns: cols}
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, domain.ErrInternal("warehouse scan failed", err)
		}
		for i, v := range vals {
			if b, ok := v.([]byte); ok {
				vals[i] = string(b)
			}
		}
		rs.Rows = append(rs.Rows, vals)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.ErrInternal("warehouse query failed", err)
	}
	e.logger.Debug("query executed", "rows", len(rs.Rows), "duration", time.Since(start))
	return rs, nil
}

// Count runs a single-value COUNT query.
func (e *Executor) Count(ctx context.Context, query string, args []any) (int64, error) {
	var n int64
	if err := e.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, domain.ErrInternal("warehouse count failed", err)
	}
	return n, nil
}

// Normalize converts a scanned value to the Go representation of its
// semantic type: float64 for numbers, bool for booleans, time.Time for dates.
// Values that cannot be converted are returned unchanged.
func Normalize(v any, t domain.SemanticType) any {
	if v == nil {
		return nil
	}
	switch t {
	case domain.TypeNumber:
		switch n := v.(type) {
		case string:
			if f, err := strconv.ParseFloat(n, 64); err == nil {
				return f
			}
		case int64:
			return float64(n)
		case int32:
			return float64(n)
		case int:
			return float64(n)
		case float32:
			return float64(n)
		}
	case domain.TypeBoolean:
		if s, ok := v.(string); ok {
			if b, err := strconv.ParseBool(s); err == nil {
				return b
			}
		}
	case domain.TypeDate:
		if s, ok := v.(string); ok {
			for _, layout := range []string{time.RFC3339Nano, "2006-01-02 15:04:05", "2006-01-02"} {
				if ts, err := time.Parse(layout, s); err == nil {
					return ts
				}
			}
		}
	}
	return v
}
