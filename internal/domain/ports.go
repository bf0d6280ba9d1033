package domain

import (
	"context"
	"io"
	"time"
)

// Warehouse executes compiled read-only SQL against the reporting warehouse.
type Warehouse interface {
	Query(ctx context.Context, sqlText string, args []any) (*RowSet, error)
	Count(ctx context.Context, sqlText string, args []any) (int64, error)
}

// RowSet is a fully materialized query result.
type RowSet struct {
	Columns []string
	Rows    [][]any
}

// BlobStore writes export artifacts and issues time-limited read URLs for them.
// Put returns a provider-qualified handle (for example s3://bucket/key) that
// SignReadURL accepts.
type BlobStore interface {
	Put(ctx context.Context, key string, body io.Reader, contentType string) (handle string, err error)
	SignReadURL(ctx context.Context, handle string, expiry time.Duration) (string, error)
}

// TaskQueue delivers background tasks at least once.
type TaskQueue interface {
	Enqueue(ctx context.Context, name string, args any) (string, error)
}
