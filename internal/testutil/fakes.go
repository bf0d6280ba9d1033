package testutil

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"govreport/internal/domain"
)

// Query is one statement received by a FakeWarehouse.
type Query struct {
	SQL  string
	Args []any
}

// FakeWarehouse serves a fixed, already ordered result set. Data queries are
// paged with the trailing offset and size arguments the SQL compiler appends.
type FakeWarehouse struct {
	mu      sync.Mutex
	Columns []string
	Rows    [][]any
	// Err fails every call when set.
	Err     error
	Queries []Query
	Counts  []Query
}

// Query implements domain.Warehouse.
func (w *FakeWarehouse) Query(_ context.Context, sqlText string, args []any) (*domain.RowSet, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.Queries = append(w.Queries, Query{SQL: sqlText, Args: args})
	if w.Err != nil {
		return nil, w.Err
	}
	if len(args) < 2 {
		return nil, fmt.Errorf("data query without page arguments")
	}
	offset, ok1 := args[len(args)-2].(int64)
	size, ok2 := args[len(args)-1].(int64)
	if !ok1 || !ok2 {
		return nil, fmt.Errorf("page arguments must be int64, got %T and %T", args[len(args)-2], args[len(args)-1])
	}
	rs := &domain.RowSet{Columns: w.Columns}
	for i := offset; i < offset+size && i < int64(len(w.Rows)); i++ {
		rs.Rows = append(rs.Rows, append([]any(nil), w.Rows[i]...))
	}
	return rs, nil
}

// Count implements domain.Warehouse.
func (w *FakeWarehouse) Count(_ context.Context, sqlText string, args []any) (int64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.Counts = append(w.Counts, Query{SQL: sqlText, Args: args})
	if w.Err != nil {
		return 0, w.Err
	}
	return int64(len(w.Rows)), nil
}

// QueryCount returns the number of data queries received.
func (w *FakeWarehouse) QueryCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.Queries)
}

// FakeBlobStore keeps blobs in memory under mem:// handles.
type FakeBlobStore struct {
	mu      sync.Mutex
	Blobs   map[string][]byte
	Types   map[string]string
	Expiry  time.Duration
	PutErr  error
	SignErr error
}

// NewFakeBlobStore creates an empty FakeBlobStore.
func NewFakeBlobStore() *FakeBlobStore {
	return &FakeBlobStore{Blobs: map[string][]byte{}, Types: map[string]string{}}
}

// Put implements domain.BlobStore.
func (s *FakeBlobStore) Put(_ context.Context, key string, body io.Reader, contentType string) (string, error) {
	if s.PutErr != nil {
		return "", s.PutErr
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, body); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Blobs[key] = buf.Bytes()
	s.Types[key] = contentType
	return "mem://" + key, nil
}

// SignReadURL implements domain.BlobStore.
func (s *FakeBlobStore) SignReadURL(_ context.Context, handle string, expiry time.Duration) (string, error) {
	if s.SignErr != nil {
		return "", s.SignErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Expiry = expiry
	return fmt.Sprintf("https://blobs.test/%s?ttl=%d", handle[len("mem://"):], int(expiry.Seconds())), nil
}

// Blob returns the stored bytes for key.
func (s *FakeBlobStore) Blob(key string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.Blobs[key]
	return b, ok
}

// FakeQueue records enqueued tasks.
type FakeQueue struct {
	mu    sync.Mutex
	Tasks []FakeTask
	Err   error
}

// FakeTask is one recorded enqueue.
type FakeTask struct {
	Name string
	Args any
}

// Enqueue implements domain.TaskQueue.
func (q *FakeQueue) Enqueue(_ context.Context, name string, args any) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.Err != nil {
		return "", q.Err
	}
	q.Tasks = append(q.Tasks, FakeTask{Name: name, Args: args})
	return fmt.Sprintf("task-%d", len(q.Tasks)), nil
}

// Len returns the number of enqueued tasks.
func (q *FakeQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.Tasks)
}
