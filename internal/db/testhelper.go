package db

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
)

// OpenTestSQLite opens a metastore in t.TempDir() carrying both the metastore
// and queue schemas, the single-file layout used when no queue path is set.
func OpenTestSQLite(t testing.TB) *sql.DB {
	t.Helper()
	return openTest(t, "meta.sqlite", MetastoreSchema, QueueSchema)
}

// OpenTestQueue opens a queue-only database in t.TempDir().
func OpenTestQueue(t testing.TB) *sql.DB {
	t.Helper()
	return openTest(t, "queue.sqlite", QueueSchema)
}

func openTest(t testing.TB, name string, schemas ...Schema) *sql.DB {
	t.Helper()
	ctx := context.Background()
	db, err := Open(ctx, filepath.Join(t.TempDir(), name))
	if err != nil {
		t.Fatalf("open test sqlite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err := Migrate(ctx, db, schemas...); err != nil {
		t.Fatalf("migrate test sqlite: %v", err)
	}
	return db
}
