package db

import (
	"context"
	"database/sql"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tables(t *testing.T, db *sql.DB) []string {
	t.Helper()
	rows, err := db.Query(`SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name`)
	require.NoError(t, err)
	defer rows.Close()
	var names []string
	for rows.Next() {
		var name string
		require.NoError(t, rows.Scan(&name))
		names = append(names, name)
	}
	require.NoError(t, rows.Err())
	return names
}

func TestDSN(t *testing.T) {
	got := dsn("/tmp/meta.sqlite")
	assert.True(t, strings.HasPrefix(got, "/tmp/meta.sqlite?"))
	for _, want := range []string{"_journal_mode=WAL", "_busy_timeout=5000", "_synchronous=NORMAL", "_foreign_keys=on", "_txlock=immediate"} {
		assert.Contains(t, got, want)
	}
}

func TestOpen(t *testing.T) {
	db, err := Open(context.Background(), filepath.Join(t.TempDir(), "meta.sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	assert.Equal(t, 1, db.Stats().MaxOpenConnections)

	var journalMode string
	require.NoError(t, db.QueryRow("PRAGMA journal_mode").Scan(&journalMode))
	assert.Equal(t, "wal", strings.ToLower(journalMode))

	var fk int
	require.NoError(t, db.QueryRow("PRAGMA foreign_keys").Scan(&fk))
	assert.Equal(t, 1, fk)
}

func TestOpen_Errors(t *testing.T) {
	_, err := Open(context.Background(), "")
	assert.EqualError(t, err, "sqlite path is required")

	_, err = Open(context.Background(), "/nonexistent/dir/meta.sqlite")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ping sqlite")
}

func TestMigrate_SharedFile(t *testing.T) {
	db := OpenTestSQLite(t)

	assert.Equal(t, []string{
		"exports", "goose_db_version", "goose_queue_version", "report_tags", "reports",
		"sub_reports", "tags", "tasks", "template_tags", "templates",
	}, tables(t, db))

	require.NoError(t, Migrate(context.Background(), db, MetastoreSchema, QueueSchema), "re-running is a no-op")
}

func TestMigrate_QueueOnly(t *testing.T) {
	db := OpenTestQueue(t)
	assert.Equal(t, []string{"goose_queue_version", "tasks"}, tables(t, db))
}

func TestActiveExportIndex(t *testing.T) {
	db := OpenTestSQLite(t)

	_, err := db.Exec(`INSERT INTO reports (name, created_by) VALUES ('r', 'alice')`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO exports (report_id, status, created_by) VALUES (1, 'pending', 'alice')`)
	require.NoError(t, err)

	_, err = db.Exec(`INSERT INTO exports (report_id, status, created_by) VALUES (1, 'in_progress', 'bob')`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "UNIQUE constraint failed")

	_, err = db.Exec(`INSERT INTO exports (report_id, status, created_by) VALUES (1, 'completed', 'bob')`)
	require.Error(t, err, "completed rows need a file handle")
}

func TestOpen_ConcurrentWriters(t *testing.T) {
	db := OpenTestSQLite(t)

	var wg sync.WaitGroup
	errs := make([]error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			_, errs[idx] = db.Exec(`INSERT INTO reports (name, created_by) VALUES (?, 'alice')`, "r"+string(rune('a'+idx)))
		}(i)
	}
	wg.Wait()
	for i, e := range errs {
		assert.NoError(t, e, "writer %d", i)
	}

	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM reports`).Scan(&n))
	assert.Equal(t, 20, n)
}
