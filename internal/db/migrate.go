package db

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"

	"github.com/pressly/goose/v3"
	"github.com/pressly/goose/v3/database"
)

//go:embed migrations
var migrations embed.FS

// Schema is a migration set with its own goose version table, so the queue
// tables can live in the metastore file or in a file of their own.
type Schema struct {
	Name  string
	dir   string
	table string
}

// Migration sets.
var (
	MetastoreSchema = Schema{Name: "metastore", dir: "migrations/metastore", table: "goose_db_version"}
	QueueSchema     = Schema{Name: "queue", dir: "migrations/queue", table: "goose_queue_version"}
)

// Migrate applies the pending migrations of each schema in order. It is safe
// to call on every start.
func Migrate(ctx context.Context, db *sql.DB, schemas ...Schema) error {
	for _, s := range schemas {
		fsys, err := fs.Sub(migrations, s.dir)
		if err != nil {
			return fmt.Errorf("%s migrations: %w", s.Name, err)
		}
		store, err := database.NewStore(database.DialectSQLite3, s.table)
		if err != nil {
			return fmt.Errorf("%s version store: %w", s.Name, err)
		}
		provider, err := goose.NewProvider("", db, fsys, goose.WithStore(store))
		if err != nil {
			return fmt.Errorf("%s migrations: %w", s.Name, err)
		}
		if _, err := provider.Up(ctx); err != nil {
			return fmt.Errorf("migrate %s: %w", s.Name, err)
		}
	}
	return nil
}
