// Package db opens the SQLite files behind the metastore and the task queue
// and applies their migrations.
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const pingTimeout = 5 * time.Second

// dsnParams are applied to every connection. Transactions start IMMEDIATE so
// export claims and task leases take the write lock before their first read.
var dsnParams = map[string]string{
	"_journal_mode": "WAL",
	"_busy_timeout": "5000",
	"_synchronous":  "NORMAL",
	"_foreign_keys": "on",
	"_txlock":       "immediate",
}

// Open opens the SQLite file at path with a single-connection pool. All
// repositories and the queue share it, which serialises writers in process.
func Open(ctx context.Context, path string) (*sql.DB, error) {
	if path == "" {
		return nil, errors.New("sqlite path is required")
	}

	db, err := sql.Open("sqlite3", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite %s: %w", path, err)
	}
	return db, nil
}

func dsn(path string) string {
	params := url.Values{}
	for k, v := range dsnParams {
		params.Set(k, v)
	}
	return path + "?" + params.Encode()
}
