// Package cache opens the client's local SQLite database and brings its
// schema up to date.
package cache

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dmitrijs2005/cardkeeper/internal/client/migrations"
	"github.com/dmitrijs2005/cardkeeper/internal/filex"
	"github.com/pressly/goose/v3"

	_ "modernc.org/sqlite"
)

func RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	goose.SetLogger(goose.NopLogger())

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	return goose.UpContext(ctx, db, ".")
}

// Open opens (creating if needed) the cache at dsn and migrates it. SQLite
// allows one writer, so the pool is limited to a single connection; this
// also keeps ":memory:" databases alive across calls.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	if err := filex.EnsureParentDir(dsn); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	if err := RunMigrations(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("cache migration error: %w", err)
	}
	return db, nil
}
