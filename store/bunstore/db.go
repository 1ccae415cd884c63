// Package bunstore persists content records in PostgreSQL or SQLite
// through bun.
package bunstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"

	"github.com/goliatone/go-content-cache/content"
)

// Supported store drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// sqliteDriver is the go-sqlite3 driver with ulower registered on every
// connection. SQLite's lower() only folds ASCII.
const sqliteDriver = "sqlite3_content"

func init() {
	sql.Register(sqliteDriver, &sqlite3.SQLiteDriver{
		ConnectHook: func(conn *sqlite3.SQLiteConn) error {
			return conn.RegisterFunc("ulower", strings.ToLower, true)
		},
	})
}

// Open connects to the database and verifies the connection.
func Open(ctx context.Context, driver, dsn string) (*bun.DB, error) {
	var (
		sqldb *sql.DB
		db    *bun.DB
		err   error
	)

	switch driver {
	case DriverPostgres:
		if sqldb, err = sql.Open("postgres", dsn); err != nil {
			return nil, fmt.Errorf("bunstore: open postgres: %w", err)
		}
		db = bun.NewDB(sqldb, pgdialect.New())
	case DriverSQLite:
		if sqldb, err = sql.Open(sqliteDriver, dsn); err != nil {
			return nil, fmt.Errorf("bunstore: open sqlite: %w", err)
		}
		// SQLite serialises writers; one connection avoids SQLITE_BUSY.
		sqldb.SetMaxOpenConns(1)
		db = bun.NewDB(sqldb, sqlitedialect.New())
	default:
		return nil, fmt.Errorf("bunstore: unsupported driver %q", driver)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("bunstore: ping %s: %w", driver, err)
	}
	return db, nil
}

// CreateSchema creates the notes and posts tables when missing.
func CreateSchema(ctx context.Context, db *bun.DB) error {
	models := []any{
		(*content.Note)(nil),
		(*content.Post)(nil),
	}
	for _, model := range models {
		if _, err := db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return fmt.Errorf("bunstore: create table for %T: %w", model, err)
		}
	}
	return nil
}
