// Package storesql is the concrete row-store adapter (spec §6 "Row
// store") over database/sql and the teacher's go.mod driver dependency
// github.com/go-sql-driver/mysql. It implements hostapi.RowStore and
// creates the schema the object/ref/WAL/merge-state layers rely on.
package storesql

import (
	"context"
	"database/sql"

	_ "github.com/go-sql-driver/mysql"
	"github.com/zetavcs/zeta/hostapi"
)

// DB wraps *sql.DB to satisfy hostapi.RowStore.
type DB struct {
	*sql.DB
}

var _ hostapi.RowStore = (*DB)(nil)

// Open opens a MySQL-compatible row store at dsn (spec §6 "Row store").
func Open(dsn string) (*DB, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, err
	}
	return &DB{DB: db}, nil
}

func (d *DB) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return d.DB.ExecContext(ctx, query, args...)
}

func (d *DB) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return d.DB.QueryContext(ctx, query, args...)
}

func (d *DB) QueryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return d.DB.QueryRowContext(ctx, query, args...)
}

// schemaStatements are the §6 table definitions: objects, object_index,
// refs, ref_log, wal, merge_state.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS objects (
		oid CHAR(40) PRIMARY KEY,
		kind TINYINT NOT NULL,
		size BIGINT NOT NULL,
		data LONGBLOB,
		created_at DATETIME NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS object_index (
		oid CHAR(40) PRIMARY KEY,
		kind TINYINT NOT NULL,
		tier VARCHAR(8) NOT NULL,
		size BIGINT NOT NULL,
		bundle_key VARCHAR(512)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_object_index_bundle_key ON object_index (bundle_key)`,
	`CREATE TABLE IF NOT EXISTS refs (
		name VARCHAR(512) PRIMARY KEY,
		kind VARCHAR(16) NOT NULL,
		target VARCHAR(512) NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS ref_log (
		seq BIGINT PRIMARY KEY AUTO_INCREMENT,
		op VARCHAR(16) NOT NULL,
		name VARCHAR(512) NOT NULL,
		old_target VARCHAR(512),
		new_target VARCHAR(512) NOT NULL,
		ts DATETIME NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS wal (
		seq BIGINT PRIMARY KEY AUTO_INCREMENT,
		op VARCHAR(16) NOT NULL,
		oid CHAR(40) NOT NULL,
		kind TINYINT NOT NULL,
		ts DATETIME NOT NULL,
		flushed BOOLEAN NOT NULL DEFAULT FALSE
	)`,
	`CREATE TABLE IF NOT EXISTS merge_state (
		id TINYINT PRIMARY KEY DEFAULT 1,
		merge_head CHAR(40),
		orig_head CHAR(40),
		tree_oid CHAR(40),
		message TEXT,
		unresolved LONGTEXT,
		resolved LONGTEXT,
		options LONGTEXT
	)`,
}

// EnsureSchema creates every table/index the core relies on, idempotently
// (spec §6 "CREATE TABLE IF NOT EXISTS / CREATE INDEX IF NOT EXISTS
// supported").
func EnsureSchema(ctx context.Context, rs hostapi.RowStore) error {
	for _, stmt := range schemaStatements {
		if _, err := rs.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
