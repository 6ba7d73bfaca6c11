// Package hostapi specifies the two host capabilities the engine treats
// as opaque (spec §6 "External interfaces"): a transactional row store and
// a remote object bucket for bundles. Concrete adapters live in
// storesql (row store, over database/sql + go-sql-driver/mysql) and
// bucket (remote bucket, over aws-sdk-go-v2/service/s3).
package hostapi

import (
	"context"
	"database/sql"
	"errors"
)

// ErrRangeUnsupported is returned by a RemoteBucket.GetRange
// implementation that cannot serve partial reads (spec §6 "optional
// getRange").
var ErrRangeUnsupported = errors.New("zeta: bucket does not support range reads")

// RowStore is the transactional, key-indexed row store capability (spec
// §6): "exec(sql, params…) returning an iterator of rows and a scalar
// path, with CREATE TABLE IF NOT EXISTS / CREATE INDEX IF NOT EXISTS
// supported." This is exactly the shape of database/sql's own
// Exec/Query/QueryRow trio, so the interface is expressed directly in
// those terms rather than inventing a parallel row-iterator type.
type RowStore interface {
	// Exec runs a statement with no expected result rows (INSERT, UPDATE,
	// DELETE, CREATE TABLE/INDEX IF NOT EXISTS).
	Exec(ctx context.Context, query string, args ...any) (sql.Result, error)
	// Query runs a statement and returns its result rows.
	Query(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	// QueryRow runs a statement expected to return at most one row.
	QueryRow(ctx context.Context, query string, args ...any) *sql.Row
}

// RemoteBucket is the opaque bucket capability for bundles (spec §6):
// writes are durable on return, no strong listing order, no per-key
// version history.
type RemoteBucket interface {
	// Get returns the object stored under key, or (nil, false, nil) if
	// absent.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Put writes data under key, durable on return.
	Put(ctx context.Context, key string, data []byte) error
	// Delete removes key; deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error
	// List returns every key with the given prefix, in no particular
	// order.
	List(ctx context.Context, prefix string) ([]string, error)
	// GetRange reads length bytes starting at offset within the object
	// stored under key. Implementations that cannot serve partial reads
	// return ErrRangeUnsupported.
	GetRange(ctx context.Context, key string, offset, length int64) ([]byte, error)
}
