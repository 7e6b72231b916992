// Package sqlite implements the storage engine's persistence layer on top
// of database/sql and github.com/ncruces/go-sqlite3, a pure-Go (WASM-based)
// SQLite driver that needs no cgo toolchain (grounded on the teacher's
// internal/storage/ephemeral connection setup). It owns the connection
// pool, the transaction-scope helper, schema migration and one handler type
// per entity kind (spec.md §4.3).
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/evernotelocal/qstore/internal/types"
)

// Pool wraps the *sql.DB handle shared by the reader pool and the single
// writer goroutine (spec.md §4.1 "Connection pool"). SQLite itself
// serializes writers; the pool's job is to bound the number of concurrent
// readers and hand the writer a dedicated connection so WAL mode can
// overlap one writer with many readers.
type Pool struct {
	db       *sql.DB
	path     string
	lockFile *os.File
}

// OpenOptions bundles the parameters Open needs from config.Options without
// importing the config package, keeping sqlite free of a dependency on the
// options-parsing layer.
type OpenOptions struct {
	Path               string
	BusyTimeoutMillis  int
	MaxOpenConnections int

	// OverrideLockedDatabase skips the cross-process advisory file lock
	// that otherwise refuses to open a database another process already
	// has open (config.StartupOptions.OverrideLockedDatabase).
	OverrideLockedDatabase bool
}

// Open opens (creating if necessary) the SQLite database file at
// opts.Path, in WAL journal mode with foreign keys enabled, and returns a
// Pool ready for use. DSN query parameters mirror the teacher's ephemeral
// store setup. Unless opts.OverrideLockedDatabase is set, Open first takes
// an exclusive advisory lock on a "<path>.lock" sidecar file, returning
// types.ErrDatabaseLocked if another process already holds it.
func Open(opts OpenOptions) (*Pool, error) {
	if opts.Path == "" {
		return nil, fmt.Errorf("sqlite: open: %w", types.ErrInvalidArgument)
	}
	busyTimeout := opts.BusyTimeoutMillis
	if busyTimeout <= 0 {
		busyTimeout = 5000
	}

	var lockFile *os.File
	if !opts.OverrideLockedDatabase {
		f, err := acquireExclusiveLock(opts.Path + ".lock")
		if err != nil {
			return nil, err
		}
		lockFile = f
	}

	dsn := fmt.Sprintf("file:%s?_journal=WAL&_busy_timeout=%d&_foreign_keys=1", opts.Path, busyTimeout)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		releaseLock(lockFile)
		return nil, fmt.Errorf("sqlite: open %s: %w", opts.Path, err)
	}

	maxOpen := opts.MaxOpenConnections
	if maxOpen <= 0 {
		maxOpen = 8
	}
	db.SetMaxOpenConns(maxOpen)

	if err := db.Ping(); err != nil {
		db.Close()
		releaseLock(lockFile)
		return nil, fmt.Errorf("sqlite: ping %s: %w", opts.Path, err)
	}

	return &Pool{db: db, path: opts.Path, lockFile: lockFile}, nil
}

// Close releases all held connections and the advisory lock file, if held.
func (p *Pool) Close() error {
	err := p.db.Close()
	releaseLock(p.lockFile)
	return err
}

// Conn checks out a single connection for the caller's exclusive use,
// matching database/sql.Conn's reservation semantics. Each write
// operation checks one out for the length of its transaction scope and
// returns it to the pool by closing it; writes are serialized by the
// dispatcher's single writer goroutine, not by reusing one connection
// (spec.md §4.1 "Single serialized writer").
func (p *Pool) Conn(ctx context.Context) (*sql.Conn, error) {
	conn, err := p.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("sqlite: acquire connection: %w", err)
	}
	return conn, nil
}

// DB returns the underlying *sql.DB for callers (reader tasks) that are
// content to let database/sql manage per-query connection checkout/return.
func (p *Pool) DB() *sql.DB {
	return p.db
}
