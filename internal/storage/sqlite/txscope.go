package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/evernotelocal/qstore/internal/types"
)

// TxKind selects the BEGIN form a TxScope opens with, mirroring
// original_source's Transaction::Type (src/local_storage/sql/Transaction.h):
// Deferred defers lock acquisition until first use, Immediate takes the
// write lock up front, Exclusive additionally blocks other readers, and
// Selection is a read-only scope whose End() always commits (a SELECT has
// nothing to roll back).
type TxKind int

const (
	TxDeferred TxKind = iota
	TxImmediate
	TxExclusive
	TxSelection
)

func (k TxKind) beginSQL() string {
	switch k {
	case TxImmediate:
		return "BEGIN IMMEDIATE"
	case TxExclusive:
		return "BEGIN EXCLUSIVE"
	default:
		return "BEGIN"
	}
}

// TxScope is a single SQLite transaction bound to one *sql.Conn. Unlike
// *sql.Tx, it is opened with raw BEGIN [IMMEDIATE|EXCLUSIVE] text rather
// than Conn.BeginTx, since database/sql has no portable way to express
// SQLite's three BEGIN forms (original_source/src/local_storage/sql/
// Transaction.cpp does the same with raw SQL for the identical reason).
//
// A TxScope that is neither committed nor rolled back before it goes out
// of scope is left open; callers must always end it via Commit, Rollback
// or End (for TxSelection), typically in a defer.
type TxScope struct {
	conn   *sql.Conn
	kind   TxKind
	ended  bool
}

// Begin opens a new transaction of kind on conn.
func Begin(ctx context.Context, conn *sql.Conn, kind TxKind) (*TxScope, error) {
	if _, err := conn.ExecContext(ctx, kind.beginSQL()); err != nil {
		return nil, fmt.Errorf("sqlite: %s: %w", kind.beginSQL(), types.DatabaseRequestf("begin", err))
	}
	return &TxScope{conn: conn, kind: kind}, nil
}

// Exec runs a non-query statement within the scope.
func (s *TxScope) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return s.conn.ExecContext(ctx, query, args...)
}

// Query runs a query within the scope.
func (s *TxScope) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return s.conn.QueryContext(ctx, query, args...)
}

// QueryRow runs a single-row query within the scope.
func (s *TxScope) QueryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return s.conn.QueryRowContext(ctx, query, args...)
}

// Commit ends the scope with COMMIT. Calling Commit on an already-ended
// scope is a no-op, matching the teacher's idempotent-Close convention.
func (s *TxScope) Commit(ctx context.Context) error {
	if s.ended {
		return nil
	}
	s.ended = true
	if _, err := s.conn.ExecContext(ctx, "COMMIT"); err != nil {
		return fmt.Errorf("sqlite: commit: %w", types.DatabaseRequestf("commit", err))
	}
	return nil
}

// Rollback ends the scope with ROLLBACK. A no-op if already ended.
func (s *TxScope) Rollback(ctx context.Context) error {
	if s.ended {
		return nil
	}
	s.ended = true
	if _, err := s.conn.ExecContext(ctx, "ROLLBACK"); err != nil {
		return fmt.Errorf("sqlite: rollback: %w", types.DatabaseRequestf("rollback", err))
	}
	return nil
}

// End closes a TxSelection scope. Per original_source's Transaction::Type::
// Selection, a read-only scope ends with "END" rather than ROLLBACK: there
// is no write to discard, and END releases the read lock the same as
// COMMIT would. Calling End on a non-Selection scope commits it, so a
// defer s.End(ctx) is always a safe, idempotent way to close any scope that
// was not already explicitly committed or rolled back.
func (s *TxScope) End(ctx context.Context) error {
	if s.ended {
		return nil
	}
	s.ended = true
	stmt := "END"
	if _, err := s.conn.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("sqlite: end: %w", types.DatabaseRequestf("end", err))
	}
	return nil
}

// Ended reports whether the scope has already been committed, rolled back
// or ended.
func (s *TxScope) Ended() bool {
	return s.ended
}
