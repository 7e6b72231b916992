package sqlite

import (
	"context"
	"testing"
)

// newTestPool opens a fresh migrated database in a t.TempDir(), matching
// the teacher's own newTestStore(t, path) helper shape.
func newTestPool(t *testing.T) *Pool {
	t.Helper()
	pool, err := Open(OpenOptions{Path: t.TempDir() + "/test.db"})
	if err != nil {
		t.Fatalf("open pool: %v", err)
	}
	t.Cleanup(func() { pool.Close() })

	if err := Migrate(context.Background(), pool); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return pool
}
