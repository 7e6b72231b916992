package sqlite

import (
	"fmt"
	"os"

	"github.com/evernotelocal/qstore/internal/types"
)

// acquireExclusiveLock opens (creating if necessary) a sidecar lock file next
// to the database file and takes a non-blocking exclusive advisory lock on
// it, so a second process opening the same database file fails fast instead
// of silently corrupting WAL state out from under the first. Grounded on the
// teacher's internal/lockfile package, which guards its daemon and sync
// lock files the same way via platform flockExclusiveNonBlocking primitives.
func acquireExclusiveLock(path string) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open lock file %s: %w", path, err)
	}
	if err := flockExclusiveNonBlocking(f); err != nil {
		f.Close()
		return nil, fmt.Errorf("sqlite: %s: %w", path, types.ErrDatabaseLocked)
	}
	return f, nil
}

// releaseLock unlocks and closes a lock file acquired by acquireExclusiveLock.
// f is nil when the pool was opened with OverrideLockedDatabase, in which
// case there is nothing to release.
func releaseLock(f *os.File) {
	if f == nil {
		return
	}
	_ = flockUnlock(f)
	_ = f.Close()
}
