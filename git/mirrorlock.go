package git

import (
	"context"

	"github.com/gofrs/flock"

	"github.com/rrbutani/nix/errors"
)

// MirrorLock serializes mutating access to a single mirror directory
// across processes, as spec.md §3/§5 require: "a file-system lock held
// on <mirror>.lock for the duration of any mutation". Grounded on the
// per-URL advisory locking pattern in the retrieval pack's gov4git cache.
type MirrorLock struct {
	fl *flock.Flock
}

// newMirrorLock returns a lock bound to mirrorDir + ".lock".
func newMirrorLock(mirrorDir string) *MirrorLock {
	return &MirrorLock{fl: flock.New(mirrorDir + ".lock")}
}

// withLock acquires the lock, runs fn, and releases it unconditionally.
func (m *MirrorLock) withLock(ctx context.Context, fn func() error) error {
	locked, err := m.fl.TryLockContext(ctx, lockRetryInterval)
	if err != nil {
		return errors.Wrap(err, errors.CodeLockFailed, "failed to acquire mirror lock")
	}
	if !locked {
		return errors.New(errors.CodeLockFailed, "timed out acquiring mirror lock")
	}
	defer m.fl.Unlock() //nolint:errcheck // best-effort release; the directory lock is advisory

	return fn()
}
