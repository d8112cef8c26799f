package git

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
)

var errTestSentinel = errors.New("sentinel test error")

func TestMirrorLockRunsFnAndReleases(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "mirror")
	lock := newMirrorLock(dir)

	ran := false
	if err := lock.withLock(context.Background(), func() error {
		ran = true
		return nil
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ran {
		t.Error("expected fn to run while holding the lock")
	}

	// The lock must be released afterward: acquiring it again should
	// succeed without blocking.
	ran2 := false
	if err := lock.withLock(context.Background(), func() error {
		ran2 = true
		return nil
	}); err != nil {
		t.Fatalf("unexpected error re-acquiring the lock: %v", err)
	}
	if !ran2 {
		t.Error("expected fn to run on the second acquisition")
	}
}

func TestMirrorLockPropagatesFnError(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "mirror")
	lock := newMirrorLock(dir)

	wantErr := errTestSentinel
	err := lock.withLock(context.Background(), func() error {
		return wantErr
	})
	if err != wantErr {
		t.Errorf("expected the fn's error to propagate unwrapped, got %v", err)
	}
}

func TestMirrorLockReleasesEvenOnError(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "mirror")
	lock := newMirrorLock(dir)

	_ = lock.withLock(context.Background(), func() error {
		return errTestSentinel
	})

	acquired := false
	if err := lock.withLock(context.Background(), func() error {
		acquired = true
		return nil
	}); err != nil {
		t.Fatalf("expected the lock to be released after an fn error: %v", err)
	}
	if !acquired {
		t.Error("expected to re-acquire the lock after a prior failed run")
	}
}
