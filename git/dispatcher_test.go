package git

import (
	"context"
	"os"
	"testing"

	"github.com/rrbutani/nix/errors"
	execpkg "github.com/rrbutani/nix/exec"
)

type fakeStore struct {
	addCalls []string
	path     StorePath
	info     PathInfo
	addErr   error
	queryErr error
}

func (f *fakeStore) AddToStore(ctx context.Context, name, dir string, recursive bool, filter func(path string) bool) (StorePath, error) {
	f.addCalls = append(f.addCalls, dir)
	if f.addErr != nil {
		return "", f.addErr
	}
	if f.path == "" {
		return "store-path", nil
	}
	return f.path, nil
}

func (f *fakeStore) QueryPathInfo(ctx context.Context, path StorePath) (PathInfo, error) {
	if f.queryErr != nil {
		return PathInfo{}, f.queryErr
	}
	if f.info.NarHash == "" {
		return PathInfo{NarHash: "sha256:deadbeef"}, nil
	}
	return f.info, nil
}

func strPtr(s string) *string { return &s }
func boolPtr(b bool) *bool    { return &b }

// fakeHashParser accepts any rev, letting tests use short illustrative
// rev strings (e.g. "deadbeef") instead of real 40-character sha1 hex.
type fakeHashParser struct{}

func (fakeHashParser) ParseRev(s string) (string, error) { return "sha1", nil }

func newTestDispatcher(t *testing.T, fake *fakeExecutor, store Store, cache LockedInputCache) *Dispatcher {
	t.Helper()
	return NewDispatcher(store, cache, &fakeExtractor{}, fakeHashParser{},
		WithExecutor(fake),
		WithCacheRoot(t.TempDir()),
		WithLogger(discardLogger()),
	)
}

func TestDispatcherFetchDirtyRejectsWhenNotAllowed(t *testing.T) {
	dir := t.TempDir()
	mustInitGitDir(t, dir)

	fake := newFakeExecutor().
		on("rev-parse --verify --no-revs", &execpkg.Result{}, nil).
		on("diff HEAD --quiet", nil, execErr(1, "", ""))
	store := &fakeStore{}
	d := newTestDispatcher(t, fake, store, newFakeLockedCache())

	_, err := d.Fetch(context.Background(), InputAttrs{URL: dir})
	if err == nil {
		t.Fatal("expected dirty working tree to be rejected by default")
	}
	perr, ok := err.(errors.PlatformError)
	if !ok || perr.Code() != errors.CodeDirtyNotAllowed {
		t.Errorf("expected CodeDirtyNotAllowed, got %v", err)
	}
}

func TestDispatcherFetchDirtySucceedsWhenAllowed(t *testing.T) {
	dir := t.TempDir()
	mustInitGitDir(t, dir)

	fake := newFakeExecutor().
		on("rev-parse --verify --no-revs", &execpkg.Result{}, nil).
		on("diff HEAD --quiet", nil, execErr(1, "", "")).
		on("ls-files -z", &execpkg.Result{Stdout: "a.txt\x00"}, nil).
		on("log -1 --format=%ct HEAD", &execpkg.Result{Stdout: "1700000000\n"}, nil)
	store := &fakeStore{}
	d := NewDispatcher(store, newFakeLockedCache(), &fakeExtractor{}, fakeHashParser{},
		WithExecutor(fake), WithCacheRoot(t.TempDir()), WithLogger(discardLogger()), WithAllowDirty(true))

	result, err := d.Fetch(context.Background(), InputAttrs{URL: dir})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Path != "store-path" {
		t.Errorf("Path = %q, want store-path", result.Path)
	}
	if result.LastModified != 1700000000 {
		t.Errorf("LastModified = %d, want 1700000000", result.LastModified)
	}
	if len(store.addCalls) != 1 || store.addCalls[0] != dir {
		t.Errorf("expected AddToStore to be called with the working tree dir, got %v", store.addCalls)
	}
}

func TestDispatcherFetchPinnedLockedCacheHit(t *testing.T) {
	fake := newFakeExecutor()
	cache := newFakeLockedCache()
	mode := CacheMode{}
	key := CacheKey{CacheType: mode.Tag(), Name: "source", Rev: "deadbeef"}
	cache.locked[key] = lockedEntry{attrs: LockedAttrs{Rev: "deadbeef", LastModified: 99}, path: "cached-path"}

	d := newTestDispatcher(t, fake, &fakeStore{}, cache)

	result, err := d.Fetch(context.Background(), InputAttrs{
		URL: "https://example.com/repo.git",
		Rev: strPtr("deadbeef"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Path != "cached-path" || result.LastModified != 99 {
		t.Errorf("expected the cached record to short-circuit the fetch pipeline, got %+v", result)
	}
	if len(*fake.calls) != 0 {
		t.Error("a locked-cache hit should never shell out")
	}
}

func TestDispatcherFetchPinnedSubmodulesFullPipeline(t *testing.T) {
	fake := newFakeExecutor().
		on("cat-file -e", &execpkg.Result{}, nil).
		on("cat-file commit", &execpkg.Result{}, nil).
		on("rev-parse --is-shallow-repository", &execpkg.Result{Stdout: "false\n"}, nil).
		on("log -1 --format=%ct", &execpkg.Result{Stdout: "1700000000\n"}, nil).
		on("rev-list --count", &execpkg.Result{Stdout: "5\n"}, nil)
	store := &fakeStore{}
	d := newTestDispatcher(t, fake, store, newFakeLockedCache())

	result, err := d.Fetch(context.Background(), InputAttrs{
		URL:        "https://example.com/repo.git",
		Rev:        strPtr("deadbeef"),
		Ref:        strPtr("main"),
		Submodules: boolPtr(true),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Rev != "deadbeef" {
		t.Errorf("Rev = %q, want deadbeef", result.Rev)
	}
	if result.LastModified != 1700000000 {
		t.Errorf("LastModified = %d, want 1700000000", result.LastModified)
	}
	if result.RevCount == nil || *result.RevCount != 5 {
		t.Errorf("RevCount = %v, want 5", result.RevCount)
	}
	if result.Accessor != nil {
		t.Error("expected a nil Accessor for the submodules materialization path")
	}
	if len(store.addCalls) != 1 {
		t.Errorf("expected exactly one store ingestion, got %d", len(store.addCalls))
	}
}

func TestDispatcherFetchPinnedRevNotFoundAfterFetch(t *testing.T) {
	fake := newFakeExecutor().
		on("rev-parse --verify", &execpkg.Result{Stdout: "abc123\n"}, nil).
		on("cat-file -e", nil, execErr(1, "", ""))
	store := &fakeStore{}
	d := newTestDispatcher(t, fake, store, newFakeLockedCache())

	_, err := d.Fetch(context.Background(), InputAttrs{
		URL: "https://example.com/repo.git",
		Ref: strPtr("main"),
	})
	if err == nil {
		t.Fatal("expected a RevNotFound error")
	}
	perr, ok := err.(errors.PlatformError)
	if !ok || perr.Code() != errors.CodeRevNotFound {
		t.Errorf("expected CodeRevNotFound, got %v", err)
	}
}

func TestDefaultHashParserAcceptsSha1AndSha256(t *testing.T) {
	sha1 := "0123456789abcdef0123456789abcdef01234567"
	sha256 := "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"

	if algo, err := (defaultHashParser{}).ParseRev(sha1); err != nil || algo != "sha1" {
		t.Errorf("ParseRev(sha1) = (%q, %v), want (sha1, nil)", algo, err)
	}
	if algo, err := (defaultHashParser{}).ParseRev(sha256); err != nil || algo != "sha256" {
		t.Errorf("ParseRev(sha256) = (%q, %v), want (sha256, nil)", algo, err)
	}
}

func TestDefaultHashParserRejectsUnsupported(t *testing.T) {
	for _, rev := range []string{"deadbeef", "", "not-hex-at-all-but-forty-chars-long!!!!"} {
		if _, err := (defaultHashParser{}).ParseRev(rev); err == nil {
			t.Errorf("ParseRev(%q) = nil error, want a rejection", rev)
		}
	}
}

func TestDispatcherFetchRejectsUnsupportedHash(t *testing.T) {
	fake := newFakeExecutor()
	// Pass a nil HashParser to exercise the real default sha1/sha256
	// validator instead of the lenient fakeHashParser newTestDispatcher
	// installs.
	d := NewDispatcher(&fakeStore{}, newFakeLockedCache(), &fakeExtractor{}, nil,
		WithExecutor(fake), WithCacheRoot(t.TempDir()), WithLogger(discardLogger()))

	_, err := d.Fetch(context.Background(), InputAttrs{
		URL: "https://example.com/repo.git",
		Rev: strPtr("deadbeef"),
	})
	perr, ok := err.(errors.PlatformError)
	if !ok || perr.Code() != errors.CodeHashUnsupported {
		t.Fatalf("expected CodeHashUnsupported, got %v", err)
	}
}

func TestCheckRevReachableDetectsBadFile(t *testing.T) {
	fake := newFakeExecutor().on("cat-file commit", nil, execErr(128, "", "fatal: bad file deadbeef"))
	d := newTestDispatcher(t, fake, &fakeStore{}, newFakeLockedCache())

	err := d.checkRevReachable(t.TempDir(), "main", "deadbeef")
	perr, ok := err.(errors.PlatformError)
	if !ok || perr.Code() != errors.CodeRevNotFound {
		t.Fatalf("expected CodeRevNotFound, got %v", err)
	}
}

func TestCheckRevReachableSucceedsWhenPresent(t *testing.T) {
	fake := newFakeExecutor().on("cat-file commit", &execpkg.Result{}, nil)
	d := newTestDispatcher(t, fake, &fakeStore{}, newFakeLockedCache())

	if err := d.checkRevReachable(t.TempDir(), "main", "deadbeef"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// mustInitGitDir creates a bare .git directory marker so repoProbe.isLocalURL
// classifies dir as a local repository without needing a real git init.
func mustInitGitDir(t *testing.T, dir string) {
	t.Helper()
	if err := os.MkdirAll(dir+"/.git", 0o755); err != nil {
		t.Fatal(err)
	}
}
