package git

import "context"

// The interfaces below are the external collaborators spec.md §6 lists as
// out of scope for this module (§1): the surrounding content-addressed
// package manager supplies concrete implementations. This module only
// declares the shapes it depends on.

// StorePath identifies a path already ingested into the content-addressed
// store.
type StorePath string

// PathInfo is the subset of store metadata this module consumes.
type PathInfo struct {
	NarHash string
}

// Store is the content-addressed object store collaborator (spec.md §6).
// Out of scope per spec.md §1 ("the content-addressed store itself").
type Store interface {
	AddToStore(ctx context.Context, name, dir string, recursive bool, filter func(path string) bool) (StorePath, error)
	QueryPathInfo(ctx context.Context, path StorePath) (PathInfo, error)
}

// ArchiveExtractor unpacks an archive stream into destDir, used by
// component F's `git archive` pipe path.
type ArchiveExtractor interface {
	Unpack(ctx context.Context, source ReadCloser, destDir string) error
}

// ReadCloser avoids importing io solely for this alias at call sites that
// only need the archive-source shape.
type ReadCloser interface {
	Read(p []byte) (n int, err error)
	Close() error
}

// FilesystemAccessor is a read-only view over a materialized snapshot,
// returned by the Dispatcher to the caller.
type FilesystemAccessor interface {
	// Open returns the contents of path relative to the accessor's root.
	Open(path string) (ReadCloser, error)
	// Stat reports whether path exists and whether it is a directory.
	Stat(path string) (isDir bool, exists bool, err error)
}

// LockedInputCache is the two-level cache described in spec.md §3/§6,
// owned entirely by the Dispatcher (component E's adapter wraps it).
type LockedInputCache interface {
	// Lookup returns the cached StorePath and attributes for key, if any.
	Lookup(ctx context.Context, key CacheKey) (StorePath, LockedAttrs, bool, error)

	// Add inserts a record. unlockedKey is nil when the Dispatcher should
	// only write the locked record (spec.md §4.E: user supplied rev).
	Add(ctx context.Context, unlockedKey *CacheKey, lockedKey CacheKey, attrs LockedAttrs, path StorePath, immutable bool) error

	FactCache
}

// FactCache memoizes small auxiliary values (lastModified, revCount) per
// rev, independent of the store artifact cache — see SPEC_FULL.md's
// "Supplemented features" section.
type FactCache interface {
	QueryFact(ctx context.Context, key string) (string, bool, error)
	UpsertFact(ctx context.Context, key, value string) error
}

// CacheKey is the composite key spec.md §3 describes for both the
// unlocked ({type, name, url, ref}) and locked ({type, name, rev}) tables;
// Ref is empty for a locked key and Rev is empty for an unlocked one.
type CacheKey struct {
	CacheType string
	Name      string
	URL       string
	Ref       string
	Rev       string
}

// UrlParser parses and normalizes the git/git+http/git+https/git+ssh/
// git+file URL schemes from spec.md §6.
type UrlParser interface {
	Parse(raw string) (scheme string, attrs InputAttrs, err error)
}

// HashParser validates rev/narHash strings against the hash algorithms
// the surrounding system supports (spec.md §3: "SHA-256 also accepted at
// the type level but not exercised by Git today").
type HashParser interface {
	ParseRev(s string) (algo string, err error)
}

// Logger is satisfied by *slog.Logger via the adapter in log.go, so this
// module can also be driven by a caller's own logging sink.
type Logger interface {
	Warn(msg string, args ...any)
	Debug(msg string, args ...any)
}
