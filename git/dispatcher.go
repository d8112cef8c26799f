package git

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/rrbutani/nix/errors"
	execpkg "github.com/rrbutani/nix/exec"
)

// Dispatcher is the entry point (spec.md §2): it calls the repo-info probe
// (C) and then either the dirty-tree path (H) or the locked-cache-gated
// fetch/materialize pipeline (E, B, D, E, F or G, E). It is the only
// component that writes to the locked-input cache.
type Dispatcher struct {
	cfg       *config
	probe     *repoProbe
	head      *headResolver
	cache     *lockedCacheAdapter
	dirty     *dirtyTreeView
	submodule *submoduleCheckout
	git       execpkg.Executor
	logger    Logger

	store      Store
	extractor  ArchiveExtractor
	hashParser HashParser
}

// NewDispatcher wires the collaborators the surrounding content-addressed
// package manager supplies (spec.md §6) together with the options this
// module owns (cache root, TTL, dirty-tree policy, ...). hashParser may
// be nil, in which case a default sha1/sha256 validator is used.
func NewDispatcher(store Store, cache LockedInputCache, extractor ArchiveExtractor, hashParser HashParser, opts ...Option) *Dispatcher {
	c := newConfig()
	for _, opt := range opts {
		opt(c)
	}
	if hashParser == nil {
		hashParser = defaultHashParser{}
	}

	head := newHeadResolver(c)
	return &Dispatcher{
		cfg:        c,
		probe:      newRepoProbe(c),
		head:       head,
		cache:      newLockedCacheAdapter(cache),
		dirty:      newDirtyTreeView(c),
		submodule:  newSubmoduleCheckout(c),
		git:        execpkg.NewWrapper(c.executor, "git"),
		logger:     newSlogLogger(c.logger),
		store:      store,
		extractor:  extractor,
		hashParser: hashParser,
	}
}

// defaultHashParser validates that a rev looks like a sha1 or sha256
// commit id, mirroring getRepoInfo's checkHashType: "Supported types are
// sha1 and sha256."
type defaultHashParser struct{}

func (defaultHashParser) ParseRev(s string) (string, error) {
	switch len(s) {
	case 40:
		if isHexString(s) {
			return "sha1", nil
		}
	case 64:
		if isHexString(s) {
			return "sha256", nil
		}
	}
	return "", fmt.Errorf("hash %q is not supported by git; supported types are sha1 and sha256", s)
}

func isHexString(s string) bool {
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
		case r >= 'a' && r <= 'f':
		case r >= 'A' && r <= 'F':
		default:
			return false
		}
	}
	return true
}

// FetchResult is the locked input descriptor spec.md §1 promises: a
// filesystem view over the snapshot plus URL+rev+lastModified+revCount+
// content hash (the hash lives on Info, queried from the store).
type FetchResult struct {
	Path         StorePath
	Info         PathInfo
	Accessor     FilesystemAccessor
	Rev          string
	LastModified int64
	RevCount     *int64
}

// Fetch runs the full control flow for attrs.
func (d *Dispatcher) Fetch(ctx context.Context, attrs InputAttrs) (*FetchResult, error) {
	if rev := attrs.rev(); rev != "" {
		if _, err := d.hashParser.ParseRev(rev); err != nil {
			return nil, errors.Wrapf(err, errors.CodeHashUnsupported, "unsupported hash for rev %q", rev)
		}
	}

	info, perr := d.probe.probe(attrs)
	if perr != nil {
		return nil, perr
	}

	name := "source"
	if attrs.Name != nil && *attrs.Name != "" {
		name = *attrs.Name
	}

	if info.IsLocal && attrs.ref() == "" && attrs.rev() == "" {
		return d.fetchDirty(ctx, attrs, info, name)
	}
	return d.fetchPinned(ctx, attrs, info, name)
}

// fetchDirty implements component H's path through the Dispatcher: no
// locked-cache interaction at all.
func (d *Dispatcher) fetchDirty(ctx context.Context, attrs InputAttrs, info RepoInfo, name string) (*FetchResult, error) {
	if info.IsDirty {
		if !d.cfg.allowDirty {
			return nil, errors.New(errors.CodeDirtyNotAllowed, "local working tree has uncommitted changes")
		}
		if d.cfg.warnDirty {
			d.logger.Warn("using dirty working tree", "path", info.URL)
		}
	}

	accessor, lastModified, err := d.dirty.materialize(info.URL, info.Submodules, info.HasHead)
	if err != nil {
		return nil, err
	}

	path, err := d.store.AddToStore(ctx, name, info.URL, info.Submodules, func(path string) bool {
		return accessor.Tracked(path)
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "failed to add dirty tree to store")
	}
	pathInfo, err := d.store.QueryPathInfo(ctx, path)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "failed to query store path info")
	}

	return &FetchResult{
		Path:         path,
		Info:         pathInfo,
		Accessor:     accessor,
		LastModified: lastModified,
	}, nil
}

// fetchPinned implements the E→B→D→E→(F or G)→E pipeline for every input
// that isn't the bare dirty-tree case.
func (d *Dispatcher) fetchPinned(ctx context.Context, attrs InputAttrs, info RepoInfo, name string) (*FetchResult, error) {
	mode := info.CacheMode
	rev := attrs.rev()
	userSuppliedRev := rev != ""

	if rev != "" {
		if path, locked, hit, err := d.cache.lookupLocked(ctx, mode, name, rev); err != nil {
			return nil, err
		} else if hit {
			return resultFromLocked(path, locked), nil
		}
	}

	mirrorDir := cachePath(d.cfg.cacheRoot, info.URL)
	m := newMirror(mirrorDir, d.cfg, d.head)
	if err := m.ensureMirror(ctx); err != nil {
		return nil, err
	}

	ref := attrs.ref()
	if ref == "" {
		resolved, err := d.head.resolveDefaultRef(info.URL, info.IsLocal, mirrorDir)
		if err != nil {
			return nil, errors.Wrap(err, errors.CodeFetchFailed, "failed to resolve default ref")
		}
		ref = resolved
	}

	if m.decideFetch(rev, ref, info.AllRefs, info.Shallow) {
		if err := m.fetch(ctx, info.URL, ref, fetchModeFor(info), rev); err != nil {
			return nil, err
		}
	}

	if rev == "" {
		if cachedRev, hit, err := d.cache.lookupUnlocked(ctx, mode, name, info.URL, ref, ""); err != nil {
			return nil, err
		} else if hit {
			if path, locked, hit2, err := d.cache.lookupLocked(ctx, mode, name, cachedRev); err != nil {
				return nil, err
			} else if hit2 {
				return resultFromLocked(path, locked), nil
			}
			rev = cachedRev
		}
	}

	if rev == "" {
		resolved, err := m.resolveRev(ref)
		if err != nil {
			return nil, err
		}
		rev = resolved
	}

	if !m.hasRev(rev) {
		if info.AllRefs {
			return nil, errors.Newf(errors.CodeRevNotFound, "revision %s not found even with allRefs", rev)
		}
		return nil, errors.Newf(errors.CodeRevNotFound, "revision %s not found after fetch; retry with allRefs=true", rev)
	}

	path, pathInfo, accessor, locked, err := d.materialize(ctx, info, mirrorDir, ref, rev, name)
	if err != nil {
		return nil, err
	}

	if err := d.cache.store(ctx, mode, name, info.URL, ref, userSuppliedRev, locked, path); err != nil {
		d.logger.Warn("failed to persist locked-input cache record", "url", info.URL, "rev", rev, "error", err)
	}

	return &FetchResult{
		Path:         path,
		Info:         pathInfo,
		Accessor:     accessor,
		Rev:          rev,
		LastModified: locked.LastModified,
		RevCount:     locked.RevCount,
	}, nil
}

// materialize dispatches to component G (submodules) or component F
// (plain snapshot), then ingests the result into the store.
func (d *Dispatcher) materialize(ctx context.Context, info RepoInfo, mirrorDir, ref, rev, name string) (StorePath, PathInfo, FilesystemAccessor, LockedAttrs, error) {
	lastModified, err := d.cache.lastModified(ctx, rev, func() (int64, error) { return d.computeLastModified(mirrorDir, rev) })
	if err != nil {
		return "", PathInfo{}, nil, LockedAttrs{}, err
	}
	revCount, err := d.cache.revCount(ctx, rev, func() (int64, error) { return d.computeRevCount(mirrorDir, rev) })
	if err != nil {
		return "", PathInfo{}, nil, LockedAttrs{}, err
	}
	locked := LockedAttrs{Rev: rev, LastModified: lastModified, RevCount: &revCount}

	if info.Submodules {
		if err := d.checkRevReachable(mirrorDir, ref, rev); err != nil {
			return "", PathInfo{}, nil, LockedAttrs{}, err
		}
		path, pathInfo, err := d.materializeWithSubmodules(ctx, info, mirrorDir, rev, name)
		if err != nil {
			return "", PathInfo{}, nil, LockedAttrs{}, err
		}
		// The work-tree component G produced is removed as soon as the
		// store has its own copy (spec.md §5's "scoped resources"); a
		// caller wanting direct file access uses the returned StorePath,
		// not a live accessor over a directory that no longer exists.
		return path, pathInfo, nil, locked, nil
	}

	accessor, aerr := newGitObjectAccessor(mirrorDir, rev)
	if aerr != nil {
		return "", PathInfo{}, nil, LockedAttrs{}, aerr
	}

	path, pathInfo, err := d.materializePlain(ctx, mirrorDir, rev, name)
	if err != nil {
		return "", PathInfo{}, nil, LockedAttrs{}, err
	}
	return path, pathInfo, accessor, locked, nil
}

// materializePlain implements component F's fallback: archive-pipe into a
// scratch directory, then ingest it into the store.
func (d *Dispatcher) materializePlain(ctx context.Context, mirrorDir, rev, name string) (StorePath, PathInfo, error) {
	destDir, err := os.MkdirTemp("", "git-snapshot-")
	if err != nil {
		return "", PathInfo{}, errors.Wrap(err, errors.CodeInternal, "failed to create scratch directory")
	}
	defer os.RemoveAll(destDir) //nolint:errcheck // best-effort cleanup

	if err := archivePipe(d.git, mirrorDir, rev, destDir, d.extractor); err != nil {
		return "", PathInfo{}, err
	}

	path, err := d.store.AddToStore(ctx, name, destDir, true, excludeGitPaths)
	if err != nil {
		return "", PathInfo{}, errors.Wrap(err, errors.CodeInternal, "failed to add snapshot to store")
	}
	pathInfo, err := d.store.QueryPathInfo(ctx, path)
	if err != nil {
		return "", PathInfo{}, errors.Wrap(err, errors.CodeInternal, "failed to query store path info")
	}
	return path, pathInfo, nil
}

// materializeWithSubmodules runs component G and ingests its work-tree.
func (d *Dispatcher) materializeWithSubmodules(ctx context.Context, info RepoInfo, mirrorDir, rev, name string) (StorePath, PathInfo, error) {
	params := checkoutParams{
		rev:          rev,
		shallow:      info.Shallow,
		isLocal:      info.IsLocal,
		localRepo:    info.URL,
		canonicalURL: info.URL,
		mirrorDir:    mirrorDir,
	}
	workTree, cleanup, err := d.submodule.checkout(ctx, params)
	if err != nil {
		return "", PathInfo{}, err
	}
	defer cleanup()

	path, err := d.store.AddToStore(ctx, name, workTree, true, excludeGitPaths)
	if err != nil {
		return "", PathInfo{}, errors.Wrap(err, errors.CodeInternal, "failed to add checkout to store")
	}
	pathInfo, err := d.store.QueryPathInfo(ctx, path)
	if err != nil {
		return "", PathInfo{}, errors.Wrap(err, errors.CodeInternal, "failed to query store path info")
	}
	return path, pathInfo, nil
}

// excludeGitPaths is the store-ingestion filter spec.md §4.G step 7
// requires: every `.git` entry is dropped.
func excludeGitPaths(path string) bool {
	for _, segment := range strings.FieldsFunc(path, func(r rune) bool { return r == '/' || r == os.PathSeparator }) {
		if segment == ".git" {
			return false
		}
	}
	return true
}

// checkRevReachable runs `git cat-file commit <rev>` against the mirror
// right before populating submodules and turns the exit-128 "bad file"
// shape into a friendly diagnostic pointing the caller at allRefs,
// matching the message getAccessorFromCommit produces for exactly this
// condition.
func (d *Dispatcher) checkRevReachable(mirrorDir, ref, rev string) error {
	_, err := d.git.WithDir(mirrorDir).Run("cat-file", "commit", rev)
	if err == nil {
		return nil
	}
	if classifyBadFile(err) {
		return errors.Newf(errors.CodeRevNotFound,
			"cannot find git revision %q in ref %q of repository; make sure the rev exists on the ref, or add allRefs=true", rev, ref)
	}
	return errors.Wrap(err, errors.CodeExecutionFailed, "failed to verify revision before submodule checkout")
}

func (d *Dispatcher) computeRevCount(mirrorDir, rev string) (int64, error) {
	result, err := d.git.WithDir(mirrorDir).Run("rev-list", "--count", rev)
	if err != nil {
		return 0, errors.Wrap(err, errors.CodeInternal, "failed to compute revision count")
	}
	count, perr := strconv.ParseInt(strings.TrimSpace(result.Stdout), 10, 64)
	if perr != nil {
		return 0, errors.Wrap(perr, errors.CodeInternal, "failed to parse revision count")
	}
	return count, nil
}

func (d *Dispatcher) computeLastModified(mirrorDir, rev string) (int64, error) {
	result, err := d.git.WithDir(mirrorDir).Run("log", "-1", "--format=%ct", rev)
	if err != nil {
		return 0, errors.Wrap(err, errors.CodeInternal, "failed to read commit time")
	}
	ts, perr := strconv.ParseInt(strings.TrimSpace(result.Stdout), 10, 64)
	if perr != nil {
		return 0, errors.Wrap(perr, errors.CodeInternal, "failed to parse commit time")
	}
	return ts, nil
}

func fetchModeFor(info RepoInfo) fetchMode {
	switch {
	case info.AllRefs:
		return fetchAllRefs
	case info.Shallow:
		return fetchShallow
	default:
		return fetchFull
	}
}

func resultFromLocked(path StorePath, attrs LockedAttrs) *FetchResult {
	return &FetchResult{
		Path:         path,
		Rev:          attrs.Rev,
		LastModified: attrs.LastModified,
		RevCount:     attrs.RevCount,
	}
}
