package git

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rrbutani/nix/errors"
	execpkg "github.com/rrbutani/nix/exec"
)

// mirror implements component D (spec.md §4.D): the bare cache repository
// for one URL, with its lock, fetch planning, and rev-presence checks.
type mirror struct {
	dir     string
	git     execpkg.Executor
	lock    *MirrorLock
	head    *headResolver
	maxJobs int
	ttl     time.Duration
	logger  Logger
}

func newMirror(dir string, c *config, head *headResolver) *mirror {
	return &mirror{
		dir:     dir,
		git:     execpkg.NewWrapper(c.executor, "git"),
		lock:    newMirrorLock(dir),
		head:    head,
		maxJobs: c.maxJobs,
		ttl:     c.ttl,
		logger:  newSlogLogger(c.logger),
	}
}

// ensureMirror creates the mirror directory and initializes a bare
// repository if one doesn't already exist, under the mirror lock.
func (m *mirror) ensureMirror(ctx context.Context) error {
	if err := os.MkdirAll(filepath.Dir(m.dir), 0o755); err != nil {
		return errors.Wrap(err, errors.CodeInternal, "failed to create cache directory")
	}
	return m.lock.withLock(ctx, func() error {
		if m.exists() {
			return nil
		}
		_, err := m.git.Run("init", "--bare", "-c", "init.defaultBranch="+dummyBranch, m.dir)
		if err != nil {
			return errors.Wrap(err, errors.CodeExecutionFailed, "failed to initialize mirror")
		}
		return nil
	})
}

func (m *mirror) exists() bool {
	info, err := os.Stat(filepath.Join(m.dir, "HEAD"))
	return err == nil && !info.IsDir()
}

// hasRev reports whether rev is present as an object in the mirror.
func (m *mirror) hasRev(rev string) bool {
	_, err := m.git.WithDir(m.dir).Run("cat-file", "-e", rev)
	return err == nil
}

// isShallow reports whether the mirror is currently a shallow clone.
func (m *mirror) isShallow() bool {
	result, err := m.git.WithDir(m.dir).Run("rev-parse", "--is-shallow-repository")
	if err != nil {
		return false
	}
	return strings.TrimSpace(result.Stdout) == "true"
}

// refFile is the per-ref file whose mtime anchors the TTL described in
// spec.md §3/§4.D ("refs/heads/<ref>" carries an mtime).
func (m *mirror) refFile(ref string) string {
	return filepath.Join(m.dir, "refs", "heads", sanitizeRefSegment(ref))
}

// sanitizeRefSegment keeps the bookkeeping file name stable for refs that
// aren't already a bare branch name (e.g. "refs/heads/main" or "HEAD").
func sanitizeRefSegment(ref string) string {
	ref = strings.TrimPrefix(ref, "refs/heads/")
	return strings.ReplaceAll(ref, "/", "__")
}

// refIsFresh reports whether ref's bookkeeping file exists and is within
// TTL.
func (m *mirror) refIsFresh(ref string) bool {
	info, err := os.Stat(m.refFile(ref))
	if err != nil {
		return false
	}
	return time.Since(info.ModTime()) < m.ttl
}

// touchRef resets ref's TTL anchor to now, creating the bookkeeping file
// if it doesn't exist.
func (m *mirror) touchRef(ref string) error {
	path := m.refFile(ref)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	now := time.Now()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		f, ferr := os.Create(path)
		if ferr != nil {
			return ferr
		}
		f.Close() //nolint:errcheck
	}
	return os.Chtimes(path, now, now)
}

// decideFetch implements spec.md §4.D's decideFetch: whether a fetch is
// required before materializing the snapshot.
func (m *mirror) decideFetch(rev, ref string, allRefs, wantShallow bool) bool {
	if rev != "" {
		if !m.hasRev(rev) {
			return true
		}
		// rev supplied and already present: only a shallow→full upgrade
		// still requires a fetch.
		return m.isShallow() && !wantShallow
	}
	if allRefs {
		return true
	}
	if !m.refIsFresh(ref) {
		return true
	}
	return m.isShallow() && !wantShallow
}

// fetch implements spec.md §4.D's fetch operation: refspec construction,
// shallow/unshallow handling, stale-ref fallback, and TTL/HEAD bookkeeping
// on success.
func (m *mirror) fetch(ctx context.Context, url, ref string, mode fetchMode, rev string) error {
	return m.lock.withLock(ctx, func() error {
		remoteRefspec := m.remoteRefspec(ref, mode)
		localSpec := m.localRefspec(remoteRefspec, mode, rev)

		args := []string{"fetch", url, localSpec, "--quiet", "--force", "--jobs=" + strconv.Itoa(m.jobs())}
		if mode == fetchShallow && rev != "" {
			args = append(args, "--depth=1")
		}
		if mode != fetchShallow && m.isShallow() {
			args = append(args, "--unshallow")
		}

		_, err := m.git.WithDir(m.dir).Run(args...)
		if err != nil {
			if ref != "" && m.refFileExists(ref) {
				m.logger.Warn("fetch failed, using stale ref", "url", url, "ref", ref, "error", err)
				return nil
			}
			return errors.Wrap(err, errors.CodeFetchFailed, "git fetch failed")
		}

		if ref != "" {
			if err := m.touchRef(ref); err != nil {
				m.logger.Warn("failed to refresh ref TTL file", "ref", ref, "error", err)
			}
		} else if _, herr := m.head.resolveRemoteCached(url, m.dir); herr != nil {
			m.logger.Warn("failed to refresh cached HEAD after fetch", "url", url, "error", herr)
		}
		return nil
	})
}

// resolveRev resolves ref to a commit id within the mirror, used when the
// Dispatcher must learn the rev it just fetched because the caller didn't
// pin one.
func (m *mirror) resolveRev(ref string) (string, error) {
	result, err := m.git.WithDir(m.dir).Run("rev-parse", "--verify", ref+"^{commit}")
	if err != nil {
		return "", errors.Wrapf(err, errors.CodeRevNotFound, "failed to resolve %s to a commit", ref)
	}
	return strings.TrimSpace(result.Stdout), nil
}

func (m *mirror) refFileExists(ref string) bool {
	_, err := os.Stat(m.refFile(ref))
	return err == nil
}

func (m *mirror) jobs() int {
	if m.maxJobs < 1 {
		return 1
	}
	return m.maxJobs
}

// remoteRefspec computes the remote side of the fetch refspec (spec.md
// §4.D).
func (m *mirror) remoteRefspec(ref string, mode fetchMode) string {
	if mode == fetchAllRefs {
		return "refs/*"
	}
	if strings.HasPrefix(ref, "refs/") || ref == "HEAD" {
		return ref
	}
	return "refs/heads/" + ref
}

// localRefspec computes the local destination side of the fetch refspec
// (spec.md §4.D).
func (m *mirror) localRefspec(remoteRef string, mode fetchMode, rev string) string {
	if mode == fetchShallow && rev != "" {
		return fmt.Sprintf("%s:%s", rev, remoteRef)
	}
	return fmt.Sprintf("%s:%s", remoteRef, remoteRef)
}
