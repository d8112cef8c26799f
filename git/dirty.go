package git

import (
	"strconv"
	"strings"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"

	"github.com/rrbutani/nix/errors"
	execpkg "github.com/rrbutani/nix/exec"
)

// dirtyTreeView implements component H (spec.md §4.H): for a local
// working tree with no ref/rev, enumerate tracked files and build a
// filtered view, without writing to the locked-input cache.
type dirtyTreeView struct {
	git execpkg.Executor
}

func newDirtyTreeView(c *config) *dirtyTreeView {
	return &dirtyTreeView{git: execpkg.NewWrapper(c.executor, "git")}
}

// DirtyFilesystemAccessor filters a billy-backed work-tree view down to
// the tracked file set `git ls-files` reported (spec.md §4.H). The billy
// abstraction (rather than raw os calls) is what lets this be exercised
// against an in-memory filesystem in tests.
type DirtyFilesystemAccessor struct {
	fs           billy.Filesystem
	trackedFiles map[string]bool
}

// Open implements FilesystemAccessor.
func (d *DirtyFilesystemAccessor) Open(path string) (ReadCloser, error) {
	if !d.trackedFiles[path] {
		return nil, errors.Newf(errors.CodeInternal, "path %s is not a tracked file", path)
	}
	return d.fs.Open(path)
}

// Tracked reports whether path is one of the files `git ls-files` reported,
// used by the Dispatcher as the store-ingestion filter for the dirty-tree
// path.
func (d *DirtyFilesystemAccessor) Tracked(path string) bool {
	return d.trackedFiles[path]
}

// Stat implements FilesystemAccessor.
func (d *DirtyFilesystemAccessor) Stat(path string) (isDir bool, exists bool, err error) {
	if d.trackedFiles[path] {
		return false, true, nil
	}
	for tracked := range d.trackedFiles {
		if strings.HasPrefix(tracked, path+"/") {
			return true, true, nil
		}
	}
	return false, false, nil
}

// materialize runs the dirty-tree path: `git ls-files -z`, HEAD commit
// time (or 0 if !hasHead), and no revCount.
func (v *dirtyTreeView) materialize(repoDir string, submodules, hasHead bool) (*DirtyFilesystemAccessor, int64, error) {
	args := []string{"ls-files", "-z"}
	if submodules {
		args = append(args, "--recurse-submodules")
	}
	result, err := v.git.WithDir(repoDir).Run(args...)
	if err != nil {
		return nil, 0, errors.Wrap(err, errors.CodeInternal, "git ls-files failed")
	}

	files := make(map[string]bool)
	for _, f := range strings.Split(result.Stdout, "\x00") {
		if f != "" {
			files[f] = true
		}
	}

	var lastModified int64
	if hasHead {
		lastModified, err = v.headCommitTime(repoDir)
		if err != nil {
			return nil, 0, err
		}
	}

	return &DirtyFilesystemAccessor{fs: osfs.New(repoDir), trackedFiles: files}, lastModified, nil
}

func (v *dirtyTreeView) headCommitTime(repoDir string) (int64, error) {
	result, err := v.git.WithDir(repoDir).Run("log", "-1", "--format=%ct", "HEAD")
	if err != nil {
		return 0, errors.Wrap(err, errors.CodeInternal, "failed to read HEAD commit time")
	}
	ts, parseErr := strconv.ParseInt(strings.TrimSpace(result.Stdout), 10, 64)
	if parseErr != nil {
		return 0, errors.Wrap(parseErr, errors.CodeInternal, "failed to parse commit time")
	}
	return ts, nil
}
