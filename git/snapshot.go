package git

import (
	"context"
	"io"

	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/cache"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/storage/filesystem"

	"github.com/rrbutani/nix/errors"
	execpkg "github.com/rrbutani/nix/exec"
)

// GitObjectAccessor is component F's preferred path (spec.md §4.F): a
// read-only filesystem view synthesized directly from a commit's tree in
// the mirror, with no extraction cost and no subprocess. It opens a bare
// repository's storage directly via go-git/go-billy.
type GitObjectAccessor struct {
	tree *object.Tree
}

// newGitObjectAccessor opens mirrorDir's object store directly and
// resolves rev to its commit tree.
func newGitObjectAccessor(mirrorDir, rev string) (*GitObjectAccessor, errors.PlatformError) {
	fs := osfs.New(mirrorDir)
	storage := filesystem.NewStorage(fs, cache.NewObjectLRUDefault())

	hash := plumbing.NewHash(rev)
	commit, err := object.GetCommit(storage, hash)
	if err != nil {
		return nil, errors.Wrapf(err, errors.CodeRevNotFound, "commit %s not found in mirror", rev)
	}
	tree, err := commit.Tree()
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "failed to read commit tree")
	}
	return &GitObjectAccessor{tree: tree}, nil
}

// Open implements FilesystemAccessor.
func (g *GitObjectAccessor) Open(path string) (ReadCloser, error) {
	file, err := g.tree.File(path)
	if err != nil {
		return nil, errors.Wrapf(err, errors.CodeInternal, "path %s not found in snapshot", path)
	}
	reader, err := file.Reader()
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "failed to open blob")
	}
	return reader, nil
}

// Stat implements FilesystemAccessor.
func (g *GitObjectAccessor) Stat(path string) (isDir bool, exists bool, err error) {
	if path == "" || path == "." {
		return true, true, nil
	}
	if entry, walkErr := g.tree.FindEntry(path); walkErr == nil {
		return entry.Mode == filemodeDir, true, nil
	}
	if _, fileErr := g.tree.File(path); fileErr == nil {
		return false, true, nil
	}
	return false, false, nil
}

// filemodeDir mirrors go-git's filemode.Dir without importing the
// filemode package solely for one constant comparison.
const filemodeDir = 0o40000

// archivePipe implements component F's fallback path: piping
// `git archive <rev>` into an ArchiveExtractor to populate destDir. git is
// an Executor already bound to the "git" program (e.g. via
// exec.NewWrapper), not a bare subprocess runner.
func archivePipe(git execpkg.Executor, mirrorDir, rev, destDir string, extractor ArchiveExtractor) error {
	reader, writer := io.Pipe()
	errCh := make(chan error, 1)

	go func() {
		defer writer.Close()
		_, err := git.WithDir(mirrorDir).WithStdout(writer).WithPassthrough().Run("archive", rev)
		errCh <- err
	}()

	if err := extractor.Unpack(context.Background(), reader, destDir); err != nil {
		return errors.Wrap(err, errors.CodeCheckoutFailed, "failed to unpack archive")
	}
	if err := <-errCh; err != nil {
		return errors.Wrap(err, errors.CodeCheckoutFailed, "git archive failed")
	}
	return nil
}
