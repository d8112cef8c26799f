package git

import (
	"bytes"
	"context"
	"testing"

	execpkg "github.com/rrbutani/nix/exec"
)

type fakeExtractor struct {
	received []byte
	err      error
}

func (f *fakeExtractor) Unpack(ctx context.Context, source ReadCloser, destDir string) error {
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(source); err != nil {
		return err
	}
	f.received = buf.Bytes()
	return f.err
}

func TestArchivePipeStreamsGitArchiveOutput(t *testing.T) {
	fake := newFakeExecutor().on("archive", &execpkg.Result{Stdout: "tarball-bytes"}, nil)
	extractor := &fakeExtractor{}

	if err := archivePipe(fake, "/mirror", "deadbeef", "/dest", extractor); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(extractor.received) != "tarball-bytes" {
		t.Errorf("extractor received %q, want %q", extractor.received, "tarball-bytes")
	}

	found := false
	for _, call := range *fake.calls {
		if len(call.args) == 2 && call.args[0] == "archive" && call.args[1] == "deadbeef" {
			found = true
		}
	}
	if !found {
		t.Error("expected git archive to be invoked with the rev, not a re-prefixed \"git\" argument")
	}
}

func TestArchivePipePropagatesGitFailure(t *testing.T) {
	fake := newFakeExecutor().on("archive", nil, execErr(128, "", "fatal: bad revision"))
	extractor := &fakeExtractor{}

	if err := archivePipe(fake, "/mirror", "deadbeef", "/dest", extractor); err == nil {
		t.Error("expected the git archive failure to propagate")
	}
}

func TestArchivePipePropagatesExtractorFailure(t *testing.T) {
	fake := newFakeExecutor().on("archive", &execpkg.Result{Stdout: "tarball-bytes"}, nil)
	extractor := &fakeExtractor{err: errTestSentinel}

	if err := archivePipe(fake, "/mirror", "deadbeef", "/dest", extractor); err == nil {
		t.Error("expected the extractor failure to propagate")
	}
}

func TestGitObjectAccessorStatRoot(t *testing.T) {
	g := &GitObjectAccessor{}
	isDir, exists, err := g.Stat(".")
	if err != nil || !isDir || !exists {
		t.Errorf("Stat(\".\") = (%v, %v, %v), want (true, true, nil)", isDir, exists, err)
	}
}
