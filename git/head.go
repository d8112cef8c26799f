package git

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rrbutani/nix/errors"
	execpkg "github.com/rrbutani/nix/exec"
)

// headResolver implements component B (spec.md §4.B): resolving a
// remote's default branch with TTL caching and graceful fallback.
type headResolver struct {
	git    execpkg.Executor
	ttl    time.Duration
	logger Logger
}

func newHeadResolver(c *config) *headResolver {
	return &headResolver{
		git:    execpkg.NewWrapper(c.executor, "git"),
		ttl:    c.ttl,
		logger: newSlogLogger(c.logger),
	}
}

// resolveDefaultRef resolves url's default branch. mirrorDir is the path
// to the (possibly not-yet-existing) bare mirror, used for local caching
// of the remote case; it is ignored for local URLs.
func (h *headResolver) resolveDefaultRef(url string, isLocal bool, mirrorDir string) (string, error) {
	if isLocal {
		return h.resolveSymref(url)
	}
	return h.resolveRemoteCached(url, mirrorDir)
}

// resolveSymref runs `ls-remote --symref` and returns the symbolic target
// of the first line, or the object id if the first line isn't symbolic.
func (h *headResolver) resolveSymref(target string) (string, error) {
	result, err := h.git.Run("ls-remote", "--symref", target, "HEAD")
	if err != nil {
		return "", errors.Wrapf(err, errors.CodeFetchFailed, "ls-remote --symref %s failed", target)
	}
	return parseSymrefOutput(result.Stdout), nil
}

// parseSymrefOutput extracts the ref name (or object id) HEAD points at
// from `ls-remote --symref` output. The symbolic line looks like:
//
//	ref: refs/heads/main	HEAD
//
// and the object line looks like:
//
//	<sha>	HEAD
func parseSymrefOutput(output string) string {
	lines := strings.Split(strings.TrimSpace(output), "\n")
	if len(lines) == 0 || lines[0] == "" {
		return ""
	}
	first := lines[0]
	if strings.HasPrefix(first, "ref: ") {
		rest := strings.TrimPrefix(first, "ref: ")
		fields := strings.Fields(rest)
		if len(fields) > 0 {
			return fields[0]
		}
		return ""
	}
	fields := strings.Fields(first)
	if len(fields) > 0 {
		return fields[0]
	}
	return ""
}

// resolveRemoteCached implements the TTL/sentinel/stale-fallback logic of
// spec.md §4.B for remote URLs.
func (h *headResolver) resolveRemoteCached(url, mirrorDir string) (string, error) {
	headPath := filepath.Join(mirrorDir, "HEAD")

	cached, cachedOK, fresh := h.readCachedHead(headPath)
	if cachedOK && fresh && strings.TrimPrefix(cached, "refs/heads/") != dummyBranch {
		return cached, nil
	}

	resolved, err := h.resolveSymref(url)
	if err != nil {
		if cachedOK {
			h.logger.Warn("head resolution failed, using cached value", "url", url, "error", err)
			return cached, nil
		}
		return "", err
	}

	if resolved == "" {
		if cachedOK {
			h.logger.Warn("remote reported no default ref, using cached value", "url", url)
			return cached, nil
		}
		h.logger.Warn("remote reported no default ref, falling back to master", "url", url)
		return "master", nil
	}

	if err := h.storeCachedHead(mirrorDir, resolved); err != nil {
		h.logger.Warn("failed to persist resolved HEAD", "url", url, "error", err)
	}
	return resolved, nil
}

// readCachedHead reads mirrorDir/HEAD's target and reports whether it
// exists and whether it is within TTL.
func (h *headResolver) readCachedHead(headPath string) (value string, ok bool, fresh bool) {
	info, err := os.Stat(headPath)
	if err != nil {
		return "", false, false
	}
	data, err := os.ReadFile(headPath)
	if err != nil {
		return "", false, false
	}
	target := parseHeadFile(string(data))
	if target == "" {
		return "", false, false
	}
	return target, true, time.Since(info.ModTime()) < h.ttl
}

// parseHeadFile extracts the ref name from a symref-formatted HEAD file
// ("ref: refs/heads/main\n"), or returns the raw content if it's a direct
// object id.
func parseHeadFile(content string) string {
	content = strings.TrimSpace(content)
	if strings.HasPrefix(content, "ref: ") {
		return strings.TrimPrefix(content, "ref: ")
	}
	return content
}

// storeCachedHead persists ref via `git symbolic-ref HEAD <ref>` on the
// mirror, which also bumps HEAD's mtime and so resets the TTL.
func (h *headResolver) storeCachedHead(mirrorDir, ref string) error {
	_, err := h.git.WithDir(mirrorDir).Run("symbolic-ref", "HEAD", ref)
	if err != nil {
		return errors.Wrapf(err, errors.CodeExecutionFailed, "failed to set HEAD to %s", ref)
	}
	return nil
}
