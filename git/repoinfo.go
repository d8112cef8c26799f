package git

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/rrbutani/nix/errors"
	execpkg "github.com/rrbutani/nix/exec"
)

// repoProbe implements component C (spec.md §4.C): classifying an input
// as remote / local-clean / local-dirty / bare and deriving its cache
// mode.
type repoProbe struct {
	git         execpkg.Executor
	forceRemote bool
}

func newRepoProbe(c *config) *repoProbe {
	return &repoProbe{
		git:         execpkg.NewWrapper(c.executor, "git"),
		forceRemote: c.forceRemote,
	}
}

// probe classifies attrs into a RepoInfo. It performs no mirror I/O
// itself.
func (p *repoProbe) probe(attrs InputAttrs) (RepoInfo, errors.PlatformError) {
	if ref := attrs.ref(); ref != "" {
		if err := validateRefName(ref); err != nil {
			return RepoInfo{}, err
		}
	}

	isLocal := p.isLocalURL(attrs.URL)

	info := RepoInfo{
		Shallow:    boolValue(attrs.Shallow),
		Submodules: boolValue(attrs.Submodules),
		AllRefs:    boolValue(attrs.AllRefs),
		IsLocal:    isLocal,
		URL:        attrs.URL,
		GitDir:     ".",
	}
	info.CacheMode = CacheMode{Shallow: info.Shallow, Submodules: info.Submodules, AllRefs: info.AllRefs}

	if !isLocal {
		return info, nil
	}

	info.GitDir = ".git"
	info.URL = stripFileScheme(attrs.URL)

	if attrs.ref() != "" || attrs.rev() != "" {
		// A pinned ref/rev means we don't need to probe dirtiness; the
		// caller will fetch/checkout that exact point regardless of
		// working-tree state.
		return info, nil
	}

	hasHead, err := p.probeHasHead(info.URL)
	if err != nil {
		return RepoInfo{}, err
	}
	info.HasHead = hasHead
	info.IsDirty = true

	if !hasHead {
		return info, nil
	}

	dirty, err := p.probeDirty(info.URL, info.Submodules)
	if err != nil {
		return RepoInfo{}, err
	}
	info.IsDirty = dirty

	return info, nil
}

// isLocalURL reports whether url should be treated as a local working
// tree: scheme file://(or bare path), target exists, and contains a
// .git subdirectory, unless WithForceRemote(true) overrides this.
func (p *repoProbe) isLocalURL(url string) bool {
	if p.forceRemote {
		return false
	}
	path := stripFileScheme(url)
	if path == url && looksLikeRemoteURL(url) {
		return false
	}
	info, err := os.Stat(filepath.Join(path, ".git"))
	if err != nil {
		return false
	}
	return info != nil
}

func stripFileScheme(url string) string {
	const prefix = "file://"
	if len(url) > len(prefix) && url[:len(prefix)] == prefix {
		return url[len(prefix):]
	}
	return url
}

func looksLikeRemoteURL(url string) bool {
	for _, scheme := range []string{"http://", "https://", "ssh://", "git://"} {
		if len(url) >= len(scheme) && url[:len(scheme)] == scheme {
			return true
		}
	}
	return false
}

// probeHasHead runs `git rev-parse --verify --no-revs HEAD^{commit}` with
// LC_ALL=C and classifies the outcome (spec.md §4.C).
func (p *repoProbe) probeHasHead(dir string) (bool, errors.PlatformError) {
	_, err := p.git.WithDir(dir).WithEnv(map[string]string{"LC_ALL": "C"}).
		Run("rev-parse", "--verify", "--no-revs", "HEAD^{commit}")
	hasHead, classified := classifyRevParseVerify(err)
	return hasHead, classified
}

// probeDirty runs `git diff HEAD --quiet`, passing --ignore-submodules
// iff submodules consumption is disabled (spec.md §4.C).
func (p *repoProbe) probeDirty(dir string, submodules bool) (bool, errors.PlatformError) {
	args := []string{"diff", "HEAD", "--quiet"}
	if !submodules {
		args = append(args, "--ignore-submodules")
	}
	_, err := p.git.WithDir(dir).Run(args...)
	dirty, classified := classifyDiffQuiet(err)
	return dirty, classified
}

// badRefChars are the characters git-check-ref-format(1) forbids
// anywhere in a ref component, beyond the control characters rejected
// below.
const badRefChars = " \t\n\r\"#$&'()*,;<=>?@[]^`{|}~\\"

// validateRefName rejects a ref/branch name git itself would refuse,
// mirroring git-check-ref-format(1)'s rules: no ".." sequence, no
// leading or trailing "/", no trailing ".", no trailing ".lock", no
// "@{", and none of the shell/refspec metacharacters above.
func validateRefName(ref string) errors.PlatformError {
	bad := func() errors.PlatformError {
		return errors.Newf(errors.CodeBadRef, "invalid git branch/tag name %q", ref)
	}
	switch {
	case ref == "" || ref == "@":
		return bad()
	case strings.Contains(ref, ".."):
		return bad()
	case strings.Contains(ref, "@{"):
		return bad()
	case strings.HasPrefix(ref, "/"), strings.HasSuffix(ref, "/"):
		return bad()
	case strings.HasSuffix(ref, "."), strings.HasSuffix(ref, ".lock"):
		return bad()
	}
	for _, r := range ref {
		if r < 0x20 || r == 0x7f || strings.ContainsRune(badRefChars, r) {
			return bad()
		}
	}
	return nil
}
