package git

import (
	"strings"

	"github.com/rrbutani/nix/errors"
	execpkg "github.com/rrbutani/nix/exec"
)

// classifyRevParseVerify interprets the output of
// `git rev-parse --verify --no-revs HEAD^{commit}` (component C, spec.md
// §4.C). It returns hasHead and, when the directory isn't a repository at
// all, a hard error.
func classifyRevParseVerify(err error) (hasHead bool, classified errors.PlatformError) {
	if err == nil {
		return true, nil
	}

	execErr, ok := asExecError(err)
	if !ok {
		return false, errors.Wrap(err, errors.CodeInternal, "unexpected error probing repository")
	}

	switch {
	case strings.Contains(execErr.Stderr, "fatal: not a git repository"):
		return false, errors.New(errors.CodeNotARepo, "path is not a git repository")
	case strings.Contains(execErr.Stderr, "fatal: Needed a single revision"):
		// Repository exists but has no commits yet.
		return false, nil
	default:
		return false, errors.Wrapf(execErr, errors.CodeInternal, "unexpected rev-parse failure: %s", execErr.Stderr)
	}
}

// classifyDiffQuiet interprets `git diff HEAD --quiet`'s exit status
// (component C, spec.md §4.C / §7): exit 0 means clean, exit 1 means
// dirty, anything else is a hard error.
func classifyDiffQuiet(err error) (dirty bool, classified errors.PlatformError) {
	if err == nil {
		return false, nil
	}
	execErr, ok := asExecError(err)
	if !ok {
		return false, errors.Wrap(err, errors.CodeInternal, "unexpected error diffing working tree")
	}
	if execErr.ExitCode == 1 {
		return true, nil
	}
	return false, errors.Wrapf(execErr, errors.CodeInternal, "git diff failed: %s", execErr.Stderr)
}

// classifyBadFile detects the exit-128-with-"bad file" shape spec.md §7
// calls out specifically for a rev that's still missing after a fetch.
func classifyBadFile(err error) bool {
	execErr, ok := asExecError(err)
	if !ok {
		return false
	}
	return execErr.ExitCode == 128 && strings.Contains(strings.ToLower(execErr.Stderr), "bad file")
}

// asExecError unwraps err into an *exec.ExecError, the sum-type outcome
// every git subprocess call produces (see SPEC_FULL.md §4, "Subprocess
// outcome modeling").
func asExecError(err error) (*execpkg.ExecError, bool) {
	execErr, ok := err.(*execpkg.ExecError)
	if ok {
		return execErr, true
	}
	var wrapped errors.PlatformError
	if stdAs(err, &wrapped) {
		if inner, ok := wrapped.Unwrap().(*execpkg.ExecError); ok {
			return inner, true
		}
	}
	return nil, false
}

func stdAs(err error, target *errors.PlatformError) bool {
	return errors.As(err, target)
}
