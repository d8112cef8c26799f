// Package exec is the subprocess boundary the git fetcher is built on.
//
// Every mutating git operation (init, fetch, checkout, submodule update,
// archive) goes through an Executor rather than go-git's porcelain, because
// the fetcher's control flow depends on exact git CLI exit codes and stderr
// text ("fatal: not a git repository", "fatal: Needed a single revision",
// and friends). Keeping that boundary behind an interface means the
// classification logic in package git can be unit tested with a fake
// Executor instead of a real git binary.
//
// # Basic usage
//
//	runner := exec.New()
//	git := exec.NewWrapper(runner, "git")
//
//	result, err := git.WithDir(mirrorPath).Run("cat-file", "-e", rev)
//	if err != nil {
//		var execErr *exec.ExecError
//		if errors.As(err, &execErr) {
//			// inspect execErr.ExitCode / execErr.Stderr
//		}
//	}
//
// # Global vs. per-call configuration
//
// Options passed to New set defaults. The WithEnv, WithDir, WithInheritEnv,
// WithDisableColors, WithPassthrough and WithTimeout methods on Executor
// override them for the next Run only and are cleared afterwards;
// WithContext, WithStdout and WithStderr stay in effect until replaced:
//
//	runner := exec.New(exec.WithEnv(map[string]string{"GIT_TERMINAL_PROMPT": "0"}))
//	result, err := runner.WithDir(repoDir).WithTimeout("30s").Run("git", "fetch")
//
// # Testing
//
// Production code should depend on the Executor interface, not *Command,
// so tests can supply a fake that records the arguments it was called with
// and returns a canned *Result/error pair.
package exec
