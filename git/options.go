package git

import (
	"log/slog"
	"os"
	"time"

	execpkg "github.com/rrbutani/nix/exec"
)

// Option configures a Dispatcher. See WithX functions below.
type Option func(*config)

type config struct {
	cacheRoot   string
	ttl         time.Duration
	maxJobs     int
	allowDirty  bool
	warnDirty   bool
	forceRemote bool
	logger      *slog.Logger
	executor    execpkg.Executor
}

func newConfig() *config {
	return &config{
		cacheRoot: defaultCacheRoot(),
		ttl:       defaultTTL,
		maxJobs:   1,
		logger:    slog.Default(),
		executor:  execpkg.New(),
	}
}

// defaultCacheRoot resolves the user's standard cache root (spec.md §6),
// e.g. "$XDG_CACHE_HOME" or the OS-appropriate equivalent, falling back to
// os.TempDir; cachePath appends the "gitv4" namespace to it.
func defaultCacheRoot() string {
	base, err := os.UserCacheDir()
	if err != nil {
		base = os.TempDir()
	}
	return base
}

// WithCacheRoot overrides the base directory cache paths are resolved
// under (component A prepends the "gitv4" namespace and the per-URL
// hash to this).
func WithCacheRoot(dir string) Option {
	return func(c *config) { c.cacheRoot = dir }
}

// WithTTL overrides the freshness window for cached HEAD resolution and
// per-ref mtimes (spec.md §4.B, §4.D).
func WithTTL(ttl time.Duration) Option {
	return func(c *config) { c.ttl = ttl }
}

// WithMaxJobs sets the `--jobs=<N>` value passed to fetch and submodule
// update invocations. Values below 1 are clamped to 1.
func WithMaxJobs(n int) Option {
	return func(c *config) {
		if n < 1 {
			n = 1
		}
		c.maxJobs = n
	}
}

// WithAllowDirty controls whether a dirty local working tree is accepted
// (spec.md §7); false (the default) rejects it.
func WithAllowDirty(allow bool) Option {
	return func(c *config) { c.allowDirty = allow }
}

// WithWarnDirty causes a warning to be logged even when a dirty tree is
// allowed (spec.md §7).
func WithWarnDirty(warn bool) Option {
	return func(c *config) { c.warnDirty = warn }
}

// WithForceRemote is the explicit test hook replacing the source's
// _NIX_FORCE_HTTP environment read (REDESIGN FLAGS): when true, a
// file:// URL is treated as a remote source rather than a local one.
func WithForceRemote(force bool) Option {
	return func(c *config) { c.forceRemote = force }
}

// WithLogger overrides the structured logger used for warnings and debug
// traces (stale-ref fallback, submodule fetch retry, ...).
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithExecutor swaps the exec.Executor used to shell out to git, letting
// tests substitute a fake that records argv and returns scripted results.
func WithExecutor(executor execpkg.Executor) Option {
	return func(c *config) {
		if executor != nil {
			c.executor = executor
		}
	}
}
