// Package exec provides a small, mockable wrapper around os/exec used to
// shell out to the git CLI. The fetcher never talks to go-git's porcelain
// for anything that mutates a repository (clone, fetch, checkout,
// submodule update); instead it drives the real git binary and classifies
// its exit code and stderr. This package is the seam that makes that
// classification testable without a git binary on the test machine.
package exec

import (
	"context"
	"io"
)

// Executor runs external commands. Every method except Run returns the
// receiver (or a wrapper around it) so calls can be chained; Run is the
// only method that actually touches the filesystem or network.
type Executor interface {
	// WithEnv merges env into the command's environment for the next Run
	// call only. It overrides any global env set via the New options.
	WithEnv(env map[string]string) Executor

	// WithDir sets the working directory for the next Run call only.
	WithDir(dir string) Executor

	// WithContext binds ctx to subsequent Run calls until it is replaced;
	// the child process is killed if ctx is canceled before it exits.
	WithContext(ctx context.Context) Executor

	// WithDisableColors strips ANSI color codes from git's output by
	// forcing the usual NO_COLOR/TERM=dumb family of env vars.
	WithDisableColors() Executor

	// WithTimeout bounds the next Run call to d, parsed with
	// time.ParseDuration.
	WithTimeout(d string) Executor

	// WithInheritEnv causes the child process to inherit the calling
	// process's environment in addition to anything set via WithEnv.
	WithInheritEnv() Executor

	// WithStdout sets the writer stdout is streamed to when passthrough
	// is enabled (see WithPassthrough); stdout is captured either way.
	WithStdout(w io.Writer) Executor

	// WithStderr sets the writer stderr is streamed to when passthrough
	// is enabled (see WithPassthrough); stderr is captured either way.
	WithStderr(w io.Writer) Executor

	// WithPassthrough streams both stdout and stderr to the executor's
	// configured writers while still capturing them in the Result.
	WithPassthrough() Executor

	// Run executes args[0] with args[1:] as arguments and waits for it
	// to exit. A non-zero exit code is reported as a *ExecError, not a
	// nil Result — callers that need the partial output on failure
	// should inspect the returned Result alongside the error.
	Run(args ...string) (*Result, error)

	// Clone returns an independent copy carrying the same global
	// configuration, useful for deriving a differently-configured
	// executor without mutating the original.
	Clone() Executor
}

// Result holds everything a completed command produced.
type Result struct {
	// Stdout is what the command wrote to its standard output.
	Stdout string

	// Stderr is what the command wrote to its standard error. Git
	// fetcher error classification matches against this field.
	Stderr string

	// Combined interleaves Stdout and Stderr in the order they were
	// written, which is occasionally useful for diagnostics.
	Combined string

	// ExitCode is the process exit status, or -1 if the process never
	// started (e.g. the binary wasn't found).
	ExitCode int
}

// Option configures a Command at construction time. Anything set this way
// becomes the global default, which per-call With* methods can override.
type Option func(*Command)

// WithEnv sets the global environment.
func WithEnv(env map[string]string) Option {
	return func(c *Command) {
		for k, v := range env {
			c.config.globalEnv[k] = v
		}
	}
}

// WithDir sets the global working directory.
func WithDir(dir string) Option {
	return func(c *Command) { c.config.globalDir = dir }
}

// WithContext sets the global context.
func WithContext(ctx context.Context) Option {
	return func(c *Command) { c.WithContext(ctx) }
}

// WithDisableColors globally disables color output from child processes.
func WithDisableColors() Option {
	return func(c *Command) { c.config.globalDisableColors = true }
}

// WithInheritEnv makes every command inherit the parent process's
// environment by default.
func WithInheritEnv() Option {
	return func(c *Command) { c.config.globalInheritEnv = true }
}

// WithStdout sets the global stdout writer.
func WithStdout(w io.Writer) Option {
	return func(c *Command) { c.WithStdout(w) }
}

// WithStderr sets the global stderr writer.
func WithStderr(w io.Writer) Option {
	return func(c *Command) { c.WithStderr(w) }
}

// WithPassthrough globally enables output passthrough.
func WithPassthrough() Option {
	return func(c *Command) { c.config.globalPassthrough = true }
}
