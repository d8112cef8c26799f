package exec

import (
	"context"
	"io"
)

// CommandWrapper binds a fixed program name (almost always "git" in this
// module) to an Executor so call sites write Run("clone", url) instead of
// repeating the binary name at every call site.
type CommandWrapper struct {
	executor Executor
	program  string
}

// NewWrapper returns a CommandWrapper that prepends program to every Run.
func NewWrapper(executor Executor, program string) *CommandWrapper {
	return &CommandWrapper{executor: executor, program: program}
}

func (w *CommandWrapper) WithEnv(env map[string]string) Executor {
	w.executor = w.executor.WithEnv(env)
	return w
}

func (w *CommandWrapper) WithDir(dir string) Executor {
	w.executor = w.executor.WithDir(dir)
	return w
}

func (w *CommandWrapper) WithContext(ctx context.Context) Executor {
	w.executor = w.executor.WithContext(ctx)
	return w
}

func (w *CommandWrapper) WithDisableColors() Executor {
	w.executor = w.executor.WithDisableColors()
	return w
}

func (w *CommandWrapper) WithTimeout(timeout string) Executor {
	w.executor = w.executor.WithTimeout(timeout)
	return w
}

func (w *CommandWrapper) WithInheritEnv() Executor {
	w.executor = w.executor.WithInheritEnv()
	return w
}

func (w *CommandWrapper) WithStdout(out io.Writer) Executor {
	w.executor = w.executor.WithStdout(out)
	return w
}

func (w *CommandWrapper) WithStderr(out io.Writer) Executor {
	w.executor = w.executor.WithStderr(out)
	return w
}

func (w *CommandWrapper) WithPassthrough() Executor {
	w.executor = w.executor.WithPassthrough()
	return w
}

// Run prepends the wrapped program name and delegates.
func (w *CommandWrapper) Run(args ...string) (*Result, error) {
	full := append([]string{w.program}, args...)
	return w.executor.Run(full...)
}

// Clone copies the wrapper along with a clone of its underlying executor.
func (w *CommandWrapper) Clone() Executor {
	return &CommandWrapper{executor: w.executor.Clone(), program: w.program}
}
