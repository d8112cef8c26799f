package git

import (
	"context"
	"io"
	"log/slog"
	"strings"

	execpkg "github.com/rrbutani/nix/exec"
)

// discardLogger returns a logger that throws away everything it's given,
// for tests that only care about control flow.
func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeCall records one Run invocation: the argv it was called with and the
// working directory in effect at the time, mirroring what real usages of
// exec.Executor care about asserting on.
type fakeCall struct {
	args []string
	dir  string
	env  map[string]string
}

// fakeResponse is what a scripted call returns.
type fakeResponse struct {
	result *execpkg.Result
	err    error
}

// fakeExecutor is a hand-written fake exec.Executor: it records the argv
// it was called with and returns a scripted result per argv prefix.
type fakeExecutor struct {
	calls *[]fakeCall

	pendingDir string
	pendingEnv map[string]string

	// responses maps a space-joined argv prefix to a scripted response.
	// The first entry whose args are a prefix of the actual call wins,
	// in insertion order tracked by keys.
	responses map[string]fakeResponse
	keys      []string

	stdout io.Writer
}

func newFakeExecutor() *fakeExecutor {
	calls := make([]fakeCall, 0)
	return &fakeExecutor{calls: &calls, responses: map[string]fakeResponse{}}
}

func (f *fakeExecutor) on(argsPrefix string, result *execpkg.Result, err error) *fakeExecutor {
	if _, exists := f.responses[argsPrefix]; !exists {
		f.keys = append(f.keys, argsPrefix)
	}
	f.responses[argsPrefix] = fakeResponse{result: result, err: err}
	return f
}

func (f *fakeExecutor) WithEnv(env map[string]string) execpkg.Executor {
	f.pendingEnv = env
	return f
}

func (f *fakeExecutor) WithDir(dir string) execpkg.Executor {
	f.pendingDir = dir
	return f
}

func (f *fakeExecutor) WithContext(ctx context.Context) execpkg.Executor   { return f }
func (f *fakeExecutor) WithDisableColors() execpkg.Executor                { return f }
func (f *fakeExecutor) WithTimeout(d string) execpkg.Executor              { return f }
func (f *fakeExecutor) WithInheritEnv() execpkg.Executor                   { return f }
func (f *fakeExecutor) WithStderr(w io.Writer) execpkg.Executor            { return f }
func (f *fakeExecutor) WithPassthrough() execpkg.Executor                  { return f }

func (f *fakeExecutor) WithStdout(w io.Writer) execpkg.Executor {
	f.stdout = w
	return f
}

func (f *fakeExecutor) Run(args ...string) (*execpkg.Result, error) {
	*f.calls = append(*f.calls, fakeCall{args: append([]string{}, args...), dir: f.pendingDir, env: f.pendingEnv})
	f.pendingDir = ""
	f.pendingEnv = nil

	// Components wrap the executor with exec.NewWrapper(..., "git"), so a
	// leading "git" is ignored when matching scripted subcommands.
	joined := strings.TrimPrefix(strings.Join(args, " "), "git ")
	for _, key := range f.keys {
		if strings.HasPrefix(joined, key) {
			resp := f.responses[key]
			if f.stdout != nil && resp.result != nil {
				_, _ = f.stdout.Write([]byte(resp.result.Stdout))
			}
			f.stdout = nil
			return resp.result, resp.err
		}
	}
	f.stdout = nil
	return &execpkg.Result{}, nil
}

func (f *fakeExecutor) Clone() execpkg.Executor {
	return f
}

func execErr(exitCode int, stdout, stderr string) error {
	return &execpkg.ExecError{ExitCode: exitCode, Stdout: stdout, Stderr: stderr}
}
