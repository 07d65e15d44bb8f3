// Package toolexec invokes the external chemistry programs and translates
// their outcomes into typed results.
package toolexec

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"time"
)

// Invocation describes one external program call.
type Invocation struct {
	// Tool is the executable name or path, taken verbatim from config.
	Tool string
	Args []string
	// Dir is the working directory for the process. The caller scopes it
	// per molecule so concurrent runs never collide.
	Dir string
	// Timeout bounds the call; zero means no bound.
	Timeout time.Duration
}

// Result is the captured outcome of a completed process.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
	Elapsed  time.Duration
}

// Runner executes invocations synchronously with captured output.
type Runner struct {
	log *slog.Logger
}

func NewRunner(log *slog.Logger) *Runner {
	if log == nil {
		log = slog.Default()
	}
	return &Runner{log: log}
}

// Run blocks until the process exits or the timeout fires. A non-nil error
// is always a *Error carrying the failure kind and any captured output.
func (r *Runner) Run(ctx context.Context, inv Invocation) (*Result, error) {
	if inv.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, inv.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, inv.Tool, inv.Args...)
	cmd.Dir = inv.Dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	r.log.Debug("running external tool", "tool", inv.Tool, "args", inv.Args, "dir", inv.Dir)

	start := time.Now()
	err := cmd.Run()
	elapsed := time.Since(start)

	res := &Result{
		Stdout:  stdout.String(),
		Stderr:  stderr.String(),
		Elapsed: elapsed,
	}

	switch {
	case err == nil:
		res.ExitCode = 0
		r.log.Debug("tool finished", "tool", inv.Tool, "elapsed", elapsed)
		return res, nil

	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		r.log.Warn("tool timed out", "tool", inv.Tool, "timeout", inv.Timeout)
		return nil, &Error{
			Kind:   KindToolTimeout,
			Tool:   inv.Tool,
			Err:    fmt.Errorf("killed after %s", inv.Timeout),
			Stdout: res.Stdout,
			Stderr: res.Stderr,
		}

	case isNotFound(err):
		return nil, &Error{Kind: KindToolNotFound, Tool: inv.Tool, Err: err}

	default:
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
			r.log.Warn("tool exited non-zero", "tool", inv.Tool, "exit_code", res.ExitCode)
			return nil, &Error{
				Kind:   KindToolNonZeroExit,
				Tool:   inv.Tool,
				Err:    fmt.Errorf("exit code %d", res.ExitCode),
				Stdout: res.Stdout,
				Stderr: res.Stderr,
			}
		}
		return nil, &Error{Kind: KindUnknown, Tool: inv.Tool, Err: err}
	}
}

// RunExpectFile runs the invocation and then requires path to exist and be
// non-empty. Tools like CREST signal success through well-known output
// files rather than stdout.
func (r *Runner) RunExpectFile(ctx context.Context, inv Invocation, path string) (string, error) {
	if _, err := r.Run(ctx, inv); err != nil {
		return "", err
	}
	info, err := os.Stat(path)
	if err != nil {
		return "", &Error{
			Kind: KindOutputParse,
			Tool: inv.Tool,
			Err:  fmt.Errorf("expected output file %s: %w", path, err),
		}
	}
	if info.Size() == 0 {
		return "", &Error{
			Kind: KindOutputParse,
			Tool: inv.Tool,
			Err:  fmt.Errorf("expected output file %s is empty", path),
		}
	}
	return path, nil
}

func isNotFound(err error) bool {
	if errors.Is(err, exec.ErrNotFound) {
		return true
	}
	// A configured absolute path that does not exist surfaces as ENOENT.
	return errors.Is(err, os.ErrNotExist)
}
