// Package executor runs approved shell commands and captures their output.
package executor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"
)

// DefaultShell interprets commands when ShellExecutor.Shell is empty.
const DefaultShell = "sh"

// Result is the captured outcome of one command. A non-zero ExitCode is
// not an error; it is kept for logging only.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
	Duration time.Duration
}

// SpawnError reports that the shell process could not be started at all.
type SpawnError struct {
	Shell string
	Err   error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("failed to start %s: %v", e.Shell, e.Err)
}

func (e *SpawnError) Unwrap() error {
	return e.Err
}

// Runner executes a command line.
type Runner interface {
	Run(ctx context.Context, command string) (Result, error)
}

// ShellExecutor runs commands as `<Shell> -c <command>`.
type ShellExecutor struct {
	Shell string
	// Dir is the working directory; empty means the current one.
	Dir string
	// Timeout bounds a single command. Zero means no limit.
	Timeout time.Duration
}

// Run executes command and waits for it to finish. Stdout and stderr are
// captured separately. The only error returned is a *SpawnError, or the
// context error if ctx ends before the process can start.
func (e *ShellExecutor) Run(ctx context.Context, command string) (Result, error) {
	shell := e.Shell
	if shell == "" {
		shell = DefaultShell
	}
	if e.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.Timeout)
		defer cancel()
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, shell, "-c", command) // #nosec G204 -- approved by the user
	cmd.Dir = e.Dir
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	// children that inherit the pipes must not hold Wait past a cancel
	cmd.WaitDelay = time.Second

	start := time.Now()
	if err := cmd.Start(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Result{}, ctxErr
		}
		return Result{}, &SpawnError{Shell: shell, Err: err}
	}
	err := cmd.Wait()
	res := Result{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
	}

	var exitErr *exec.ExitError
	switch {
	case err == nil:
	case errors.As(err, &exitErr):
		// -1 when terminated by a signal
		res.ExitCode = exitErr.ExitCode()
		if ctx.Err() == context.DeadlineExceeded {
			res.Stderr += "\ncommand timed out\n"
		}
	default:
		// I/O copy failures still leave whatever was captured.
		res.ExitCode = -1
		res.Stderr += fmt.Sprintf("\n%v\n", err)
	}
	return res, nil
}
