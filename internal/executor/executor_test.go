package executor

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestShellExecutor_Run(t *testing.T) {
	e := &ShellExecutor{}

	testCases := []struct {
		name     string
		command  string
		stdout   string
		stderr   string
		exitCode int
	}{
		{"stdout", "echo hello", "hello\n", "", 0},
		{"stderr", "echo oops 1>&2", "", "oops\n", 0},
		{"both", "echo out; echo err 1>&2", "out\n", "err\n", 0},
		{"non-zero exit", "echo partial; exit 3", "partial\n", "", 3},
		{"unknown command", "definitely-not-a-command-xyz", "", "", 127},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			res, err := e.Run(context.Background(), tc.command)
			if err != nil {
				t.Fatalf("Run returned error: %v", err)
			}
			if res.Stdout != tc.stdout {
				t.Errorf("stdout = %q, want %q", res.Stdout, tc.stdout)
			}
			if tc.stderr != "" && res.Stderr != tc.stderr {
				t.Errorf("stderr = %q, want %q", res.Stderr, tc.stderr)
			}
			if res.ExitCode != tc.exitCode {
				t.Errorf("exit code = %d, want %d", res.ExitCode, tc.exitCode)
			}
		})
	}
}

func TestShellExecutor_Dir(t *testing.T) {
	dir := t.TempDir()
	e := &ShellExecutor{Dir: dir}
	res, err := e.Run(context.Background(), "pwd")
	if err != nil {
		t.Fatal(err)
	}
	got, _ := filepath.EvalSymlinks(strings.TrimSpace(res.Stdout))
	want, _ := filepath.EvalSymlinks(dir)
	if got != want {
		t.Errorf("pwd = %q, want %q", got, want)
	}
}

func TestShellExecutor_SpawnFailure(t *testing.T) {
	e := &ShellExecutor{Shell: "/nonexistent/shell"}
	_, err := e.Run(context.Background(), "echo hi")

	var spawnErr *SpawnError
	if !errors.As(err, &spawnErr) {
		t.Fatalf("expected *SpawnError, got %v", err)
	}
	if spawnErr.Shell != "/nonexistent/shell" {
		t.Errorf("unexpected shell in error: %q", spawnErr.Shell)
	}
	if !strings.Contains(err.Error(), "/nonexistent/shell") {
		t.Errorf("error should name the shell: %v", err)
	}
}

func TestShellExecutor_Timeout(t *testing.T) {
	e := &ShellExecutor{Timeout: 100 * time.Millisecond}
	res, err := e.Run(context.Background(), "sleep 5")
	if err != nil {
		t.Fatalf("timeout should not be an error: %v", err)
	}
	if res.ExitCode == 0 {
		t.Error("expected non-zero exit code after timeout")
	}
	if !strings.Contains(res.Stderr, "timed out") {
		t.Errorf("expected timeout note in stderr, got %q", res.Stderr)
	}
}
