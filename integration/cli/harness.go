//go:build integration

package cli

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/schaermu/mapextract/internal/testutil"
)

// Harness builds the mapextract binary once and runs it against fixtures
type Harness struct {
	t       *testing.T
	binPath string
	home    string
}

// NewHarness creates a new test harness with an isolated HOME
func NewHarness(t *testing.T) *Harness {
	t.Helper()
	return &Harness{
		t:    t,
		home: t.TempDir(),
	}
}

// Build compiles cmd/mapextract into a temporary directory
func (h *Harness) Build(ctx context.Context) error {
	h.t.Helper()

	projectRoot, err := testutil.FindProjectRoot()
	if err != nil {
		return fmt.Errorf("get project root: %w", err)
	}

	h.binPath = filepath.Join(h.t.TempDir(), "mapextract")
	cmd := exec.CommandContext(ctx, "go", "build", "-o", h.binPath, "./cmd/mapextract")
	cmd.Dir = projectRoot
	cmd.Stdout = &testWriter{t: h.t, prefix: "[build] "}
	cmd.Stderr = &testWriter{t: h.t, prefix: "[build] "}

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("go build: %w", err)
	}

	h.t.Logf("Binary built at %s", h.binPath)
	return nil
}

// Run executes the binary in dir and returns stdout, stderr and the exit code
func (h *Harness) Run(ctx context.Context, dir string, args ...string) (string, string, int, error) {
	h.t.Helper()
	if h.binPath == "" {
		return "", "", 0, fmt.Errorf("binary not built")
	}

	cmd := exec.CommandContext(ctx, h.binPath, args...)
	cmd.Dir = dir
	cmd.Env = []string{"HOME=" + h.home, "NO_COLOR=1"}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	exitCode := 0
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		} else {
			return "", "", 0, fmt.Errorf("exec failed: %w", err)
		}
	}

	return stdout.String(), stderr.String(), exitCode, nil
}

// MustRun runs the binary and fails the test if it exits non-zero
func (h *Harness) MustRun(ctx context.Context, dir string, args ...string) (string, string) {
	h.t.Helper()
	stdout, stderr, exitCode, err := h.Run(ctx, dir, args...)
	if err != nil {
		h.t.Fatalf("exec failed: %v", err)
	}
	if exitCode != 0 {
		h.t.Fatalf("command failed with exit code %d\nstdout: %s\nstderr: %s\nargs: %v",
			exitCode, stdout, stderr, args)
	}
	return stdout, stderr
}

// testWriter wraps test logging for command output
type testWriter struct {
	t      *testing.T
	prefix string
}

func (w *testWriter) Write(p []byte) (n int, err error) {
	for _, line := range strings.Split(string(p), "\n") {
		if line != "" {
			w.t.Log(w.prefix + line)
		}
	}
	return len(p), nil
}

var _ io.Writer = (*testWriter)(nil)
