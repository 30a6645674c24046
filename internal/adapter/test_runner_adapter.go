package adapter

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"

	m "github.com/livngcorpse/jarvis/internal/model"
)

// CommandRunner runs external tools (linters, test suites, health probes).
type CommandRunner interface {
	// Run executes argv in workDir and returns the combined stdout/stderr.
	// A missing executable is reported as model.ErrToolUnavailable.
	Run(ctx context.Context, workDir string, argv []string) (output string, err error)
}

// LocalCommandRunner provides a concrete implementation using os/exec.
type LocalCommandRunner struct {
	timeout time.Duration
}

// NewLocalCommandRunner constructs a LocalCommandRunner. Each Run is bounded
// by timeout; a zero timeout falls back to two minutes.
func NewLocalCommandRunner(timeout time.Duration) *LocalCommandRunner {
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}

	return &LocalCommandRunner{
		timeout: timeout,
	}
}

// Run executes argv in workDir.
func (a *LocalCommandRunner) Run(ctx context.Context, workDir string, argv []string) (string, error) {
	if len(argv) == 0 {
		return "", fmt.Errorf("%w: empty command", m.ErrToolUnavailable)
	}

	if _, err := exec.LookPath(argv[0]); err != nil {
		return "", fmt.Errorf("%w: %s: %w", m.ErrToolUnavailable, argv[0], err)
	}

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	// #nosec G204 -- argv comes from operator configuration
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = workDir

	var stdout, stderr bytes.Buffer

	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()

	output := stdout.String() + stderr.String()

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return output, fmt.Errorf("%s timed out after %s: %w", argv[0], a.timeout, ctx.Err())
	}

	return output, err
}
