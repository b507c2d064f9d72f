// Package summarize invokes the external summarization tool and schedules
// summarization work across a bounded worker pool.
package summarize

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Failure taxonomy for one invocation. All of these become failed-task
// records at the batch level; none is retried or fatal.
var (
	ErrToolNotFound = errors.New("summarizer tool not found")
	ErrTimeout      = errors.New("summarizer timed out")
	ErrEmptyOutput  = errors.New("summarizer returned empty output")
)

// Runner invokes the external summarizer CLI once per call. The tool reads
// the prompt and thread content on stdin and prints the summary on stdout.
type Runner struct {
	command string
	timeout time.Duration
	log     *zap.Logger
}

func NewRunner(command string, timeout time.Duration, log *zap.Logger) *Runner {
	return &Runner{command: command, timeout: timeout, log: log}
}

// Invoke runs one summarization, blocking until the tool exits, the
// per-invocation timeout elapses, or ctx is cancelled.
func (r *Runner) Invoke(ctx context.Context, content, instructions string) (string, error) {
	full := instructions + "\n\nThread content:\n" + content

	tctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	cmd := exec.CommandContext(tctx, r.command, "--print")
	cmd.Stdin = strings.NewReader(full)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err != nil {
		switch {
		case errors.Is(err, exec.ErrNotFound):
			return "", fmt.Errorf("%w: %q", ErrToolNotFound, r.command)
		case tctx.Err() == context.DeadlineExceeded:
			return "", fmt.Errorf("%w after %s", ErrTimeout, r.timeout)
		default:
			var exitErr *exec.ExitError
			if errors.As(err, &exitErr) {
				msg := strings.TrimSpace(stderr.String())
				if msg == "" {
					msg = "unknown error"
				}
				return "", fmt.Errorf("summarizer exited with code %d: %s", exitErr.ExitCode(), msg)
			}
			return "", fmt.Errorf("run summarizer: %w", err)
		}
	}

	out := strings.TrimSpace(stdout.String())
	if out == "" {
		return "", ErrEmptyOutput
	}
	return out, nil
}

// CheckAvailable probes the tool with --version. Run before dispatch so a
// missing tool fails the batch up front instead of producing one failed
// record per thread.
func (r *Runner) CheckAvailable(ctx context.Context) error {
	tctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	cmd := exec.CommandContext(tctx, r.command, "--version")
	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	if err := cmd.Run(); err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return fmt.Errorf("%w: %q", ErrToolNotFound, r.command)
		}
		return fmt.Errorf("summarizer version check: %w", err)
	}
	r.log.Info("summarizer tool available",
		zap.String("command", r.command),
		zap.String("version", strings.TrimSpace(stdout.String())))
	return nil
}
