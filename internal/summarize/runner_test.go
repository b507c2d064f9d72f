package summarize

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
)

// fakeTool writes a shell script standing in for the summarizer CLI.
func fakeTool(t *testing.T, script string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell-script fake tool")
	}
	path := filepath.Join(t.TempDir(), "fake-summarizer")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+script), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestInvoke(t *testing.T) {
	tool := fakeTool(t, "cat >/dev/null\necho 'a fine summary'\n")
	r := NewRunner(tool, 5*time.Second, zap.NewNop())

	out, err := r.Invoke(context.Background(), "thread text", "summarize this")
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if out != "a fine summary" {
		t.Errorf("output = %q", out)
	}
}

func TestInvokePassesPromptOnStdin(t *testing.T) {
	// The tool echoes its stdin back, so the output is the full prompt.
	tool := fakeTool(t, "cat\n")
	r := NewRunner(tool, 5*time.Second, zap.NewNop())

	out, err := r.Invoke(context.Background(), "the content", "the instructions")
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if !strings.HasPrefix(out, "the instructions") {
		t.Errorf("prompt should lead with instructions, got %q", out)
	}
	if !strings.Contains(out, "Thread content:\nthe content") {
		t.Errorf("prompt missing content section: %q", out)
	}
}

func TestInvokeToolNotFound(t *testing.T) {
	r := NewRunner("no-such-summarizer-tool-xyz", time.Second, zap.NewNop())
	_, err := r.Invoke(context.Background(), "c", "i")
	if !errors.Is(err, ErrToolNotFound) {
		t.Errorf("err = %v, want ErrToolNotFound", err)
	}
}

func TestInvokeTimeout(t *testing.T) {
	tool := fakeTool(t, "sleep 10\n")
	r := NewRunner(tool, 100*time.Millisecond, zap.NewNop())

	_, err := r.Invoke(context.Background(), "c", "i")
	if !errors.Is(err, ErrTimeout) {
		t.Errorf("err = %v, want ErrTimeout", err)
	}
}

func TestInvokeNonZeroExit(t *testing.T) {
	tool := fakeTool(t, "cat >/dev/null\necho 'rate limited' >&2\nexit 3\n")
	r := NewRunner(tool, 5*time.Second, zap.NewNop())

	_, err := r.Invoke(context.Background(), "c", "i")
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "exited with code 3") {
		t.Errorf("err = %v", err)
	}
	if !strings.Contains(err.Error(), "rate limited") {
		t.Errorf("stderr not surfaced: %v", err)
	}
}

func TestInvokeEmptyOutput(t *testing.T) {
	tool := fakeTool(t, "cat >/dev/null\necho '   '\n")
	r := NewRunner(tool, 5*time.Second, zap.NewNop())

	_, err := r.Invoke(context.Background(), "c", "i")
	if !errors.Is(err, ErrEmptyOutput) {
		t.Errorf("err = %v, want ErrEmptyOutput", err)
	}
}

func TestCheckAvailable(t *testing.T) {
	tool := fakeTool(t, "echo 'fake 1.0.0'\n")
	r := NewRunner(tool, time.Second, zap.NewNop())
	if err := r.CheckAvailable(context.Background()); err != nil {
		t.Errorf("CheckAvailable: %v", err)
	}

	missing := NewRunner("no-such-summarizer-tool-xyz", time.Second, zap.NewNop())
	if err := missing.CheckAvailable(context.Background()); !errors.Is(err, ErrToolNotFound) {
		t.Errorf("err = %v, want ErrToolNotFound", err)
	}
}
