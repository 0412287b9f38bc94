// Package tmux drives a terminal chat UI running in a tmux session.
package tmux

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"time"
)

// ErrSessionNotFound is returned when the target session does not exist.
var ErrSessionNotFound = errors.New("tmux session not found")

// pasteBufferPrefix names the tmux buffer prompts are loaded into, one per
// session.
const pasteBufferPrefix = "promptchain-"

// runFunc executes tmux with args, feeding it stdin when non-nil, and
// returns its combined output.
type runFunc func(ctx context.Context, stdin io.Reader, args ...string) ([]byte, error)

// Wrapper provides a low-level interface to the tmux commands the editor
// needs: session checks, key sending and pane capture.
type Wrapper struct {
	socketPath     string
	defaultTimeout time.Duration
	run            runFunc
}

// Option configures a Wrapper.
type Option func(*Wrapper)

// WithSocketPath targets a tmux server on a specific socket (-S).
func WithSocketPath(path string) Option {
	return func(w *Wrapper) { w.socketPath = path }
}

// WithTimeout sets the timeout used when the context has no deadline.
func WithTimeout(d time.Duration) Option {
	return func(w *Wrapper) { w.defaultTimeout = d }
}

func withRunner(run runFunc) Option {
	return func(w *Wrapper) { w.run = run }
}

// NewWrapper creates a tmux wrapper.
func NewWrapper(opts ...Option) *Wrapper {
	w := &Wrapper{
		defaultTimeout: 5 * time.Second,
		run:            execTmux,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

func execTmux(ctx context.Context, stdin io.Reader, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, "tmux", args...)
	cmd.Stdin = stdin
	return cmd.CombinedOutput()
}

func (w *Wrapper) buildArgs(args ...string) []string {
	if w.socketPath == "" {
		return args
	}
	return append([]string{"-S", w.socketPath}, args...)
}

func (w *Wrapper) exec(ctx context.Context, args ...string) ([]byte, error) {
	return w.execInput(ctx, nil, args...)
}

func (w *Wrapper) execInput(ctx context.Context, stdin io.Reader, args ...string) ([]byte, error) {
	ctx, cancel := w.ensureTimeout(ctx)
	defer cancel()
	return w.run(ctx, stdin, w.buildArgs(args...)...)
}

// SessionExists checks if a tmux session exists.
func (w *Wrapper) SessionExists(ctx context.Context, session string) bool {
	_, err := w.exec(ctx, "has-session", "-t", session)
	return err == nil
}

// PasteText puts text into the session's active pane as a bracketed paste,
// so newlines in it do not submit the input. The buffer is deleted after
// pasting.
func (w *Wrapper) PasteText(ctx context.Context, session, text string) error {
	if session == "" {
		return fmt.Errorf("session name is required")
	}
	if text == "" {
		return nil
	}
	buffer := pasteBufferPrefix + session
	output, err := w.execInput(ctx, strings.NewReader(text), "load-buffer", "-b", buffer, "-")
	if err != nil {
		return commandError("load-buffer", err, output)
	}
	output, err = w.exec(ctx, "paste-buffer", "-p", "-d", "-b", buffer, "-t", session)
	if err != nil {
		return commandError("paste-buffer", err, output)
	}
	return nil
}

// SendKey sends a single named key (Enter, Escape, C-c, C-u).
func (w *Wrapper) SendKey(ctx context.Context, session, key string) error {
	if session == "" {
		return fmt.Errorf("session name is required")
	}
	output, err := w.exec(ctx, "send-keys", "-t", session, key)
	if err != nil {
		return commandError("send-keys", err, output)
	}
	return nil
}

// CapturePane returns the pane content including the last history lines
// of scrollback. Wrapped lines are joined.
func (w *Wrapper) CapturePane(ctx context.Context, session string, history int) (string, error) {
	if session == "" {
		return "", fmt.Errorf("session name is required")
	}
	args := []string{"capture-pane", "-t", session, "-p", "-J"}
	if history > 0 {
		args = append(args, "-S", fmt.Sprintf("-%d", history))
	}
	output, err := w.exec(ctx, args...)
	if err != nil {
		return "", commandError("capture-pane", err, output)
	}
	return string(output), nil
}

func commandError(op string, err error, output []byte) error {
	out := strings.TrimSpace(string(output))
	if strings.Contains(out, "can't find session") || strings.Contains(out, "session not found") ||
		strings.Contains(out, "no server running") {
		return fmt.Errorf("%s: %w: %s", op, ErrSessionNotFound, out)
	}
	return fmt.Errorf("%s: %w: %s", op, err, out)
}

// ensureTimeout bounds ctx with the default timeout if it has no deadline.
func (w *Wrapper) ensureTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); !ok {
		return context.WithTimeout(ctx, w.defaultTimeout)
	}
	return ctx, func() {}
}
