// Package executor runs one rendered prompt against a host editor:
// insert, send with bounded retry, wait for the response to finish, and
// capture it.
package executor

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/meow-stack/promptchain/internal/config"
	chainerr "github.com/meow-stack/promptchain/internal/errors"
	"github.com/meow-stack/promptchain/internal/host"
)

// stopTimeout bounds the Stop call made after cancellation.
const stopTimeout = 5 * time.Second

// Options tunes the executor.
type Options struct {
	SendRetries     int           // Additional send attempts after the first
	SendRetryDelay  time.Duration // Wait before each retry
	ResponseTimeout time.Duration // Limit on the busy -> idle wait
}

// OptionsFromConfig builds Options from the executor config section.
func OptionsFromConfig(cfg config.ExecutorConfig) Options {
	return Options{
		SendRetries:     cfg.SendRetries,
		SendRetryDelay:  cfg.SendRetryDelay,
		ResponseTimeout: cfg.ResponseTimeout,
	}
}

// Executor executes single steps. It keeps no state between calls and may
// be shared by sequential runs.
type Executor struct {
	opts   Options
	logger *slog.Logger
}

// New creates an executor.
func New(opts Options, logger *slog.Logger) *Executor {
	if opts.SendRetries < 0 {
		opts.SendRetries = 0
	}
	return &Executor{
		opts:   opts,
		logger: logger.With("component", "executor"),
	}
}

// Execute drives one prompt through editor and returns the captured
// response text. Every error is a *errors.ChainError with one of the
// EXEC_* codes. Cancellation of ctx is reported as EXEC_005 carrying
// context.Cause(ctx), and takes precedence over any other outcome
// observed at the same time.
func (e *Executor) Execute(ctx context.Context, prompt string, editor host.Editor) (string, error) {
	if ctx.Err() != nil {
		return "", cancelled(ctx)
	}

	ok, err := editor.InsertText(ctx, prompt)
	if err != nil {
		if ctx.Err() != nil {
			return "", cancelled(ctx)
		}
		return "", chainerr.InsertionFailed(err)
	}
	if !ok {
		return "", chainerr.InsertionFailed(nil)
	}
	e.logger.Debug("prompt inserted", "chars", len(prompt))

	// Subscribe before sending: a short response can go busy and idle
	// before Send returns.
	w := newWatch()
	unsubscribe := editor.SubscribeStatus(w.observe)
	defer unsubscribe()

	if err := e.send(ctx, editor, w); err != nil {
		return "", err
	}
	if err := e.waitForResponse(ctx, editor, w); err != nil {
		return "", err
	}

	text, ok, err := editor.LatestResponseText(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return "", cancelled(ctx)
		}
		return "", chainerr.ResponseUnavailable(err)
	}
	if !ok || strings.TrimSpace(text) == "" {
		return "", chainerr.ResponseUnavailable(nil)
	}
	e.logger.Debug("response captured", "chars", len(text))
	return text, nil
}

// send makes up to 1+SendRetries attempts. Only transient reasons are
// retried; anything else fails on the spot.
func (e *Executor) send(ctx context.Context, editor host.Editor, w *watch) error {
	attempts := 1 + e.opts.SendRetries
	var last host.SendReason

	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			if err := sleep(ctx, e.opts.SendRetryDelay); err != nil {
				return cancelled(ctx)
			}
		}
		if ctx.Err() != nil {
			return cancelled(ctx)
		}

		w.arm()
		res, err := editor.Send(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return cancelled(ctx)
			}
			return chainerr.SendFailed(string(host.SendFailedToSendMessage), attempt).WithCause(err)
		}
		if res.Success {
			w.accepted()
			e.logger.Debug("prompt sent", "attempt", attempt)
			return nil
		}

		last = res.Reason
		if !last.Retryable() {
			return chainerr.SendFailed(string(last), attempt)
		}
		e.logger.Debug("send not accepted, will retry",
			"attempt", attempt,
			"max_attempts", attempts,
			"reason", last,
		)
	}
	return chainerr.SendFailed(string(last), attempts)
}

// waitForResponse blocks until w has seen the editor responding and then
// idle. The timeout runs from entry.
func (e *Executor) waitForResponse(ctx context.Context, editor host.Editor, w *watch) error {
	timer := time.NewTimer(e.opts.ResponseTimeout)
	defer timer.Stop()

	select {
	case <-ctx.Done():
	case <-w.notify:
		if ctx.Err() == nil {
			return nil
		}
	case <-timer.C:
		if ctx.Err() == nil {
			return chainerr.ResponseTimeout(e.opts.ResponseTimeout)
		}
	}

	e.stop(ctx, editor)
	return cancelled(ctx)
}

// stop interrupts the response on a cancelled run. Failures are logged only.
func (e *Executor) stop(ctx context.Context, editor host.Editor) {
	stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), stopTimeout)
	defer cancel()

	stopped, err := editor.Stop(stopCtx)
	if err != nil {
		e.logger.Warn("failed to stop response", "error", err)
		return
	}
	e.logger.Debug("response stopped", "stopped", stopped)
}

// watch tracks the busy -> idle transition of one send. Readings from
// before the send attempt belong to an earlier response and are ignored.
// observe may be called from any goroutine and never blocks.
type watch struct {
	mu      sync.Mutex
	armed   bool
	busy    bool
	sawBusy bool
	done    bool
	notify  chan struct{}
}

func newWatch() *watch {
	return &watch{notify: make(chan struct{}, 1)}
}

// arm starts counting readings for a new send attempt.
func (w *watch) arm() {
	w.mu.Lock()
	w.armed = true
	w.sawBusy = false
	w.done = false
	w.mu.Unlock()

	select {
	case <-w.notify:
	default:
	}
}

// accepted records that the send went through. An editor that is already
// responding by now is responding to it.
func (w *watch) accepted() {
	w.mu.Lock()
	if w.busy {
		w.sawBusy = true
	}
	w.mu.Unlock()
}

func (w *watch) observe(s host.Status) {
	w.mu.Lock()
	w.busy = s.IsResponding
	if !w.armed {
		w.mu.Unlock()
		return
	}
	if s.IsResponding {
		w.sawBusy = true
	} else if w.sawBusy {
		w.done = true
	}
	done := w.done
	w.mu.Unlock()

	if done {
		select {
		case w.notify <- struct{}{}:
		default:
		}
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func cancelled(ctx context.Context) error {
	return chainerr.Cancelled(context.Cause(ctx))
}
