// Package sim provides an in-memory host editor whose model behavior is
// scripted by pattern-matched rules.
package sim

import (
	"context"
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/meow-stack/promptchain/internal/host"
)

// Editor is a simulated chat surface.
type Editor struct {
	host.Broadcaster

	config Config
	logger *slog.Logger

	mu        sync.Mutex
	input     string
	sent      []string
	responses []string
	pending   *time.Timer
	failures  map[string]int // Send failures served per prompt
	regexes   map[string]*regexp.Regexp
}

var _ host.Editor = (*Editor)(nil)

// New creates a simulated editor.
func New(config Config, logger *slog.Logger) *Editor {
	return &Editor{
		config:   config,
		logger:   logger.With("component", "sim"),
		failures: make(map[string]int),
		regexes:  make(map[string]*regexp.Regexp),
	}
}

// InsertText implements host.Editor.
func (e *Editor) InsertText(_ context.Context, text string) (bool, error) {
	if e.config.NoInput {
		return false, nil
	}
	e.mu.Lock()
	e.input = text
	e.mu.Unlock()
	return true, nil
}

// Send implements host.Editor.
func (e *Editor) Send(_ context.Context) (host.SendResult, error) {
	if e.Current().IsResponding {
		return host.SendResult{Reason: host.SendModelIsResponding}, nil
	}

	e.mu.Lock()
	prompt := e.input
	b := e.matchBehavior(prompt)
	action := b.Action

	if action.Type == ActionFailSend {
		e.mu.Unlock()
		return host.SendResult{Reason: sendReason(action, host.SendButtonNotFound)}, nil
	}
	if e.failures[prompt] < action.SendFailures {
		e.failures[prompt]++
		e.mu.Unlock()
		return host.SendResult{Reason: sendReason(action, host.SendButtonNotInReadyState)}, nil
	}
	delete(e.failures, prompt)

	e.input = ""
	e.sent = append(e.sent, prompt)
	delay := action.Delay
	if delay == 0 {
		delay = e.config.Timing.ResponseDelay
	}
	e.mu.Unlock()

	e.logger.Debug("prompt sent", "action", action.Type, "delay", delay)
	e.Publish(host.Status{IsResponding: true})

	// Scheduled after the busy publish so a zero delay cannot finish first.
	if action.Type != ActionHang {
		e.mu.Lock()
		e.pending = time.AfterFunc(delay, func() { e.finish(prompt, action) })
		e.mu.Unlock()
	}
	return host.Sent, nil
}

func sendReason(a Action, fallback host.SendReason) host.SendReason {
	if a.SendReason != "" {
		return host.SendReason(a.SendReason)
	}
	return fallback
}

func (e *Editor) finish(prompt string, action Action) {
	e.mu.Lock()
	e.pending = nil
	switch action.Type {
	case ActionSilent:
	case ActionEcho:
		e.responses = append(e.responses, prompt)
	default:
		resp := action.Response
		if resp == "" {
			resp = "Response to: " + prompt
		}
		e.responses = append(e.responses, resp)
	}
	e.mu.Unlock()

	e.Publish(host.Status{IsResponding: false})
}

// Stop implements host.Editor.
func (e *Editor) Stop(_ context.Context) (bool, error) {
	if !e.Current().IsResponding {
		return false, nil
	}
	e.mu.Lock()
	if e.pending != nil {
		e.pending.Stop()
		e.pending = nil
	}
	e.mu.Unlock()

	e.logger.Debug("response stopped")
	e.Publish(host.Status{IsResponding: false})
	return true, nil
}

// LatestResponseText implements host.Editor.
func (e *Editor) LatestResponseText(_ context.Context) (string, bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.responses) == 0 {
		return "", false, nil
	}
	return e.responses[len(e.responses)-1], true, nil
}

// Sent returns every prompt the simulator accepted, in order.
func (e *Editor) Sent() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.sent...)
}

// Close cancels any scheduled response.
func (e *Editor) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.pending != nil {
		e.pending.Stop()
		e.pending = nil
	}
	return nil
}

// matchBehavior returns the first behavior matching prompt, or the
// default. Caller holds e.mu.
func (e *Editor) matchBehavior(prompt string) Behavior {
	for _, b := range e.config.Behaviors {
		if e.matches(b, prompt) {
			return b
		}
	}
	return e.config.Default
}

func (e *Editor) matches(b Behavior, prompt string) bool {
	if b.Type != "regex" {
		return strings.Contains(prompt, b.Match)
	}
	re, ok := e.regexes[b.Match]
	if !ok {
		var err error
		re, err = regexp.Compile(b.Match)
		if err != nil {
			e.logger.Warn("invalid behavior regex", "pattern", b.Match, "error", err)
			return false
		}
		e.regexes[b.Match] = re
	}
	return re.MatchString(prompt)
}
