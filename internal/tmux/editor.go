package tmux

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/meow-stack/promptchain/internal/config"
	"github.com/meow-stack/promptchain/internal/host"
)

const (
	// Scrollback lines captured when looking for the latest response.
	responseHistory = 2000
	// Only the bottom of the pane is checked for the busy indicator.
	busyWindow = 8
)

// Editor is a host editor backed by a chat UI in a tmux pane. The UI is
// responding while its busy indicator is visible near the bottom of the
// pane.
type Editor struct {
	host.Broadcaster

	tmux     *Wrapper
	session  string
	busy     *regexp.Regexp
	interval time.Duration
	stopKey  string
	logger   *slog.Logger

	mu         sync.Mutex
	lastPrompt string
	cancel     context.CancelFunc
	done       chan struct{}
}

var _ host.Editor = (*Editor)(nil)

// New creates an editor for the session named in cfg.
func New(cfg config.TmuxConfig, logger *slog.Logger, opts ...Option) (*Editor, error) {
	if cfg.Session == "" {
		return nil, fmt.Errorf("tmux session name is required")
	}
	busy, err := regexp.Compile(cfg.BusyPattern)
	if err != nil {
		return nil, fmt.Errorf("compiling busy pattern: %w", err)
	}
	if cfg.Socket != "" {
		opts = append([]Option{WithSocketPath(cfg.Socket)}, opts...)
	}
	interval := cfg.PollInterval
	if interval <= 0 {
		interval = 250 * time.Millisecond
	}
	stopKey := cfg.StopKey
	if stopKey == "" {
		stopKey = "Escape"
	}
	return &Editor{
		tmux:     NewWrapper(opts...),
		session:  cfg.Session,
		busy:     busy,
		interval: interval,
		stopKey:  stopKey,
		logger:   logger.With("component", "tmux", "session", cfg.Session),
	}, nil
}

// Start begins polling the pane for the busy indicator. It returns an
// error if the session does not exist.
func (e *Editor) Start(ctx context.Context) error {
	if !e.tmux.SessionExists(ctx, e.session) {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, e.session)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cancel != nil {
		return nil
	}
	ctx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	e.done = make(chan struct{})
	e.refresh(ctx)
	go e.pollLoop(ctx, e.done)
	return nil
}

// Close stops polling.
func (e *Editor) Close() error {
	e.mu.Lock()
	cancel, done := e.cancel, e.done
	e.cancel, e.done = nil, nil
	e.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
	return nil
}

func (e *Editor) pollLoop(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.refresh(ctx)
		}
	}
}

// refresh captures the pane and publishes the responding state.
func (e *Editor) refresh(ctx context.Context) {
	pane, err := e.tmux.CapturePane(ctx, e.session, 0)
	if err != nil {
		if ctx.Err() == nil {
			e.logger.Debug("capture failed", "error", err)
		}
		return
	}
	e.Publish(host.Status{IsResponding: e.isBusy(pane)})
}

func (e *Editor) isBusy(pane string) bool {
	if e.busy.String() == "" {
		return false
	}
	lines := nonEmptyLines(pane)
	if len(lines) > busyWindow {
		lines = lines[len(lines)-busyWindow:]
	}
	for _, line := range lines {
		if e.busy.MatchString(line) {
			return true
		}
	}
	return false
}

// InsertText implements host.Editor. The input line is cleared with C-u
// before the text is typed.
func (e *Editor) InsertText(ctx context.Context, text string) (bool, error) {
	if !e.tmux.SessionExists(ctx, e.session) {
		return false, nil
	}
	if err := e.tmux.SendKey(ctx, e.session, "C-u"); err != nil {
		return false, err
	}
	if err := e.tmux.PasteText(ctx, e.session, text); err != nil {
		return false, err
	}

	e.mu.Lock()
	e.lastPrompt = text
	e.mu.Unlock()
	return true, nil
}

// Send implements host.Editor.
func (e *Editor) Send(ctx context.Context) (host.SendResult, error) {
	if !e.tmux.SessionExists(ctx, e.session) {
		return host.SendResult{Reason: host.SendButtonNotFound}, nil
	}
	pane, err := e.tmux.CapturePane(ctx, e.session, 0)
	if err != nil {
		return host.SendResult{}, err
	}
	if e.isBusy(pane) {
		return host.SendResult{Reason: host.SendModelIsResponding}, nil
	}
	if err := e.tmux.SendKey(ctx, e.session, "Enter"); err != nil {
		return host.SendResult{}, err
	}
	return host.Sent, nil
}

// Stop implements host.Editor.
func (e *Editor) Stop(ctx context.Context) (bool, error) {
	if !e.Current().IsResponding {
		return false, nil
	}
	if err := e.tmux.SendKey(ctx, e.session, e.stopKey); err != nil {
		return false, err
	}
	return true, nil
}

// LatestResponseText implements host.Editor. The response is the pane text
// below the last line of the most recently inserted prompt.
func (e *Editor) LatestResponseText(ctx context.Context) (string, bool, error) {
	pane, err := e.tmux.CapturePane(ctx, e.session, responseHistory)
	if err != nil {
		return "", false, err
	}
	e.mu.Lock()
	prompt := e.lastPrompt
	e.mu.Unlock()

	text := extractResponse(pane, prompt, e.busy)
	return text, text != "", nil
}

// inputGlyphs are lines a chat UI draws as its empty input prompt.
var inputGlyphs = map[string]bool{">": true, "❯": true, "›": true, "$": true}

func extractResponse(pane, prompt string, busy *regexp.Regexp) string {
	marker := lastLine(prompt)
	if marker == "" {
		return ""
	}

	lines := strings.Split(pane, "\n")
	start := -1
	for i := len(lines) - 1; i >= 0; i-- {
		if strings.Contains(lines[i], marker) {
			start = i + 1
			break
		}
	}
	if start < 0 {
		return ""
	}

	var out []string
	for _, line := range lines[start:] {
		if busy.String() != "" && busy.MatchString(line) {
			continue
		}
		out = append(out, strings.TrimRight(line, " \t"))
	}
	for len(out) > 0 {
		last := strings.TrimSpace(out[len(out)-1])
		if last != "" && !inputGlyphs[last] {
			break
		}
		out = out[:len(out)-1]
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}

func lastLine(s string) string {
	lines := nonEmptyLines(s)
	if len(lines) == 0 {
		return ""
	}
	return strings.TrimSpace(lines[len(lines)-1])
}

func nonEmptyLines(s string) []string {
	var lines []string
	for _, line := range strings.Split(s, "\n") {
		if strings.TrimSpace(line) != "" {
			lines = append(lines, line)
		}
	}
	return lines
}
