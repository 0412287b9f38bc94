// Package trigger turns host page events into run aborts.
package trigger

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/meow-stack/promptchain/internal/types"
)

// EventKind is the kind of page event.
type EventKind string

const (
	EventNavigation     EventKind = "navigation"      // The page navigated to another URL
	EventContextChanged EventKind = "context_changed" // The chat context was replaced
)

// Event is a page event that invalidates an in-progress run.
type Event struct {
	Kind EventKind `json:"kind"`
	URL  string    `json:"url,omitempty"`
	At   time.Time `json:"at"`
}

// Aborter is the part of the run coordinator a trigger needs.
type Aborter interface {
	IsRunning() bool
	Abort(reason types.AbortReason) bool
}

// Feed is a buffered event source. Notify never blocks; events that do
// not fit in the buffer are dropped, since one pending event is enough
// to abort a run.
type Feed struct {
	events chan Event
	mu     sync.Mutex
	closed bool
}

// NewFeed creates a feed.
func NewFeed() *Feed {
	return &Feed{events: make(chan Event, 16)}
}

// Notify publishes e. It reports whether the event was queued.
func (f *Feed) Notify(e Event) bool {
	if e.At.IsZero() {
		e.At = time.Now()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return false
	}
	select {
	case f.events <- e:
		return true
	default:
		return false
	}
}

// Events returns the receive side of the feed.
func (f *Feed) Events() <-chan Event {
	return f.events
}

// Close stops the feed. Watchers see the channel close.
func (f *Feed) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.closed {
		f.closed = true
		close(f.events)
	}
}

// Watch aborts the active run with the navigation reason for every event
// received while a run is in progress. It returns when ctx is done or
// events is closed.
func Watch(ctx context.Context, events <-chan Event, aborter Aborter, logger *slog.Logger) {
	logger = logger.With("component", "trigger")
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			if !aborter.IsRunning() {
				logger.Debug("ignoring page event, no active run", "kind", e.Kind, "url", e.URL)
				continue
			}
			if aborter.Abort(types.AbortNavigation) {
				logger.Info("run aborted by page event", "kind", e.Kind, "url", e.URL)
			}
		}
	}
}
