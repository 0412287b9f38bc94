package trigger

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/meow-stack/promptchain/internal/logging"
	"github.com/meow-stack/promptchain/internal/types"
)

type fakeAborter struct {
	mu      sync.Mutex
	running bool
	reasons []types.AbortReason
}

func (a *fakeAborter) IsRunning() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.running
}

func (a *fakeAborter) Abort(reason types.AbortReason) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.reasons = append(a.reasons, reason)
	return a.running
}

func (a *fakeAborter) aborts() []types.AbortReason {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]types.AbortReason(nil), a.reasons...)
}

func TestWatch_AbortsOnlyWhileRunning(t *testing.T) {
	feed := NewFeed()
	aborter := &fakeAborter{}
	done := make(chan struct{})
	go func() {
		Watch(context.Background(), feed.Events(), aborter, logging.NewForTest())
		close(done)
	}()

	feed.Notify(Event{Kind: EventNavigation, URL: "https://chat.example/new"})

	aborter.mu.Lock()
	aborter.running = true
	aborter.mu.Unlock()
	feed.Notify(Event{Kind: EventContextChanged})

	feed.Close()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Watch did not return after the feed closed")
	}

	// The first event may have been processed after running flipped; the
	// second one always aborts.
	got := aborter.aborts()
	if len(got) == 0 {
		t.Fatal("expected an abort")
	}
	for _, r := range got {
		if r != types.AbortNavigation {
			t.Errorf("reason = %s, want navigation", r)
		}
	}
}

func TestWatch_IgnoresEventsWithoutRun(t *testing.T) {
	feed := NewFeed()
	aborter := &fakeAborter{}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		Watch(ctx, feed.Events(), aborter, logging.NewForTest())
		close(done)
	}()

	feed.Notify(Event{Kind: EventNavigation})
	time.Sleep(20 * time.Millisecond)
	cancel()
	<-done

	if got := aborter.aborts(); len(got) != 0 {
		t.Errorf("aborts = %v, want none", got)
	}
}

func TestFeed_NotifyNeverBlocks(t *testing.T) {
	feed := NewFeed()
	queued := 0
	for i := 0; i < 100; i++ {
		if feed.Notify(Event{Kind: EventNavigation}) {
			queued++
		}
	}
	if queued != cap(feed.events) {
		t.Errorf("queued = %d, want %d", queued, cap(feed.events))
	}

	feed.Close()
	feed.Close()
	if feed.Notify(Event{Kind: EventNavigation}) {
		t.Error("Notify after Close should report false")
	}
}

func TestFeed_StampsTime(t *testing.T) {
	feed := NewFeed()
	feed.Notify(Event{Kind: EventNavigation})
	e := <-feed.Events()
	if e.At.IsZero() {
		t.Error("Notify should stamp At")
	}
}
