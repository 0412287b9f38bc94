package testutil

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/meow-stack/promptchain/internal/host"
)

func waitIdle(t *testing.T, f *FakeEditor) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for f.Current().IsResponding {
		if time.Now().After(deadline) {
			t.Fatal("editor never became idle")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestFakeEditor_AutoRespond(t *testing.T) {
	f := NewFakeEditor()
	ctx := context.Background()

	var (
		mu   sync.Mutex
		seen []bool
	)
	unsubscribe := f.SubscribeStatus(func(s host.Status) {
		mu.Lock()
		seen = append(seen, s.IsResponding)
		mu.Unlock()
	})
	defer unsubscribe()

	if ok, err := f.InsertText(ctx, "hello"); !ok || err != nil {
		t.Fatalf("InsertText = %v, %v", ok, err)
	}
	res, err := f.Send(ctx)
	if err != nil || !res.Success {
		t.Fatalf("Send = %+v, %v", res, err)
	}
	waitIdle(t, f)

	text, ok, err := f.LatestResponseText(ctx)
	if err != nil || !ok || text != "out:hello" {
		t.Errorf("LatestResponseText = %q, %v, %v", text, ok, err)
	}
	if got := f.Sent(); len(got) != 1 || got[0] != "hello" {
		t.Errorf("Sent = %v", got)
	}
	// Current updates before subscribers run, so the final callback may lag.
	deadline := time.Now().Add(time.Second)
	for {
		mu.Lock()
		got := append([]bool(nil), seen...)
		mu.Unlock()
		if len(got) == 3 {
			if got[0] || !got[1] || got[2] {
				t.Errorf("status sequence = %v, want [false true false]", got)
			}
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("status sequence = %v, want 3 entries", got)
		}
		time.Sleep(time.Millisecond)
	}
}

func TestFakeEditor_SendFunc(t *testing.T) {
	f := NewFakeEditor()
	f.AutoRespond = false
	f.SendFunc = func(attempt int) (host.SendResult, error) {
		if attempt == 1 {
			return host.SendResult{Reason: host.SendModelIsResponding}, nil
		}
		return host.Sent, nil
	}
	ctx := context.Background()

	if res, _ := f.Send(ctx); res.Success {
		t.Error("first attempt should be rejected")
	}
	if res, _ := f.Send(ctx); !res.Success {
		t.Error("second attempt should be accepted")
	}
	if f.SendCalls() != 2 || len(f.Sent()) != 1 {
		t.Errorf("SendCalls = %d, Sent = %v", f.SendCalls(), f.Sent())
	}
}

func TestFakeEditor_StopCancelsResponse(t *testing.T) {
	f := NewFakeEditor()
	f.ResponseDelay = 50 * time.Millisecond
	ctx := context.Background()

	f.InsertText(ctx, "long")
	f.Send(ctx)
	wasBusy, err := f.Stop(ctx)
	if err != nil || !wasBusy {
		t.Fatalf("Stop = %v, %v", wasBusy, err)
	}
	time.Sleep(100 * time.Millisecond)

	if _, ok, _ := f.LatestResponseText(ctx); ok {
		t.Error("stopped response should never complete")
	}
	if f.StopCalls() != 1 {
		t.Errorf("StopCalls = %d", f.StopCalls())
	}
}

func TestFakeEditor_Errors(t *testing.T) {
	f := NewFakeEditor()
	boom := errors.New("boom")
	f.InsertErr = boom
	f.ResponseErr = boom
	ctx := context.Background()

	if ok, err := f.InsertText(ctx, "x"); ok || !errors.Is(err, boom) {
		t.Errorf("InsertText = %v, %v", ok, err)
	}
	if _, _, err := f.LatestResponseText(ctx); !errors.Is(err, boom) {
		t.Errorf("LatestResponseText err = %v", err)
	}
	if got := f.Inserted(); len(got) != 1 {
		t.Errorf("Inserted = %v", got)
	}
}

func TestTestLogger(t *testing.T) {
	logs := NewTestLogger(t)
	logger := logs.Logger.With("component", "runner").WithGroup("step")

	logger.Debug("step started", "index", 2)
	logs.Logger.Warn("slow response")

	if logs.CountLevel(slog.LevelDebug) != 1 || logs.CountLevel(slog.LevelWarn) != 1 {
		t.Errorf("entries = %+v", logs.Entries())
	}
	logs.AssertContains(t, "step started")
	logs.AssertAttrValue(t, "step started", "step.index", int64(2))
	logs.AssertAttrValue(t, "step started", "component", "runner")
	logs.AssertNoErrors(t)

	if got := logs.EntriesContaining("missing"); len(got) != 0 {
		t.Errorf("EntriesContaining = %+v", got)
	}
}
