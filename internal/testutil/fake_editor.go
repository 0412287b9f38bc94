package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/meow-stack/promptchain/internal/host"
)

// FakeEditor is a scriptable host.Editor for tests. It records every call
// and, with AutoRespond set, plays a busy -> idle cycle after each accepted
// send.
type FakeEditor struct {
	host.Broadcaster

	mu sync.Mutex

	// InsertOK is returned by InsertText when InsertErr is nil.
	InsertOK  bool
	InsertErr error

	// SendFunc decides each send attempt (1-based). Nil accepts every send.
	SendFunc func(attempt int) (host.SendResult, error)

	// AutoRespond answers accepted sends after ResponseDelay using Respond.
	AutoRespond   bool
	ResponseDelay time.Duration
	Respond       func(prompt string) (string, bool)

	// ResponseErr is returned by LatestResponseText.
	ResponseErr error

	input      string
	inserted   []string
	sent       []string
	sendCalls  int
	stopCalls  int
	response   string
	hasResp    bool
	generation int
}

var _ host.Editor = (*FakeEditor)(nil)

// NewFakeEditor returns an editor that accepts every prompt and answers
// "out:<prompt>" almost immediately.
func NewFakeEditor() *FakeEditor {
	return &FakeEditor{
		InsertOK:      true,
		AutoRespond:   true,
		ResponseDelay: time.Millisecond,
		Respond: func(prompt string) (string, bool) {
			return "out:" + prompt, true
		},
	}
}

// InsertText implements host.Editor.
func (f *FakeEditor) InsertText(_ context.Context, text string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inserted = append(f.inserted, text)
	if f.InsertErr != nil {
		return false, f.InsertErr
	}
	if f.InsertOK {
		f.input = text
	}
	return f.InsertOK, nil
}

// Send implements host.Editor.
func (f *FakeEditor) Send(_ context.Context) (host.SendResult, error) {
	f.mu.Lock()
	f.sendCalls++
	attempt := f.sendCalls
	sendFunc := f.SendFunc
	f.mu.Unlock()

	res, err := host.Sent, error(nil)
	if sendFunc != nil {
		res, err = sendFunc(attempt)
	}
	if err != nil || !res.Success {
		return res, err
	}

	f.mu.Lock()
	prompt := f.input
	f.sent = append(f.sent, prompt)
	f.generation++
	gen := f.generation
	auto, delay, respond := f.AutoRespond, f.ResponseDelay, f.Respond
	f.mu.Unlock()

	if auto {
		f.Publish(host.Status{IsResponding: true})
		go f.respond(gen, prompt, delay, respond)
	}
	return res, nil
}

func (f *FakeEditor) respond(gen int, prompt string, delay time.Duration, respond func(string) (string, bool)) {
	time.Sleep(delay)

	f.mu.Lock()
	if gen != f.generation {
		f.mu.Unlock()
		return
	}
	if respond != nil {
		f.response, f.hasResp = respond(prompt)
	}
	f.mu.Unlock()

	f.Publish(host.Status{IsResponding: false})
}

// Stop implements host.Editor. A stopped response never completes.
func (f *FakeEditor) Stop(_ context.Context) (bool, error) {
	f.mu.Lock()
	f.stopCalls++
	f.generation++
	f.mu.Unlock()

	wasBusy := f.Current().IsResponding
	f.Publish(host.Status{IsResponding: false})
	return wasBusy, nil
}

// LatestResponseText implements host.Editor.
func (f *FakeEditor) LatestResponseText(_ context.Context) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ResponseErr != nil {
		return "", false, f.ResponseErr
	}
	return f.response, f.hasResp, nil
}

// SetResponse sets the text LatestResponseText reports.
func (f *FakeEditor) SetResponse(text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.response, f.hasResp = text, true
}

// Inserted returns every text passed to InsertText.
func (f *FakeEditor) Inserted() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.inserted...)
}

// Sent returns the prompts of accepted sends.
func (f *FakeEditor) Sent() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sent...)
}

// SendCalls returns the number of Send calls, accepted or not.
func (f *FakeEditor) SendCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sendCalls
}

// StopCalls returns the number of Stop calls.
func (f *FakeEditor) StopCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stopCalls
}
