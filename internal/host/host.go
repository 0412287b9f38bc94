// Package host defines the chat surface the step executor drives.
package host

import (
	"context"
	"sync"
)

// SendReason is the outcome reported by Editor.Send.
type SendReason string

const (
	SendSuccess               SendReason = "success"
	SendModelIsResponding     SendReason = "model_is_responding"
	SendButtonNotFound        SendReason = "send_button_not_found"
	SendButtonNotInReadyState SendReason = "send_button_not_in_ready_state"
	SendFailedToSendMessage   SendReason = "failed_to_send_message"
)

// Retryable reports whether a send that failed for this reason may succeed
// if tried again shortly.
func (r SendReason) Retryable() bool {
	return r == SendModelIsResponding || r == SendButtonNotInReadyState
}

// SendResult is the result of one send attempt.
type SendResult struct {
	Success bool       `json:"success"`
	Reason  SendReason `json:"reason"`
}

// Sent is the successful SendResult.
var Sent = SendResult{Success: true, Reason: SendSuccess}

// Status is the model's responding state.
type Status struct {
	IsResponding bool `json:"is_responding"`
}

// Editor is the chat surface: an input box, a send control, a stop
// control and a transcript whose latest model response can be read.
type Editor interface {
	// InsertText replaces the input contents with text. It returns false
	// when no editable input surface exists.
	InsertText(ctx context.Context, text string) (bool, error)

	// Send submits the current input.
	Send(ctx context.Context) (SendResult, error)

	// Stop interrupts an in-progress response. It returns false when there
	// was nothing to stop.
	Stop(ctx context.Context) (bool, error)

	// SubscribeStatus registers fn for status changes. fn is called once
	// immediately with the current status and then on every change, from
	// any goroutine. The returned func unsubscribes.
	SubscribeStatus(fn func(Status)) (unsubscribe func())

	// LatestResponseText returns the text of the most recent model
	// response, if there is one.
	LatestResponseText(ctx context.Context) (string, bool, error)
}

// Broadcaster tracks the current Status and fans changes out to
// subscribers. Editors embed it to implement SubscribeStatus.
type Broadcaster struct {
	mu      sync.Mutex
	current Status
	nextID  int
	subs    map[int]func(Status)
}

// SubscribeStatus implements Editor.SubscribeStatus.
func (b *Broadcaster) SubscribeStatus(fn func(Status)) func() {
	b.mu.Lock()
	if b.subs == nil {
		b.subs = make(map[int]func(Status))
	}
	id := b.nextID
	b.nextID++
	b.subs[id] = fn
	current := b.current
	b.mu.Unlock()

	fn(current)

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
		})
	}
}

// Current returns the last published status.
func (b *Broadcaster) Current() Status {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.current
}

// Publish records s and notifies subscribers if it differs from the
// current status. Subscribers are called outside the lock.
func (b *Broadcaster) Publish(s Status) {
	b.mu.Lock()
	if s == b.current {
		b.mu.Unlock()
		return
	}
	b.current = s
	fns := make([]func(Status), 0, len(b.subs))
	for _, fn := range b.subs {
		fns = append(fns, fn)
	}
	b.mu.Unlock()

	for _, fn := range fns {
		fn(s)
	}
}

// Subscribers returns the number of active subscriptions.
func (b *Broadcaster) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
