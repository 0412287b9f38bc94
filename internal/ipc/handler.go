package ipc

import (
	"context"
	"fmt"

	"github.com/meow-stack/promptchain/internal/trigger"
	"github.com/meow-stack/promptchain/internal/types"
)

// Controller is the part of the run coordinator the control socket needs.
type Controller interface {
	Abort(reason types.AbortReason) bool
	IsRunning() bool
	State() types.RunState
}

// Notifier receives page events. trigger.Feed implements it.
type Notifier interface {
	Notify(e trigger.Event) bool
}

// RunHandler serves control requests for one coordinator. Navigation is
// routed through events so it takes the same path as page events; with no
// events sink it aborts directly.
type RunHandler struct {
	ctrl   Controller
	events Notifier
}

var _ Handler = (*RunHandler)(nil)

// NewRunHandler creates a handler for ctrl. events may be nil.
func NewRunHandler(ctrl Controller, events Notifier) *RunHandler {
	return &RunHandler{ctrl: ctrl, events: events}
}

// HandleAbort implements Handler.
func (h *RunHandler) HandleAbort(_ context.Context, msg *AbortMessage) any {
	reason := msg.Reason
	if reason == "" {
		reason = types.AbortUser
	}
	if !reason.Valid() {
		return &ErrorMessage{Type: MsgError, Message: fmt.Sprintf("invalid abort reason %q", msg.Reason)}
	}
	return &AckMessage{Type: MsgAck, Success: h.ctrl.Abort(reason)}
}

// HandleNavigate implements Handler.
func (h *RunHandler) HandleNavigate(_ context.Context, msg *NavigateMessage) any {
	running := h.ctrl.IsRunning()
	if h.events != nil {
		h.events.Notify(trigger.Event{Kind: trigger.EventNavigation, URL: msg.URL})
		return &AckMessage{Type: MsgAck, Success: running}
	}
	return &AckMessage{Type: MsgAck, Success: h.ctrl.Abort(types.AbortNavigation)}
}

// HandleGetState implements Handler.
func (h *RunHandler) HandleGetState(_ context.Context, _ *GetStateMessage) any {
	return &StateMessage{Type: MsgState, State: h.ctrl.State()}
}
