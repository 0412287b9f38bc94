// Package ipc provides the control channel of a running chain.
//
// The protocol uses newline-delimited JSON over a Unix domain socket. Each
// message is a single JSON object on one line; every request gets exactly
// one response.
package ipc

import (
	"encoding/json"
	"fmt"

	"github.com/meow-stack/promptchain/internal/types"
)

// MessageType identifies the IPC message kind.
type MessageType string

const (
	// Request types (client → run)
	MsgAbort    MessageType = "abort"
	MsgNavigate MessageType = "navigate"
	MsgGetState MessageType = "get_state"

	// Response types (run → client)
	MsgAck   MessageType = "ack"
	MsgError MessageType = "error"
	MsgState MessageType = "state"
)

// Valid returns true if this is a recognized message type.
func (t MessageType) Valid() bool {
	return t.IsRequest() || t.IsResponse()
}

// IsRequest returns true if this message type is sent by a client.
func (t MessageType) IsRequest() bool {
	switch t {
	case MsgAbort, MsgNavigate, MsgGetState:
		return true
	}
	return false
}

// IsResponse returns true if this message type is sent by the run.
func (t MessageType) IsResponse() bool {
	switch t {
	case MsgAck, MsgError, MsgState:
		return true
	}
	return false
}

// --- Request Messages ---

// AbortMessage asks the run to stop.
// Sent by: chain abort
type AbortMessage struct {
	Type   MessageType       `json:"type"` // Always "abort"
	Reason types.AbortReason `json:"reason,omitempty"`
}

// NavigateMessage reports that the host page navigated away.
// Sent by: chain abort --navigation, or a page watcher
type NavigateMessage struct {
	Type MessageType `json:"type"` // Always "navigate"
	URL  string      `json:"url,omitempty"`
}

// GetStateMessage requests the current run state.
// Sent by: chain state
type GetStateMessage struct {
	Type MessageType `json:"type"` // Always "get_state"
}

// --- Response Messages ---

// AckMessage confirms an operation. Success is false when there was
// nothing to act on.
type AckMessage struct {
	Type    MessageType `json:"type"` // Always "ack"
	Success bool        `json:"success"`
}

// ErrorMessage reports an error to the client.
type ErrorMessage struct {
	Type    MessageType `json:"type"` // Always "error"
	Message string      `json:"message"`
}

// StateMessage carries a run state snapshot.
type StateMessage struct {
	Type  MessageType    `json:"type"` // Always "state"
	State types.RunState `json:"state"`
}

// --- Message Interface ---

// Message is the interface implemented by all IPC messages.
type Message interface {
	MessageType() MessageType
}

func (m *AbortMessage) MessageType() MessageType    { return MsgAbort }
func (m *NavigateMessage) MessageType() MessageType { return MsgNavigate }
func (m *GetStateMessage) MessageType() MessageType { return MsgGetState }
func (m *AckMessage) MessageType() MessageType      { return MsgAck }
func (m *ErrorMessage) MessageType() MessageType    { return MsgError }
func (m *StateMessage) MessageType() MessageType    { return MsgState }

// rawMessage is used for initial parsing to determine message type.
type rawMessage struct {
	Type MessageType `json:"type"`
}

// ParseMessage parses a JSON message and returns the appropriate typed message.
func ParseMessage(data []byte) (Message, error) {
	var raw rawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}

	var msg Message
	switch raw.Type {
	case MsgAbort:
		msg = &AbortMessage{}
	case MsgNavigate:
		msg = &NavigateMessage{}
	case MsgGetState:
		msg = &GetStateMessage{}
	case MsgAck:
		msg = &AckMessage{}
	case MsgError:
		msg = &ErrorMessage{}
	case MsgState:
		msg = &StateMessage{}
	default:
		return nil, fmt.Errorf("unknown message type: %q", raw.Type)
	}

	if err := json.Unmarshal(data, msg); err != nil {
		return nil, fmt.Errorf("failed to parse %s message: %w", raw.Type, err)
	}
	return msg, nil
}

// Marshal serializes a message to JSON as a single line.
func Marshal(msg any) ([]byte, error) {
	return json.Marshal(msg)
}
