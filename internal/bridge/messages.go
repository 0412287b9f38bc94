// Package bridge implements a host editor driven over a websocket by a
// browser extension running inside the chat page.
package bridge

// Operations the engine asks the page to perform.
const (
	OpInsert         = "insert"
	OpSend           = "send"
	OpStop           = "stop"
	OpLatestResponse = "latest_response"
)

// Message types the page sends.
const (
	TypeReply          = "reply"
	TypeStatus         = "status"
	TypeNavigation     = "navigation"
	TypeContextChanged = "context_changed"
)

// Request is sent from the engine to the page.
type Request struct {
	ID   string `json:"id"`
	Op   string `json:"op"`
	Text string `json:"text,omitempty"`
}

// Message is sent from the page to the engine. Replies carry the ID of
// the request they answer; status and navigation messages are unsolicited.
type Message struct {
	ID   string `json:"id,omitempty"`
	Type string `json:"type"`

	// Reply fields
	OK      bool   `json:"ok,omitempty"`
	Reason  string `json:"reason,omitempty"`
	Text    string `json:"text,omitempty"`
	HasText bool   `json:"has_text,omitempty"`
	Error   string `json:"error,omitempty"`

	// Status fields
	IsResponding bool `json:"is_responding,omitempty"`

	// Navigation fields
	URL string `json:"url,omitempty"`
}
