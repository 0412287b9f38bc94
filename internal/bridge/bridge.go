package bridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/meow-stack/promptchain/internal/config"
	chainerr "github.com/meow-stack/promptchain/internal/errors"
	"github.com/meow-stack/promptchain/internal/host"
	"github.com/meow-stack/promptchain/internal/trigger"
)

const writeWait = 5 * time.Second

// Notifier receives page events that invalidate a run.
type Notifier interface {
	Notify(e trigger.Event) bool
}

// Editor is a host editor whose operations are performed by the page on
// the other end of a websocket. One page is connected at a time; a new
// connection replaces the old one.
type Editor struct {
	host.Broadcaster

	upgrader websocket.Upgrader
	timeout  time.Duration
	events   Notifier
	logger   *slog.Logger

	mu      sync.Mutex
	conn    *websocket.Conn
	pending map[string]pendingRequest

	writeMu sync.Mutex
}

var (
	_ host.Editor  = (*Editor)(nil)
	_ http.Handler = (*Editor)(nil)
)

// pendingRequest is a request waiting for the page's reply. It belongs to
// the connection it was written to and fails when that connection goes.
type pendingRequest struct {
	conn  *websocket.Conn
	reply chan Message
}

// New creates a bridge editor. Requests to the page fail with a timeout
// error after cfg.RequestTimeout. Only pages whose origin is listed in
// cfg.AllowedOrigins may connect. events may be nil.
func New(cfg config.BridgeConfig, events Notifier, logger *slog.Logger) *Editor {
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Editor{
		upgrader: websocket.Upgrader{
			CheckOrigin:     OriginChecker(cfg.AllowedOrigins),
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
		timeout: timeout,
		events:  events,
		logger:  logger.With("component", "bridge"),
		pending: make(map[string]pendingRequest),
	}
}

// Connected reports whether a page is connected.
func (e *Editor) Connected() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.conn != nil
}

// ServeHTTP upgrades the request to a websocket and serves the page until
// it disconnects.
func (e *Editor) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := e.upgrader.Upgrade(w, r, nil)
	if err != nil {
		e.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	e.mu.Lock()
	old := e.conn
	e.conn = conn
	e.mu.Unlock()
	if old != nil {
		e.logger.Info("replacing bridge connection")
		old.Close()
		e.failPending(old)
	}
	e.logger.Info("bridge connected", "remote", r.RemoteAddr, "origin", r.Header.Get("Origin"))

	e.readLoop(conn)
}

func (e *Editor) readLoop(conn *websocket.Conn) {
	defer e.disconnect(conn)

	for {
		var msg Message
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				e.logger.Warn("bridge read failed", "error", err)
			}
			return
		}
		e.handleMessage(conn, msg)
	}
}

func (e *Editor) handleMessage(conn *websocket.Conn, msg Message) {
	switch msg.Type {
	case TypeReply:
		e.mu.Lock()
		p, ok := e.pending[msg.ID]
		if ok && p.conn == conn {
			delete(e.pending, msg.ID)
		}
		e.mu.Unlock()
		if !ok || p.conn != conn {
			e.logger.Debug("reply for unknown request", "id", msg.ID)
			return
		}
		p.reply <- msg
	case TypeStatus:
		e.Publish(host.Status{IsResponding: msg.IsResponding})
	case TypeNavigation, TypeContextChanged:
		kind := trigger.EventNavigation
		if msg.Type == TypeContextChanged {
			kind = trigger.EventContextChanged
		}
		e.logger.Info("page event", "type", msg.Type, "url", msg.URL)
		if e.events != nil {
			e.events.Notify(trigger.Event{Kind: kind, URL: msg.URL})
		}
	default:
		e.logger.Debug("unknown message type", "type", msg.Type)
	}
}

// disconnect fails conn's pending requests and drops conn if it is still
// current.
func (e *Editor) disconnect(conn *websocket.Conn) {
	conn.Close()
	e.failPending(conn)

	e.mu.Lock()
	current := e.conn == conn
	if current {
		e.conn = nil
	}
	e.mu.Unlock()
	if !current {
		return
	}
	e.Publish(host.Status{})
	e.logger.Info("bridge disconnected")
}

// failPending fails every request written to conn that is still waiting.
func (e *Editor) failPending(conn *websocket.Conn) {
	e.mu.Lock()
	var failed []chan Message
	for id, p := range e.pending {
		if p.conn == conn {
			failed = append(failed, p.reply)
			delete(e.pending, id)
		}
	}
	e.mu.Unlock()

	for _, ch := range failed {
		close(ch)
	}
}

// Close disconnects the page.
func (e *Editor) Close() error {
	e.mu.Lock()
	conn := e.conn
	e.mu.Unlock()
	if conn != nil {
		e.writeMu.Lock()
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
		e.writeMu.Unlock()
		e.disconnect(conn)
	}
	return nil
}

// request sends op to the page and waits for its reply.
func (e *Editor) request(ctx context.Context, op, text string) (Message, error) {
	req := Request{ID: uuid.NewString(), Op: op, Text: text}
	ch := make(chan Message, 1)

	e.mu.Lock()
	conn := e.conn
	if conn == nil {
		e.mu.Unlock()
		return Message{}, chainerr.BridgeNotConnected()
	}
	e.pending[req.ID] = pendingRequest{conn: conn, reply: ch}
	e.mu.Unlock()

	forget := func() {
		e.mu.Lock()
		delete(e.pending, req.ID)
		e.mu.Unlock()
	}

	e.writeMu.Lock()
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	err := conn.WriteJSON(req)
	e.writeMu.Unlock()
	if err != nil {
		forget()
		return Message{}, chainerr.BridgeNotConnected().WithCause(err)
	}

	timer := time.NewTimer(e.timeout)
	defer timer.Stop()

	select {
	case msg, ok := <-ch:
		if !ok {
			return Message{}, chainerr.BridgeNotConnected()
		}
		if msg.Error != "" {
			return msg, fmt.Errorf("bridge %s: %s", op, msg.Error)
		}
		return msg, nil
	case <-timer.C:
		forget()
		return Message{}, chainerr.BridgeTimeout(op)
	case <-ctx.Done():
		forget()
		return Message{}, ctx.Err()
	}
}

// InsertText implements host.Editor.
func (e *Editor) InsertText(ctx context.Context, text string) (bool, error) {
	msg, err := e.request(ctx, OpInsert, text)
	if err != nil {
		return false, err
	}
	return msg.OK, nil
}

// Send implements host.Editor.
func (e *Editor) Send(ctx context.Context) (host.SendResult, error) {
	msg, err := e.request(ctx, OpSend, "")
	if err != nil {
		return host.SendResult{}, err
	}
	if msg.OK {
		return host.Sent, nil
	}
	reason := host.SendReason(msg.Reason)
	if reason == "" || reason == host.SendSuccess {
		reason = host.SendFailedToSendMessage
	}
	return host.SendResult{Reason: reason}, nil
}

// Stop implements host.Editor.
func (e *Editor) Stop(ctx context.Context) (bool, error) {
	msg, err := e.request(ctx, OpStop, "")
	if err != nil {
		return false, err
	}
	return msg.OK, nil
}

// LatestResponseText implements host.Editor.
func (e *Editor) LatestResponseText(ctx context.Context) (string, bool, error) {
	msg, err := e.request(ctx, OpLatestResponse, "")
	if err != nil {
		return "", false, err
	}
	return msg.Text, msg.HasText, nil
}

// WaitConnected blocks until a page connects or ctx is done.
func (e *Editor) WaitConnected(ctx context.Context) error {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for !e.Connected() {
		select {
		case <-ctx.Done():
			return errors.Join(chainerr.BridgeNotConnected(), ctx.Err())
		case <-ticker.C:
		}
	}
	return nil
}
