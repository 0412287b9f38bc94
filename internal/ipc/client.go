package ipc

import (
	"bufio"
	"errors"
	"fmt"
	"net"
	"syscall"
	"time"

	"github.com/meow-stack/promptchain/internal/types"
)

// ErrNoRun is returned when no run is listening on the socket.
var ErrNoRun = errors.New("no chain run is active")

// Client connects to a running chain's control socket.
type Client struct {
	socketPath string
	timeout    time.Duration
}

// NewClient creates a client for socketPath.
func NewClient(socketPath string) *Client {
	return &Client{
		socketPath: socketPath,
		timeout:    5 * time.Second,
	}
}

// SetTimeout sets the connection and read/write timeout.
func (c *Client) SetTimeout(timeout time.Duration) {
	c.timeout = timeout
}

// Send sends a message and waits for the response.
func (c *Client) Send(msg any) (Message, error) {
	conn, err := net.DialTimeout("unix", c.socketPath, c.timeout)
	if err != nil {
		if errors.Is(err, syscall.ENOENT) || errors.Is(err, syscall.ECONNREFUSED) {
			return nil, ErrNoRun
		}
		return nil, fmt.Errorf("failed to connect to IPC socket %s: %w", c.socketPath, err)
	}
	defer conn.Close()

	if err := conn.SetDeadline(time.Now().Add(c.timeout)); err != nil {
		return nil, fmt.Errorf("failed to set deadline: %w", err)
	}

	data, err := Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal message: %w", err)
	}
	if _, err := conn.Write(append(data, '\n')); err != nil {
		return nil, fmt.Errorf("failed to send message: %w", err)
	}

	line, err := bufio.NewReader(conn).ReadBytes('\n')
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	response, err := ParseMessage(line)
	if err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if e, ok := response.(*ErrorMessage); ok {
		return nil, fmt.Errorf("server error: %s", e.Message)
	}
	return response, nil
}

// Abort asks the run to stop. It reports whether a run was in progress.
func (c *Client) Abort(reason types.AbortReason) (bool, error) {
	return c.ack(&AbortMessage{Type: MsgAbort, Reason: reason})
}

// Navigate reports a host page navigation to the run.
func (c *Client) Navigate(url string) (bool, error) {
	return c.ack(&NavigateMessage{Type: MsgNavigate, URL: url})
}

// State returns the run's current state.
func (c *Client) State() (types.RunState, error) {
	response, err := c.Send(&GetStateMessage{Type: MsgGetState})
	if err != nil {
		return types.RunState{}, err
	}
	r, ok := response.(*StateMessage)
	if !ok {
		return types.RunState{}, fmt.Errorf("unexpected response type: %s", response.MessageType())
	}
	return r.State, nil
}

func (c *Client) ack(msg any) (bool, error) {
	response, err := c.Send(msg)
	if err != nil {
		return false, err
	}
	r, ok := response.(*AckMessage)
	if !ok {
		return false, fmt.Errorf("unexpected response type: %s", response.MessageType())
	}
	return r.Success, nil
}
