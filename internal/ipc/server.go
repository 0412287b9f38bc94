package ipc

import (
	"bufio"
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"sync"
)

// SocketPath returns the control socket path for runs started in workdir.
// Format: $TMPDIR/chain-{hash}.sock, short enough for the socket path limit.
func SocketPath(workdir string) string {
	abs, err := filepath.Abs(workdir)
	if err != nil {
		abs = workdir
	}
	sum := sha256.Sum256([]byte(abs))
	return filepath.Join(os.TempDir(), fmt.Sprintf("chain-%x.sock", sum[:6]))
}

// Handler processes IPC requests and returns responses.
// Implementations should be safe for concurrent use.
type Handler interface {
	// HandleAbort returns an AckMessage or ErrorMessage.
	HandleAbort(ctx context.Context, msg *AbortMessage) any

	// HandleNavigate returns an AckMessage or ErrorMessage.
	HandleNavigate(ctx context.Context, msg *NavigateMessage) any

	// HandleGetState returns a StateMessage or ErrorMessage.
	HandleGetState(ctx context.Context, msg *GetStateMessage) any
}

// Server listens for IPC messages on a Unix domain socket.
type Server struct {
	socketPath string
	handler    Handler
	logger     *slog.Logger

	listener net.Listener
	wg       sync.WaitGroup

	mu       sync.Mutex
	shutdown bool
}

// NewServer creates an IPC server on socketPath.
func NewServer(socketPath string, handler Handler, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		socketPath: socketPath,
		handler:    handler,
		logger:     logger.With("component", "ipc-server"),
	}
}

// Path returns the path to the Unix socket.
func (s *Server) Path() string {
	return s.socketPath
}

// StartAsync starts serving in the background and returns immediately.
// Use Shutdown to stop the server.
func (s *Server) StartAsync(ctx context.Context) error {
	// A socket left behind by a crashed run would block Listen.
	if err := os.Remove(s.socketPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove existing socket: %w", err)
	}

	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("failed to create socket: %w", err)
	}
	s.listener = listener

	s.logger.Info("IPC server started", "socket", s.socketPath)
	go s.acceptLoop(ctx)
	return nil
}

// Shutdown stops the server and removes the socket. It is idempotent.
func (s *Server) Shutdown() error {
	s.mu.Lock()
	if s.shutdown {
		s.mu.Unlock()
		return nil
	}
	s.shutdown = true
	s.mu.Unlock()

	if s.listener != nil {
		if err := s.listener.Close(); err != nil {
			s.logger.Error("error closing listener", "error", err)
		}
	}
	s.wg.Wait()

	if err := os.Remove(s.socketPath); err != nil && !os.IsNotExist(err) {
		s.logger.Error("error removing socket", "error", err)
	}
	s.logger.Info("IPC server stopped")
	return nil
}

func (s *Server) acceptLoop(ctx context.Context) {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			s.mu.Lock()
			shutdown := s.shutdown
			s.mu.Unlock()
			if shutdown || errors.Is(err, net.ErrClosed) || ctx.Err() != nil {
				return
			}
			s.logger.Error("accept error", "error", err)
			continue
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConnection(ctx, conn)
		}()
	}
}

func (s *Server) handleConnection(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	reader := bufio.NewReader(conn)

	for {
		if ctx.Err() != nil {
			return
		}

		line, err := reader.ReadBytes('\n')
		if err != nil {
			if err != io.EOF && !errors.Is(err, net.ErrClosed) {
				s.logger.Error("read error", "error", err)
			}
			return
		}

		response := s.handleMessage(ctx, line)
		if err := s.sendResponse(conn, response); err != nil {
			s.logger.Error("write error", "error", err)
			return
		}
	}
}

func (s *Server) handleMessage(ctx context.Context, data []byte) any {
	msg, err := ParseMessage(data)
	if err != nil {
		s.logger.Warn("parse error", "error", err)
		return &ErrorMessage{Type: MsgError, Message: fmt.Sprintf("failed to parse message: %v", err)}
	}

	switch m := msg.(type) {
	case *AbortMessage:
		s.logger.Debug("handling abort", "reason", m.Reason)
		return s.handler.HandleAbort(ctx, m)
	case *NavigateMessage:
		s.logger.Debug("handling navigate", "url", m.URL)
		return s.handler.HandleNavigate(ctx, m)
	case *GetStateMessage:
		return s.handler.HandleGetState(ctx, m)
	default:
		return &ErrorMessage{Type: MsgError, Message: fmt.Sprintf("unexpected message type: %s", msg.MessageType())}
	}
}

func (s *Server) sendResponse(conn net.Conn, response any) error {
	data, err := Marshal(response)
	if err != nil {
		return fmt.Errorf("failed to marshal response: %w", err)
	}
	_, err = conn.Write(append(data, '\n'))
	return err
}
