// Package server exposes a running chain over HTTP: the bridge websocket
// for the chat page, run state as JSON, an abort endpoint and a server-sent
// event stream of state changes.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/r3labs/sse/v2"

	"github.com/meow-stack/promptchain/internal/types"
)

// StateStream is the SSE stream carrying run state snapshots.
const StateStream = "state"

// Runner is the part of the run coordinator the HTTP surface needs.
type Runner interface {
	State() types.RunState
	Abort(reason types.AbortReason) bool
	Subscribe(fn func(types.RunState)) (unsubscribe func())
}

// BridgeHandler serves the chat page's websocket.
type BridgeHandler interface {
	http.Handler
	Connected() bool
}

// Server is the HTTP surface of one coordinator.
type Server struct {
	router *mux.Router
	events *sse.Server
	runner Runner
	bridge BridgeHandler
	logger *slog.Logger

	originAllowed func(*http.Request) bool

	unsubscribe func()
}

// Option configures a Server.
type Option func(*Server)

// WithOriginCheck rejects API requests for which allowed returns false.
// Without it every origin is accepted.
func WithOriginCheck(allowed func(*http.Request) bool) Option {
	return func(s *Server) {
		s.originAllowed = allowed
	}
}

// New creates a server for runner. bridge may be nil when the host is not
// the websocket bridge.
func New(runner Runner, bridge BridgeHandler, logger *slog.Logger, opts ...Option) *Server {
	events := sse.New()
	events.AutoReplay = false
	events.CreateStream(StateStream)

	s := &Server{
		router: mux.NewRouter(),
		events: events,
		runner: runner,
		bridge: bridge,
		logger: logger.With("component", "http"),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.setupRoutes()
	s.unsubscribe = runner.Subscribe(s.publishState)
	return s
}

func (s *Server) setupRoutes() {
	if s.bridge != nil {
		s.router.Handle("/bridge", s.bridge).Methods(http.MethodGet)
	}

	api := s.router.PathPrefix("/api").Subrouter()
	api.Use(s.checkOrigin)
	api.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	api.HandleFunc("/state", s.handleState).Methods(http.MethodGet)
	api.HandleFunc("/abort", s.handleAbort).Methods(http.MethodPost)
	api.HandleFunc("/events", s.handleEvents).Methods(http.MethodGet)
}

// checkOrigin keeps pages on other sites from driving the API through the
// user's browser.
func (s *Server) checkOrigin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.originAllowed != nil && !s.originAllowed(r) {
			s.logger.Warn("rejected cross-origin request", "origin", r.Header.Get("Origin"), "path", r.URL.Path)
			writeError(w, http.StatusForbidden, "origin not allowed")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Handler returns the server's router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Serve accepts connections on l until ctx is done.
func (s *Server) Serve(ctx context.Context, l net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() { errc <- srv.Serve(l) }()
	s.logger.Info("http server listening", "addr", l.Addr().String())

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	// Long-lived SSE and websocket connections would hold Shutdown open.
	s.Close()
	if s.bridge != nil {
		if c, ok := s.bridge.(interface{ Close() error }); ok {
			c.Close()
		}
	}
	err := srv.Shutdown(shutdownCtx)
	if errors.Is(err, context.DeadlineExceeded) {
		srv.Close()
	}
	<-errc
	return nil
}

// Close stops publishing state and ends every event stream.
func (s *Server) Close() {
	if s.unsubscribe != nil {
		s.unsubscribe()
		s.unsubscribe = nil
		s.events.Close()
	}
}

func (s *Server) publishState(state types.RunState) {
	data, err := json.Marshal(state)
	if err != nil {
		s.logger.Error("marshaling state", "error", err)
		return
	}
	s.events.Publish(StateStream, &sse.Event{Event: []byte(StateStream), Data: data})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{"status": "ok"}
	if s.bridge != nil {
		resp["bridge_connected"] = s.bridge.Connected()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.runner.State())
}

type abortRequest struct {
	Reason types.AbortReason `json:"reason"`
}

func (s *Server) handleAbort(w http.ResponseWriter, r *http.Request) {
	var req abortRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}
	if req.Reason == "" {
		req.Reason = types.AbortUser
	}
	if !req.Reason.Valid() {
		writeError(w, http.StatusBadRequest, "invalid abort reason")
		return
	}

	aborted := s.runner.Abort(req.Reason)
	s.logger.Info("abort requested", "reason", req.Reason, "aborted", aborted)
	writeJSON(w, http.StatusOK, map[string]bool{"aborted": aborted})
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	q.Set("stream", StateStream)
	r.URL.RawQuery = q.Encode()
	s.events.ServeHTTP(w, r)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
