package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/meow-stack/promptchain/internal/bridge"
	"github.com/meow-stack/promptchain/internal/config"
	"github.com/meow-stack/promptchain/internal/host"
	"github.com/meow-stack/promptchain/internal/host/sim"
	"github.com/meow-stack/promptchain/internal/logging"
	"github.com/meow-stack/promptchain/internal/server"
	"github.com/meow-stack/promptchain/internal/tmux"
	"github.com/meow-stack/promptchain/internal/trigger"
)

// connectTimeout bounds how long a bridge run waits for its page.
const connectTimeout = 2 * time.Minute

// hostSession is the host editor chosen for one run plus whatever it
// needs torn down afterwards.
type hostSession struct {
	editor host.Editor
	bridge *bridge.Editor
	close  []func()
}

// Close releases the session's resources in reverse order.
func (h *hostSession) Close() {
	for i := len(h.close) - 1; i >= 0; i-- {
		h.close[i]()
	}
}

// openHost creates the editor for cfg.Host.Kind. Page events from the
// bridge are forwarded to feed.
func openHost(ctx context.Context, cfg *config.Config, simConfig string, feed *trigger.Feed, logger *slog.Logger) (*hostSession, error) {
	s := &hostSession{}
	logger = logging.WithComponent(logger, "host."+string(cfg.Host.Kind))

	switch cfg.Host.Kind {
	case config.HostBridge:
		b := bridge.New(cfg.Bridge, feed, logger)
		s.editor, s.bridge = b, b
		s.close = append(s.close, func() { b.Close() })

	case config.HostTmux:
		t, err := tmux.New(cfg.Tmux, logger)
		if err != nil {
			return nil, err
		}
		if err := t.Start(ctx); err != nil {
			return nil, fmt.Errorf("attaching to tmux session %q: %w", cfg.Tmux.Session, err)
		}
		s.editor = t
		s.close = append(s.close, func() { t.Close() })

	case config.HostSim:
		simCfg := sim.NewDefaultConfig()
		if simConfig != "" {
			var err error
			if simCfg, err = sim.LoadConfig(simConfig); err != nil {
				return nil, fmt.Errorf("loading simulator config: %w", err)
			}
		}
		e := sim.New(simCfg, logger)
		s.editor = e
		s.close = append(s.close, func() { e.Close() })

	default:
		return nil, fmt.Errorf("unknown host kind %q", cfg.Host.Kind)
	}
	return s, nil
}

// serveBridge starts the HTTP surface for a bridge run and waits for a
// page to attach. The returned func stops the server.
func serveBridge(ctx context.Context, cfg *config.Config, s *hostSession, runner server.Runner, logger *slog.Logger) (func(), error) {
	l, err := net.Listen("tcp", cfg.Bridge.ListenAddr)
	if err != nil {
		return nil, fmt.Errorf("listening on %s: %w", cfg.Bridge.ListenAddr, err)
	}

	logger = logging.WithComponent(logger, "http")
	srv := server.New(runner, s.bridge, logger,
		server.WithOriginCheck(bridge.OriginChecker(cfg.Bridge.AllowedOrigins)))
	serveCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := srv.Serve(serveCtx, l); err != nil {
			logger.Error("http server stopped", "error", err)
		}
	}()
	stop := func() {
		cancel()
		<-done
	}

	fmt.Printf("Waiting for a chat page to connect to ws://%s/bridge ...\n", l.Addr())
	waitCtx, waitCancel := context.WithTimeout(ctx, connectTimeout)
	defer waitCancel()
	if err := s.bridge.WaitConnected(waitCtx); err != nil {
		stop()
		return nil, err
	}
	fmt.Println("Chat page connected.")
	return stop, nil
}
