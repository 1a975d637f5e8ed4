// Package transport terminates WebSocket connections and bridges each
// one to a session.Session: inbound frames go to HandleFrame, and the
// session's outbound queue is drained back onto the wire. Grounded on
// adred-codev-ws_poc/go-server-3/internal/transport/server.go's
// accept/upgrade/read-loop/write-loop shape, unchanged in its use of
// gobwas/ws, with the hub.Broadcast call sites replaced by per-session
// dispatch.
package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"go.uber.org/zap"

	"pubsub-broker/internal/config"
	"pubsub-broker/internal/metrics"
	"pubsub-broker/internal/registry"
	"pubsub-broker/internal/session"
)

// Server handles TCP listening and WebSocket upgrades using gobwas/ws.
type Server struct {
	cfg      config.Config
	logger   *zap.Logger
	registry *registry.Registry
	metrics  *metrics.Registry
	listener net.Listener
	wg       sync.WaitGroup
}

// NewServer constructs a transport Server bound to reg; every accepted
// connection gets its own session.Session attached against reg.
func NewServer(cfg config.Config, logger *zap.Logger, reg *registry.Registry, metricsRegistry *metrics.Registry) *Server {
	return &Server{cfg: cfg, logger: logger, registry: reg, metrics: metricsRegistry}
}

// Start begins listening and accepting connections in the background.
func (s *Server) Start(ctx context.Context) error {
	if s.listener != nil {
		return errors.New("transport already started")
	}

	addr := fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	s.listener = ln
	s.logger.Info("transport listening", zap.String("addr", addr))

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.acceptLoop(ctx)
	}()

	return nil
}

// Stop closes the listener and waits for in-flight connections to drain.
func (s *Server) Stop() {
	if s.listener != nil {
		_ = s.listener.Close()
	}
	s.wg.Wait()
}

func (s *Server) acceptLoop(ctx context.Context) {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Temporary() {
				time.Sleep(50 * time.Millisecond)
				continue
			}
			if ctx.Err() != nil {
				return
			}
			s.logger.Error("accept error", zap.Error(err))
			return
		}

		s.wg.Add(1)
		go func(c net.Conn) {
			defer s.wg.Done()
			s.handleConnection(ctx, c)
		}(conn)
	}
}

func (s *Server) handleConnection(parent context.Context, conn net.Conn) {
	defer conn.Close()

	if err := conn.SetDeadline(time.Now().Add(10 * time.Second)); err != nil {
		s.logger.Debug("set deadline", zap.Error(err))
	}

	if _, err := ws.Upgrade(conn); err != nil {
		if s.metrics != nil {
			s.metrics.Messages.AcceptErrors.Inc()
		}
		s.logger.Debug("upgrade failed", zap.Error(err))
		return
	}

	_ = conn.SetDeadline(time.Time{})

	sess := session.New(s.registry, s.logger, s.cfg.Server.OutboundQueueSize)
	sess.Start()
	defer sess.Close()

	connCtx, cancel := context.WithCancel(parent)
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.writeLoop(connCtx, sess, conn)
		// Closing the connection unblocks readLoop, so a write-loop exit
		// also ends the session.
		_ = conn.Close()
	}()

	s.readLoop(connCtx, sess, conn)
	cancel()
	<-done
}

func (s *Server) readLoop(ctx context.Context, sess *session.Session, conn net.Conn) {
	reader := wsutil.NewReader(conn, ws.StateServerSide)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		head, err := reader.NextFrame()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				s.logger.Debug("read frame error", zap.Error(err))
			}
			return
		}

		switch head.OpCode {
		case ws.OpClose:
			_ = wsutil.WriteServerMessage(conn, ws.OpClose, nil)
			return
		case ws.OpPing:
			if err := wsutil.WriteServerMessage(conn, ws.OpPong, nil); err != nil {
				s.logger.Debug("write pong error", zap.Error(err))
				return
			}
		case ws.OpText, ws.OpBinary:
			payload := make([]byte, head.Length)
			if _, err := io.ReadFull(reader, payload); err != nil {
				s.logger.Debug("read message data error", zap.Error(err))
				return
			}
			sess.HandleFrame(payload)
		default:
			if _, err := io.CopyN(io.Discard, reader, int64(head.Length)); err != nil {
				s.logger.Debug("drain frame data error", zap.Error(err))
				return
			}
		}
	}
}

func (s *Server) writeLoop(ctx context.Context, sess *session.Session, conn net.Conn) {
	for {
		select {
		case <-ctx.Done():
			return
		case payload, ok := <-sess.Outbound():
			if !ok {
				return
			}
			if err := wsutil.WriteServerMessage(conn, ws.OpText, payload); err != nil {
				s.logger.Debug("write message error", zap.Error(err))
				return
			}
		}
	}
}
