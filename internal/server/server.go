package server

import (
	"context"
	"errors"
	"io"
	"net"
	"runtime"
	"strconv"
	"sync"

	"github.com/emberkv/ember/internal/config"
	"github.com/emberkv/ember/internal/resp"
	"go.uber.org/zap"
)

// Server accepts client connections and feeds them through the engine.
// Two drivers share the same connection handler: one goroutine per
// connection, or a fixed-size worker pool draining an accept queue.
type Server struct {
	cfg      *config.Config
	engine   *Engine
	logger   *zap.Logger
	listener net.Listener
	wg       sync.WaitGroup
}

func New(cfg *config.Config, engine *Engine, logger *zap.Logger) *Server {
	return &Server{
		cfg:    cfg,
		engine: engine,
		logger: logger,
	}
}

// ListenAndServe binds the configured address and serves until ctx is
// canceled
func (s *Server) ListenAndServe(ctx context.Context) error {
	address := net.JoinHostPort(s.cfg.Server.Host, strconv.Itoa(s.cfg.Server.Port))
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return err
	}
	return s.Serve(ctx, listener)
}

// Serve accepts connections from listener until ctx is canceled. It
// returns once the accept loop has stopped and every connection handler
// has finished.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	s.listener = listener

	go func() {
		<-ctx.Done()
		listener.Close() //nolint:errcheck
	}()

	s.logger.Info("listening",
		zap.String("address", listener.Addr().String()),
		zap.Bool("pool", s.cfg.Server.Pool),
	)

	if s.cfg.Server.Pool {
		s.servePool(listener)
	} else {
		s.serveSpawn(listener)
	}

	s.wg.Wait()
	return nil
}

// Addr returns the bound listener address, valid once ListenAndServe has
// started accepting
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// serveSpawn runs one goroutine per accepted connection
func (s *Server) serveSpawn(listener net.Listener) {
	for {
		conn, err := listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			s.logger.Error("accept error", zap.Error(err))
			continue
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConnection(conn)
		}()
	}
}

// servePool multiplexes connections over a fixed-size worker pool. Each
// worker still owns a connection for its whole lifetime, so the per-
// connection ordering contract is identical to the spawn driver.
func (s *Server) servePool(listener net.Listener) {
	workers := s.cfg.Server.PoolSize
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	conns := make(chan net.Conn)
	for i := 0; i < workers; i++ {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			for conn := range conns {
				s.handleConnection(conn)
			}
		}()
	}

	for {
		conn, err := listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				close(conns)
				return
			}
			s.logger.Error("accept error", zap.Error(err))
			continue
		}
		conns <- conn
	}
}

// handleConnection owns one client for its whole lifetime: read bytes,
// drain complete frames, dispatch, reply, flush once per drained batch.
func (s *Server) handleConnection(conn net.Conn) {
	log := s.logger
	if log.Core().Enabled(zap.DebugLevel) {
		log.Debug("client connected", zap.String("addr", conn.RemoteAddr().String()))
	}

	peer := NewPeer(conn)
	sess := NewSession()
	defer func() {
		s.engine.channels.Drop(peer)
		peer.Close() //nolint:errcheck
		if log.Core().Enabled(zap.DebugLevel) {
			log.Debug("client disconnected", zap.String("addr", conn.RemoteAddr().String()))
		}
	}()

	buf := make([]byte, 4096)
	for {
		n, err := conn.Read(buf)
		if err != nil {
			if err != io.EOF && !errors.Is(err, net.ErrClosed) {
				log.Warn("read failed", zap.Error(err))
			}
			return
		}
		sess.parser.Append(buf[:n])

		for {
			frame, err := sess.parser.Next()
			if errors.Is(err, resp.ErrIncomplete) {
				break
			}
			if err != nil {
				// Protocol error: report it and keep reading. The parser
				// already advanced past the garbage.
				if sendErr := peer.Send(resp.MakeError(err.Error())); sendErr != nil {
					return
				}
				continue
			}
			if len(frame) == 0 {
				continue
			}

			reply, quit := s.engine.Execute(sess, peer, frame)
			if err := peer.Send(reply); err != nil {
				log.Error("error writing response", zap.Error(err))
				return
			}
			if quit {
				peer.Flush() //nolint:errcheck
				return
			}
		}

		if err := peer.Flush(); err != nil {
			return
		}
	}
}
