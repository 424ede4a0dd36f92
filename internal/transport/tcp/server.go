package tcp

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/omochice/caret-chat/internal/chat"
)

// Handler serves one accepted connection until it closes.
// *chat.Hub satisfies it.
type Handler interface {
	Serve(ctx context.Context, conn chat.Conn) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, conn chat.Conn) error

// Serve calls f(ctx, conn).
func (f HandlerFunc) Serve(ctx context.Context, conn chat.Conn) error {
	return f(ctx, conn)
}

// Server accepts TCP connections and hands each one to a Handler.
type Server struct {
	address  string
	handler  Handler
	log      zerolog.Logger
	listener net.Listener

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a TCP server that uses the provided Handler.
func New(address string, handler Handler, logger zerolog.Logger) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		address: address,
		handler: handler,
		log:     logger,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Listen binds the listening socket.
func (s *Server) Listen() error {
	listener, err := net.Listen("tcp", s.address)
	if err != nil {
		return fmt.Errorf("failed to start TCP server: %w", err)
	}
	s.listener = listener
	s.log.Info().Str("addr", listener.Addr().String()).Msg("TCP server started")
	return nil
}

// Serve accepts connections until Stop is called. Listen must succeed first.
func (s *Server) Serve() error {
	if s.listener == nil {
		return errors.New("tcp: Serve called before Listen")
	}

	var backoff time.Duration
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if s.ctx.Err() != nil {
				return nil
			}
			if backoff == 0 {
				backoff = 5 * time.Millisecond
			} else if backoff *= 2; backoff > time.Second {
				backoff = time.Second
			}
			s.log.Warn().Err(err).Dur("retry_in", backoff).Msg("failed to accept TCP connection")
			select {
			case <-time.After(backoff):
			case <-s.ctx.Done():
				return nil
			}
			continue
		}
		backoff = 0

		s.wg.Add(1)
		go s.handleClient(conn)
	}
}

// Start binds and serves. It blocks until Stop is called.
func (s *Server) Start() error {
	if err := s.Listen(); err != nil {
		return err
	}
	return s.Serve()
}

// Stop closes the listener, cancels every connection and waits for their
// handlers to return.
func (s *Server) Stop() {
	s.cancel()
	if s.listener != nil {
		_ = s.listener.Close()
	}
	s.wg.Wait()
}

// Addr returns the listening address.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return ""
}

func (s *Server) handleClient(conn net.Conn) {
	defer s.wg.Done()
	if err := s.handler.Serve(s.ctx, NewConn(conn)); err != nil {
		s.log.Warn().Err(err).Str("addr", conn.RemoteAddr().String()).Msg("connection rejected")
	}
}
