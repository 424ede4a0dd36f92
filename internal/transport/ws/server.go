package ws

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gobwas/ws"
	"github.com/rs/zerolog"

	"github.com/omochice/caret-chat/internal/chat"
)

const readHeaderTimeout = 5 * time.Second

// Handler serves one upgraded connection until it closes.
type Handler interface {
	Serve(ctx context.Context, conn chat.Conn) error
}

// Server upgrades HTTP requests to WebSocket and hands each connection to a
// Handler.
type Server struct {
	address  string
	handler  Handler
	log      zerolog.Logger
	listener net.Listener
	server   *http.Server

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a WebSocket server that uses the provided Handler.
func New(address string, handler Handler, logger zerolog.Logger) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		address: address,
		handler: handler,
		log:     logger,
		ctx:     ctx,
		cancel:  cancel,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleWebSocket)
	s.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: readHeaderTimeout,
	}
	return s
}

// Listen binds the listening socket.
func (s *Server) Listen() error {
	listener, err := net.Listen("tcp", s.address)
	if err != nil {
		return fmt.Errorf("failed to start WebSocket server: %w", err)
	}
	s.listener = listener
	s.log.Info().Str("addr", listener.Addr().String()).Msg("WebSocket server started")
	return nil
}

// Serve accepts upgrade requests until Stop is called. Listen must succeed
// first.
func (s *Server) Serve() error {
	if s.listener == nil {
		return errors.New("ws: Serve called before Listen")
	}
	err := s.server.Serve(s.listener)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Start binds and serves. It blocks until Stop is called.
func (s *Server) Start() error {
	if err := s.Listen(); err != nil {
		return err
	}
	return s.Serve()
}

// Stop closes the listener, cancels every upgraded connection and waits for
// their handlers to return.
func (s *Server) Stop() {
	s.cancel()
	_ = s.server.Close()
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

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if s.ctx.Err() != nil {
		http.Error(w, "server shutting down", http.StatusServiceUnavailable)
		return
	}

	conn, rw, _, err := ws.UpgradeHTTP(r, w)
	if err != nil {
		s.log.Debug().Err(err).Str("addr", r.RemoteAddr).Msg("WebSocket upgrade failed")
		return
	}

	s.wg.Add(1)
	defer s.wg.Done()

	var src io.Reader
	if rw != nil && rw.Reader != nil {
		src = rw.Reader
	}
	if err := s.handler.Serve(s.ctx, NewConn(conn, src, r.RemoteAddr)); err != nil {
		s.log.Warn().Err(err).Str("addr", r.RemoteAddr).Msg("connection rejected")
	}
}
