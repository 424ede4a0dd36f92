// Package server wires the chat hub to its listeners: raw TCP, an optional
// WebSocket endpoint and the optional admin and health surfaces.
package server

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"github.com/omochice/caret-chat/internal/admin"
	"github.com/omochice/caret-chat/internal/chat"
	"github.com/omochice/caret-chat/internal/config"
	"github.com/omochice/caret-chat/internal/transport/tcp"
	wstransport "github.com/omochice/caret-chat/internal/transport/ws"
)

// listener is what every endpoint of the server implements.
type listener interface {
	Listen() error
	Serve() error
	Stop()
	Addr() string
}

// Server represents a running chat server.
type Server struct {
	log zerolog.Logger
	hub *chat.Hub

	tcp    *tcp.Server
	ws     *wstransport.Server
	admin  *admin.Server
	health *admin.Health

	mu      sync.Mutex
	started bool
	stopped bool
	cancel  context.CancelFunc
	hubDone chan struct{}
	wg      sync.WaitGroup
}

// New creates a Server from cfg. Nothing is bound until Start.
func New(cfg config.Config, logger zerolog.Logger) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	hub, err := chat.NewHub(
		chat.WithLogger(logger),
		chat.WithWriteTimeout(cfg.WriteTimeout),
		chat.WithOutboxSize(cfg.OutboxSize),
		chat.WithRateLimit(cfg.RateLimit, cfg.RateBurst),
	)
	if err != nil {
		return nil, err
	}

	s := &Server{
		log:     logger,
		hub:     hub,
		tcp:     tcp.New(cfg.Listen, hub, logger),
		hubDone: make(chan struct{}),
	}
	if cfg.WebSocketListen != "" {
		s.ws = wstransport.New(cfg.WebSocketListen, hub, logger)
	}
	if cfg.AdminListen != "" {
		s.admin = admin.New(cfg.AdminListen, hub, logger)
	}
	if cfg.HealthListen != "" {
		s.health = admin.NewHealth(cfg.HealthListen, logger)
	}
	return s, nil
}

// Start binds every configured listener and starts serving in the
// background. Only bind failures are returned; on failure nothing is left
// listening.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return errors.New("server: already started")
	}

	endpoints := s.endpoints()
	for i, l := range endpoints {
		if err := l.Listen(); err != nil {
			for _, bound := range endpoints[:i] {
				bound.Stop()
			}
			return err
		}
	}
	s.started = true

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	go func() {
		defer close(s.hubDone)
		s.hub.Run(ctx)
	}()

	for _, l := range endpoints {
		s.wg.Add(1)
		go func(l listener) {
			defer s.wg.Done()
			if err := l.Serve(); err != nil {
				s.log.Error().Err(err).Str("addr", l.Addr()).Msg("listener stopped")
			}
		}(l)
	}

	if s.health != nil {
		s.health.SetServing(true)
	}
	return nil
}

// Stop closes every listener, disconnects every client and waits for the
// background goroutines. It is safe to call more than once.
func (s *Server) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started || s.stopped {
		return
	}
	s.stopped = true

	if s.health != nil {
		s.health.SetServing(false)
	}

	// Chat transports first so leave notices still reach the router.
	s.tcp.Stop()
	if s.ws != nil {
		s.ws.Stop()
	}
	s.cancel()
	<-s.hubDone

	if s.admin != nil {
		s.admin.Stop()
	}
	if s.health != nil {
		s.health.Stop()
	}
	s.wg.Wait()
	s.log.Info().Msg("server stopped")
}

// Addr returns the TCP chat address.
func (s *Server) Addr() string {
	return s.tcp.Addr()
}

// WebSocketAddr returns the WebSocket address, or "" when disabled.
func (s *Server) WebSocketAddr() string {
	if s.ws == nil {
		return ""
	}
	return s.ws.Addr()
}

// AdminAddr returns the admin HTTP address, or "" when disabled.
func (s *Server) AdminAddr() string {
	if s.admin == nil {
		return ""
	}
	return s.admin.Addr()
}

// HealthAddr returns the gRPC health address, or "" when disabled.
func (s *Server) HealthAddr() string {
	if s.health == nil {
		return ""
	}
	return s.health.Addr()
}

// ClientCount returns the number of connected clients.
func (s *Server) ClientCount() int {
	return s.hub.ClientCount()
}

func (s *Server) endpoints() []listener {
	endpoints := []listener{s.tcp}
	if s.ws != nil {
		endpoints = append(endpoints, s.ws)
	}
	if s.admin != nil {
		endpoints = append(endpoints, s.admin)
	}
	if s.health != nil {
		endpoints = append(endpoints, s.health)
	}
	return endpoints
}
