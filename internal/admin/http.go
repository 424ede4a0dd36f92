// Package admin exposes the operator surface of the chat server: a small
// JSON HTTP API and a gRPC health service.
package admin

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/omochice/caret-chat/internal/chat"
)

// Clients is the view of the hub the admin API needs.
// *chat.Hub satisfies it.
type Clients interface {
	ClientCount() int
	Peers() []chat.Peer
	Peer(address string) (chat.Peer, bool)
	Kick(address string) bool
}

type healthResponse struct {
	Status  string `json:"status"`
	Clients int    `json:"clients"`
}

// Server serves the admin HTTP API.
type Server struct {
	address  string
	peers    Clients
	log      zerolog.Logger
	listener net.Listener
	server   *http.Server
}

// New creates an admin server reading from peers.
func New(address string, peers Clients, logger zerolog.Logger) *Server {
	s := &Server{
		address: address,
		peers:   peers,
		log:     logger,
	}
	s.server = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Handler returns the API routes.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/clients", s.handleClients).Methods(http.MethodGet)
	r.HandleFunc("/clients/{address}", s.handleClient).Methods(http.MethodGet)
	r.HandleFunc("/clients/{address}", s.handleKick).Methods(http.MethodDelete)
	return r
}

// Listen binds the listening socket.
func (s *Server) Listen() error {
	listener, err := net.Listen("tcp", s.address)
	if err != nil {
		return fmt.Errorf("failed to start admin server: %w", err)
	}
	s.listener = listener
	s.log.Info().Str("addr", listener.Addr().String()).Msg("admin server started")
	return nil
}

// Serve handles requests until Stop is called.
func (s *Server) Serve() error {
	if s.listener == nil {
		return errors.New("admin: Serve called before Listen")
	}
	if err := s.server.Serve(s.listener); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop closes the listener and every open request.
func (s *Server) Stop() {
	_ = s.server.Close()
	if s.listener != nil {
		_ = s.listener.Close()
	}
}

// Addr returns the listening address.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return ""
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, healthResponse{Status: "ok", Clients: s.peers.ClientCount()})
}

func (s *Server) handleClients(w http.ResponseWriter, r *http.Request) {
	peers := s.peers.Peers()
	if peers == nil {
		peers = []chat.Peer{}
	}
	s.writeJSON(w, http.StatusOK, peers)
}

func (s *Server) handleClient(w http.ResponseWriter, r *http.Request) {
	address := mux.Vars(r)["address"]
	peer, ok := s.peers.Peer(address)
	if !ok {
		http.Error(w, "client not found", http.StatusNotFound)
		return
	}
	s.writeJSON(w, http.StatusOK, peer)
}

func (s *Server) handleKick(w http.ResponseWriter, r *http.Request) {
	address := mux.Vars(r)["address"]
	if !s.peers.Kick(address) {
		http.Error(w, "client not found", http.StatusNotFound)
		return
	}
	s.log.Info().Str("addr", address).Msg("client kicked")
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Debug().Err(err).Msg("failed to write admin response")
	}
}
