package admin

import (
	"errors"
	"fmt"
	"net"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the gRPC health service name reported for the chat server.
const ServiceName = "chat"

// Health serves grpc.health.v1.Health.
type Health struct {
	address  string
	log      zerolog.Logger
	listener net.Listener
	server   *grpc.Server
	status   *health.Server
}

// NewHealth creates a health server. Both the overall and the chat service
// start as NOT_SERVING.
func NewHealth(address string, logger zerolog.Logger) *Health {
	h := &Health{
		address: address,
		log:     logger,
		server:  grpc.NewServer(),
		status:  health.NewServer(),
	}
	h.SetServing(false)
	healthpb.RegisterHealthServer(h.server, h.status)
	return h
}

// SetServing updates the reported status.
func (h *Health) SetServing(serving bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		status = healthpb.HealthCheckResponse_SERVING
	}
	h.status.SetServingStatus("", status)
	h.status.SetServingStatus(ServiceName, status)
}

// Listen binds the listening socket.
func (h *Health) Listen() error {
	listener, err := net.Listen("tcp", h.address)
	if err != nil {
		return fmt.Errorf("failed to start health server: %w", err)
	}
	h.listener = listener
	h.log.Info().Str("addr", listener.Addr().String()).Msg("health server started")
	return nil
}

// Serve handles RPCs until Stop is called.
func (h *Health) Serve() error {
	if h.listener == nil {
		return errors.New("admin: health Serve called before Listen")
	}
	if err := h.server.Serve(h.listener); !errors.Is(err, grpc.ErrServerStopped) {
		return err
	}
	return nil
}

// Stop reports NOT_SERVING to watchers and stops the gRPC server.
func (h *Health) Stop() {
	h.status.Shutdown()
	h.server.Stop()
	if h.listener != nil {
		_ = h.listener.Close()
	}
}

// Addr returns the listening address.
func (h *Health) Addr() string {
	if h.listener != nil {
		return h.listener.Addr().String()
	}
	return ""
}
