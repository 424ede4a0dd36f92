package chat

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/omochice/caret-chat/pkg/protocol"
)

// Outbound is a message queued for every registered connection.
type Outbound struct {
	Label string
	Body  string
}

// Router queues outbound messages from any number of producers and fans
// them out from a single goroutine, preserving arrival order.
type Router struct {
	registry *Registry
	evict    func(*Handle, error)
	log      zerolog.Logger

	mu     sync.Mutex
	queue  []Outbound
	closed bool
	wake   chan struct{}
}

// NewRouter creates a Router delivering to the handles in registry.
// evict is called for every handle that cannot accept a message.
func NewRouter(registry *Registry, evict func(*Handle, error), logger zerolog.Logger) *Router {
	return &Router{
		registry: registry,
		evict:    evict,
		log:      logger,
		wake:     make(chan struct{}, 1),
	}
}

// Send queues msg for delivery. It never blocks.
func (r *Router) Send(msg Outbound) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return ErrRouterClosed
	}
	r.queue = append(r.queue, msg)
	r.mu.Unlock()

	select {
	case r.wake <- struct{}{}:
	default:
	}
	return nil
}

// Run delivers queued messages until ctx is done. Messages still queued
// when ctx ends are delivered before Run returns; later Sends fail.
func (r *Router) Run(ctx context.Context) {
	for {
		select {
		case <-r.wake:
			r.drain()
		case <-ctx.Done():
			r.mu.Lock()
			r.closed = true
			r.mu.Unlock()
			r.drain()
			return
		}
	}
}

// Pending returns the number of queued messages.
func (r *Router) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.queue)
}

func (r *Router) drain() {
	r.mu.Lock()
	batch := r.queue
	r.queue = nil
	r.mu.Unlock()

	for _, msg := range batch {
		r.deliver(msg)
	}
}

func (r *Router) deliver(msg Outbound) {
	frame := protocol.EncodeFrame(msg.Label, msg.Body)
	r.registry.ForEach(func(h *Handle) {
		if err := h.enqueue(frame); err != nil {
			r.log.Debug().Err(err).Str("addr", h.Address()).Msg("delivery failed")
			r.evict(h, err)
		}
	})
	r.log.Trace().Str("label", msg.Label).Str("body", msg.Body).Msg("broadcast")
}
