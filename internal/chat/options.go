package chat

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Option configures a Hub.
type Option func(h *Hub) error

// WithLogger sets the logger used by the hub and its router.
func WithLogger(logger zerolog.Logger) Option {
	return func(h *Hub) error {
		h.log = logger
		return nil
	}
}

// WithWriteTimeout bounds every write to a peer.
func WithWriteTimeout(timeout time.Duration) Option {
	return func(h *Hub) error {
		if timeout <= 0 {
			return fmt.Errorf("chat.WithWriteTimeout: invalid timeout (%v)", timeout)
		}
		h.writeTimeout = timeout
		return nil
	}
}

// WithFlushDelay sets how long a peer may stay silent mid-frame before the
// partial frame is handled as if it had been delimited.
func WithFlushDelay(delay time.Duration) Option {
	return func(h *Hub) error {
		if delay <= 0 {
			return fmt.Errorf("chat.WithFlushDelay: invalid delay (%v)", delay)
		}
		h.flushDelay = delay
		return nil
	}
}

// WithOutboxSize sets how many frames may wait for a slow peer before it is
// disconnected.
func WithOutboxSize(size int) Option {
	return func(h *Hub) error {
		if size <= 0 {
			return fmt.Errorf("chat.WithOutboxSize: invalid size (%d)", size)
		}
		h.outboxSize = size
		return nil
	}
}

// WithRateLimit limits inbound frames per connection. A zero limit disables it.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(h *Hub) error {
		if perSecond < 0 {
			return fmt.Errorf("chat.WithRateLimit: invalid rate (%v)", perSecond)
		}
		if perSecond > 0 && burst <= 0 {
			return fmt.Errorf("chat.WithRateLimit: invalid burst (%d)", burst)
		}
		h.rateLimit = rate.Limit(perSecond)
		h.rateBurst = burst
		return nil
	}
}

// WithClock overrides the time source used for connect timestamps.
func WithClock(now func() time.Time) Option {
	return func(h *Hub) error {
		if now == nil {
			return fmt.Errorf("chat.WithClock: nil clock")
		}
		h.now = now
		return nil
	}
}
