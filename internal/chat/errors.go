package chat

import "errors"

var (
	// ErrRouterClosed is returned by Send once the router has stopped.
	ErrRouterClosed = errors.New("chat: router closed")

	// ErrHandleClosed is returned when writing to a disconnected handle.
	ErrHandleClosed = errors.New("chat: connection closed")

	// ErrOutboxFull is returned when a peer is too slow to drain its outbox.
	ErrOutboxFull = errors.New("chat: outbox full")

	// ErrKicked is the disconnect cause of a client removed by an operator.
	ErrKicked = errors.New("chat: disconnected by operator")

	// ErrDuplicateAddress is returned when registering an address twice.
	ErrDuplicateAddress = errors.New("chat: address already registered")
)
