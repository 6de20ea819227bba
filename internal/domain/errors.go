package domain

import "errors"

var (
	ErrNotFound       = errors.New("not found")
	ErrDisabled       = errors.New("venue client disabled")
	ErrStale          = errors.New("price point stale")
	ErrBreakerOpen    = errors.New("circuit breaker open")
	ErrWSDisconnect   = errors.New("websocket disconnected")
	ErrContextDone    = errors.New("context cancelled")
	ErrNotConnected   = errors.New("venue client not connected")
	ErrInvalidMessage = errors.New("malformed venue message")
)
