package transport

import (
	"context"
	"errors"
	"sync"

	"github.com/opd-ai/blefile/codec"
)

// ErrChannelClosed indicates a send on a channel that is closed or disconnected.
var ErrChannelClosed = errors.New("channel closed")

// NotificationHandler receives a notification rendered as uppercase hex text.
type NotificationHandler func(payload string)

// ConnectionState reports whether the link to the device is up.
type ConnectionState interface {
	IsConnected() bool
}

// Channel is the write/notify link to the device.
type Channel interface {
	ConnectionState

	// Send frames and transmits cmd, blocking until it is handed to the link.
	Send(ctx context.Context, cmd Command) error

	// OnNotification registers a handler for data pushed by the device.
	// Handlers run on the channel's receive goroutine.
	OnNotification(handler NotificationHandler)

	// Close shuts the channel down.
	Close() error
}

// notifier fans raw notifications out to registered handlers.
type notifier struct {
	mu       sync.RWMutex
	handlers []NotificationHandler
}

// OnNotification implements Channel.
func (n *notifier) OnNotification(handler NotificationHandler) {
	if handler == nil {
		return
	}
	n.mu.Lock()
	n.handlers = append(n.handlers, handler)
	n.mu.Unlock()
}

func (n *notifier) dispatch(raw []byte) {
	if len(raw) == 0 {
		return
	}
	payload := codec.EncodeHex(raw)

	n.mu.RLock()
	handlers := make([]NotificationHandler, len(n.handlers))
	copy(handlers, n.handlers)
	n.mu.RUnlock()

	for _, h := range handlers {
		h(payload)
	}
}
