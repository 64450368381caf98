package device

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/opd-ai/blefile/codec"
	"github.com/opd-ai/blefile/transport"
)

// Link is an in-memory transport.Channel attached to a Simulator. Frames are
// encoded exactly as on a real link and notifications are delivered before
// Send returns.
type Link struct {
	sim       *Simulator
	framer    *transport.Framer
	connected atomic.Bool

	mu       sync.RWMutex
	handlers []transport.NotificationHandler
}

// NewLink connects a channel to sim.
func NewLink(sim *Simulator) *Link {
	l := &Link{sim: sim, framer: sim.framer}
	l.connected.Store(true)
	return l
}

// Send implements transport.Channel.
func (l *Link) Send(ctx context.Context, cmd transport.Command) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !l.connected.Load() {
		return transport.ErrChannelClosed
	}
	frame, err := l.framer.Encode(cmd)
	if err != nil {
		return err
	}
	reply, err := l.sim.Handle(frame)
	if err != nil || len(reply) == 0 {
		return nil
	}

	payload := codec.EncodeHex(reply)
	l.mu.RLock()
	handlers := append([]transport.NotificationHandler(nil), l.handlers...)
	l.mu.RUnlock()
	for _, h := range handlers {
		h(payload)
	}
	return nil
}

// OnNotification implements transport.Channel.
func (l *Link) OnNotification(handler transport.NotificationHandler) {
	if handler == nil {
		return
	}
	l.mu.Lock()
	l.handlers = append(l.handlers, handler)
	l.mu.Unlock()
}

// IsConnected implements transport.Channel.
func (l *Link) IsConnected() bool {
	return l.connected.Load()
}

// Disconnect drops the link without notifying the simulator.
func (l *Link) Disconnect() {
	l.connected.Store(false)
}

// Close implements transport.Channel.
func (l *Link) Close() error {
	l.connected.Store(false)
	return nil
}
