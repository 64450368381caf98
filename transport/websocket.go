package transport

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// DefaultWriteTimeout bounds a single frame write on a WebSocket channel.
const DefaultWriteTimeout = 10 * time.Second

var dialer = websocket.Dialer{
	HandshakeTimeout: 5 * time.Second,
}

// WebSocketChannel carries frames as binary WebSocket messages. Each binary
// message received from the peer is one notification. It is used against GATT
// bridges and the device simulator.
type WebSocketChannel struct {
	notifier

	conn      *websocket.Conn
	framer    *Framer
	writeMu   sync.Mutex
	connected atomic.Bool
	closeOnce sync.Once

	// WriteTimeout bounds each frame write. Zero means DefaultWriteTimeout.
	WriteTimeout time.Duration
}

// DialWebSocket connects to a peer at wsURL.
func DialWebSocket(ctx context.Context, wsURL string, framer *Framer) (*WebSocketChannel, error) {
	conn, resp, err := dialer.DialContext(ctx, wsURL, http.Header{})
	if err != nil {
		if resp != nil {
			body, _ := io.ReadAll(resp.Body)
			_ = resp.Body.Close()
			if len(body) > 0 {
				return nil, fmt.Errorf("websocket upgrade failed (%d): %s", resp.StatusCode, string(body))
			}
			return nil, fmt.Errorf("websocket upgrade failed (%d)", resp.StatusCode)
		}
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"function": "DialWebSocket",
		"url":      wsURL,
	}).Info("WebSocket channel connected")

	return NewWebSocketChannel(conn, framer), nil
}

// NewWebSocketChannel wraps an established connection. The caller must run
// ReadLoop to receive notifications.
func NewWebSocketChannel(conn *websocket.Conn, framer *Framer) *WebSocketChannel {
	if framer == nil {
		framer = NewFramer()
	}
	c := &WebSocketChannel{conn: conn, framer: framer}
	c.connected.Store(true)
	return c
}

// ReadLoop dispatches incoming binary messages until the connection fails or
// ctx is done. The channel reports disconnected once ReadLoop returns.
func (c *WebSocketChannel) ReadLoop(ctx context.Context) error {
	defer c.connected.Store(false)

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			_ = c.Close()
		case <-stop:
		}
	}()

	for {
		messageType, message, err := c.conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logrus.WithFields(logrus.Fields{
					"function": "ReadLoop",
					"error":    err.Error(),
				}).Error("WebSocket read failed")
			}
			return err
		}
		if messageType != websocket.BinaryMessage {
			continue
		}
		c.dispatch(message)
	}
}

// Send implements Channel.
func (c *WebSocketChannel) Send(ctx context.Context, cmd Command) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !c.IsConnected() {
		return ErrChannelClosed
	}

	frame, err := c.framer.Encode(cmd)
	if err != nil {
		return err
	}

	timeout := c.WriteTimeout
	if timeout <= 0 {
		timeout = DefaultWriteTimeout
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(timeout))
	if err := c.conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
		c.connected.Store(false)
		return fmt.Errorf("write %s frame: %w", cmd.Op, err)
	}
	return nil
}

// IsConnected implements ConnectionState.
func (c *WebSocketChannel) IsConnected() bool {
	return c.connected.Load()
}

// Close implements Channel.
func (c *WebSocketChannel) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.connected.Store(false)
		c.writeMu.Lock()
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		c.writeMu.Unlock()
		err = c.conn.Close()
	})
	return err
}
