package device

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// DefaultPath is the WebSocket endpoint served by Server.
const DefaultPath = "/ws"

const (
	serverWriteTimeout = 10 * time.Second
	shutdownTimeout    = 5 * time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Server exposes a Simulator over WebSocket. Each binary message is one
// command frame and each notification is sent back as one binary message.
type Server struct {
	sim *Simulator

	// MaxMessageBytes bounds an incoming frame. Zero means no limit.
	MaxMessageBytes int64
}

// NewServer creates a server for sim.
func NewServer(sim *Simulator) *Server {
	return &Server{sim: sim, MaxMessageBytes: 64 * 1024}
}

// Handler returns the HTTP routes: the WebSocket endpoint at DefaultPath and a
// plain-text file listing at /files.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle(DefaultPath, s)
	mux.HandleFunc("/files", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		for _, name := range s.sim.Files() {
			data, _ := s.sim.File(name)
			fmt.Fprintf(w, "%s\t%d\n", name, len(data))
		}
	})
	return mux
}

// ServeHTTP upgrades the request and serves frames until the peer goes away.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "ServeHTTP",
			"error":    err.Error(),
		}).Error("websocket upgrade failed")
		return
	}
	defer conn.Close()
	if s.MaxMessageBytes > 0 {
		conn.SetReadLimit(s.MaxMessageBytes)
	}

	log := logrus.WithFields(logrus.Fields{
		"conn_id": uuid.New().String(),
		"remote":  r.RemoteAddr,
	})
	log.WithField("function", "ServeHTTP").Info("Client connected")

	var writeMu sync.Mutex
	for {
		kind, frame, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.WithFields(logrus.Fields{
					"function": "ServeHTTP",
					"error":    err.Error(),
				}).Debug("Read ended")
			}
			log.WithField("function", "ServeHTTP").Info("Client disconnected")
			return
		}
		if kind != websocket.BinaryMessage {
			continue
		}

		reply, err := s.sim.Handle(frame)
		if err != nil || len(reply) == 0 {
			continue
		}

		writeMu.Lock()
		_ = conn.SetWriteDeadline(time.Now().Add(serverWriteTimeout))
		err = conn.WriteMessage(websocket.BinaryMessage, reply)
		writeMu.Unlock()
		if err != nil {
			log.WithFields(logrus.Fields{
				"function": "ServeHTTP",
				"error":    err.Error(),
			}).Warn("Notification write failed")
			return
		}
	}
}

// Serve accepts connections on ln until ctx is done, then shuts down.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logrus.WithFields(logrus.Fields{
			"function": "Serve",
			"addr":     ln.Addr().String(),
		}).Info("Simulator listening")
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// ListenAndServe listens on addr and calls Serve.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}
