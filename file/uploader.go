package file

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/opd-ai/blefile/transport"
	"github.com/sirupsen/logrus"
)

// Uploader coordinates uploads over one channel. It owns the acknowledgment
// waiter fed by the channel's notifications and allows a single active session.
type Uploader struct {
	channel transport.Channel
	waiter  *transport.AckWaiter
	opts    Options

	mu     sync.Mutex
	active *Session
	last   *Stats
}

// NewUploader creates an uploader and subscribes its waiter to ch.
func NewUploader(ch transport.Channel, opts Options) (*Uploader, error) {
	if ch == nil {
		return nil, ErrNilChannel
	}

	u := &Uploader{
		channel: ch,
		waiter:  transport.NewAckWaiter(),
		opts:    opts,
	}
	ch.OnNotification(func(payload string) {
		u.waiter.Deliver(payload)
	})

	logrus.WithFields(logrus.Fields{
		"function": "NewUploader",
	}).Info("File uploader created with notification handler registered")

	return u, nil
}

// Waiter returns the acknowledgment waiter so other exchanges on the same
// channel can share it.
func (u *Uploader) Waiter() *transport.AckWaiter {
	return u.waiter
}

// Send uploads data under name and blocks until the transfer completes or fails.
func (u *Uploader) Send(ctx context.Context, data []byte, name string) (Stats, error) {
	if !u.channel.IsConnected() {
		logrus.WithFields(logrus.Fields{
			"function":  "Send",
			"file_name": name,
		}).Warn("Not connected, cannot send file")
		return Stats{}, ErrNotConnected
	}

	session, err := NewSession(u.channel, u.waiter, data, name, u.opts)
	if err != nil {
		return Stats{}, err
	}

	u.mu.Lock()
	if u.active != nil {
		u.mu.Unlock()
		return Stats{}, fmt.Errorf("%w: %s", ErrTransferInProgress, u.active.Name())
	}
	u.active = session
	u.mu.Unlock()

	defer func() {
		st := session.Stats()
		u.mu.Lock()
		u.active = nil
		u.last = &st
		u.mu.Unlock()
	}()

	runErr := session.Run(ctx)
	return session.Stats(), runErr
}

// SendFile reads path and uploads it under its base name, or under name when
// name is not empty.
func (u *Uploader) SendFile(ctx context.Context, path, name string) (Stats, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return Stats{}, fmt.Errorf("read %s: %w", path, err)
	}
	if name == "" {
		name = filepath.Base(path)
	}
	return u.Send(ctx, data, name)
}

// Cancel requests cancellation of the active transfer.
func (u *Uploader) Cancel() error {
	u.mu.Lock()
	active := u.active
	u.mu.Unlock()

	if active == nil {
		return ErrNoActiveTransfer
	}
	active.Cancel()
	return nil
}

// Active returns the running session, if any.
func (u *Uploader) Active() (*Session, bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.active, u.active != nil
}

// LastStats returns the statistics of the most recently finished transfer.
func (u *Uploader) LastStats() (Stats, bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.last == nil {
		return Stats{}, false
	}
	return *u.last, true
}
