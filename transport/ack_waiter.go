package transport

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// ErrAckTimeout indicates an expected acknowledgment did not arrive before its deadline.
var ErrAckTimeout = errors.New("timed out waiting for acknowledgment")

// PendingAck is one outstanding expectation registered with an AckWaiter.
type PendingAck struct {
	prefix   string
	deadline time.Time

	waiter  *AckWaiter
	timer   *time.Timer
	result  chan string
	expired chan struct{}
}

// Prefix returns the notification prefix this expectation matches.
func (p *PendingAck) Prefix() string { return p.prefix }

// Deadline returns when the expectation times out, or the zero time if it never does.
func (p *PendingAck) Deadline() time.Time { return p.deadline }

// Wait blocks until the expectation is matched, times out, or ctx is done.
// A matched expectation returns the full notification payload.
func (p *PendingAck) Wait(ctx context.Context) (string, error) {
	select {
	case payload := <-p.result:
		return payload, nil
	case <-p.expired:
		return "", fmt.Errorf("%w: %s", ErrAckTimeout, p.prefix)
	case <-ctx.Done():
		p.Cancel()
		return "", ctx.Err()
	}
}

// Cancel withdraws the expectation. It is a no-op once the expectation has settled.
func (p *PendingAck) Cancel() {
	p.waiter.remove(p)
}

// AckWaiter correlates asynchronous notifications with callers waiting on a prefix.
//
// Notifications are matched against outstanding expectations in registration
// order; the first whose prefix matches wins. A notification nobody waits for is
// dropped. An AckWaiter is safe for concurrent use.
type AckWaiter struct {
	mu      sync.Mutex
	pending []*PendingAck
}

// NewAckWaiter creates an empty AckWaiter.
func NewAckWaiter() *AckWaiter {
	return &AckWaiter{}
}

// Register adds an expectation for a notification starting with prefix.
// The timeout starts now; a timeout <= 0 never expires. Register before sending
// the command being acknowledged so a fast reply cannot be missed.
func (w *AckWaiter) Register(prefix string, timeout time.Duration) *PendingAck {
	p := &PendingAck{
		prefix:  strings.ToUpper(prefix),
		waiter:  w,
		result:  make(chan string, 1),
		expired: make(chan struct{}),
	}

	w.mu.Lock()
	w.pending = append(w.pending, p)
	if timeout > 0 {
		p.deadline = time.Now().Add(timeout)
		p.timer = time.AfterFunc(timeout, func() { w.expire(p) })
	}
	w.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"function": "Register",
		"prefix":   p.prefix,
		"timeout":  timeout,
	}).Debug("Registered acknowledgment expectation")

	return p
}

// Deliver offers a notification to the outstanding expectations. It reports
// whether an expectation was satisfied.
func (w *AckWaiter) Deliver(payload string) bool {
	payload = strings.ToUpper(payload)

	w.mu.Lock()
	var matched *PendingAck
	for i, p := range w.pending {
		if strings.HasPrefix(payload, p.prefix) {
			matched = p
			w.pending = append(w.pending[:i:i], w.pending[i+1:]...)
			break
		}
	}
	w.mu.Unlock()

	if matched == nil {
		logrus.WithFields(logrus.Fields{
			"function": "Deliver",
			"payload":  payload,
		}).Debug("Dropping notification with no matching expectation")
		return false
	}

	if matched.timer != nil {
		matched.timer.Stop()
	}
	matched.result <- payload
	return true
}

// Await registers an expectation and waits for it.
func (w *AckWaiter) Await(ctx context.Context, prefix string, timeout time.Duration) (string, error) {
	return w.Register(prefix, timeout).Wait(ctx)
}

// AwaitOptional is Await with the timeout treated as "no acknowledgment":
// it returns ok=false and a nil error. Context cancellation is still an error.
func (w *AckWaiter) AwaitOptional(ctx context.Context, prefix string, timeout time.Duration) (string, bool, error) {
	payload, err := w.Await(ctx, prefix, timeout)
	if errors.Is(err, ErrAckTimeout) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return payload, true, nil
}

// Pending returns the number of outstanding expectations.
func (w *AckWaiter) Pending() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.pending)
}

func (w *AckWaiter) expire(p *PendingAck) {
	if !w.remove(p) {
		return
	}

	logrus.WithFields(logrus.Fields{
		"function": "expire",
		"prefix":   p.prefix,
	}).Debug("Acknowledgment expectation timed out")

	close(p.expired)
}

// remove drops p from the outstanding set and reports whether it was still there.
func (w *AckWaiter) remove(p *PendingAck) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	for i, q := range w.pending {
		if q == p {
			w.pending = append(w.pending[:i:i], w.pending[i+1:]...)
			if p.timer != nil {
				p.timer.Stop()
			}
			return true
		}
	}
	return false
}
