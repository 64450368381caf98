package file

import (
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/opd-ai/blefile/codec"
	"github.com/opd-ai/blefile/transport"
	"github.com/sirupsen/logrus"
)

// mockTimeProvider provides deterministic time for testing.
type mockTimeProvider struct {
	mu          sync.Mutex
	currentTime time.Time
}

func (m *mockTimeProvider) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.currentTime
}

func (m *mockTimeProvider) Since(t time.Time) time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.currentTime.Sub(t)
}

func (m *mockTimeProvider) advance(d time.Duration) {
	m.mu.Lock()
	m.currentTime = m.currentTime.Add(d)
	m.mu.Unlock()
}

func newMockTimeProvider() *mockTimeProvider {
	return &mockTimeProvider{
		currentTime: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

// deviceScript decides which notifications the mock device pushes back.
type deviceScript struct {
	// start is the C0 acknowledgment; empty means the device stays silent.
	start string
	// finalize holds one acknowledgment per finalize round; the last repeats.
	finalize []string
	rename   string
	// onSend runs for every command before any acknowledgment is pushed.
	onSend func(cmd transport.Command)
}

func okScript() *deviceScript {
	return &deviceScript{
		start:    startAck(0, 0),
		finalize: []string{finalizeAck(0, 0)},
		rename:   renameAck(0),
	}
}

func startAck(failed byte, written uint32) string {
	return fmt.Sprintf("BBC0%02X%08X", failed, written)
}

func finalizeAck(failed byte, lastIndex uint16) string {
	return fmt.Sprintf("BBC2%02X%04X", failed, lastIndex)
}

func renameAck(failed byte) string {
	return fmt.Sprintf("BBC3%02X", failed)
}

// mockChannel implements transport.Channel, records every command and answers
// synchronously from a deviceScript.
type mockChannel struct {
	connected atomic.Bool

	mu        sync.Mutex
	handlers  []transport.NotificationHandler
	sent      []transport.Command
	finalizes int
	script    *deviceScript
	sendErr   error
}

func newMockChannel(script *deviceScript) *mockChannel {
	m := &mockChannel{script: script}
	m.connected.Store(true)
	return m
}

func (m *mockChannel) IsConnected() bool {
	return m.connected.Load()
}

func (m *mockChannel) OnNotification(handler transport.NotificationHandler) {
	m.mu.Lock()
	m.handlers = append(m.handlers, handler)
	m.mu.Unlock()
}

func (m *mockChannel) Close() error {
	m.connected.Store(false)
	return nil
}

func (m *mockChannel) Send(ctx context.Context, cmd transport.Command) error {
	m.mu.Lock()
	if m.sendErr != nil {
		err := m.sendErr
		m.mu.Unlock()
		return err
	}
	m.sent = append(m.sent, cmd)
	script := m.script
	var reply string
	if script != nil {
		switch cmd.Op {
		case transport.OpStart:
			reply = script.start
		case transport.OpFinalize:
			if n := len(script.finalize); n > 0 {
				i := m.finalizes
				if i >= n {
					i = n - 1
				}
				reply = script.finalize[i]
			}
			m.finalizes++
		case transport.OpRename:
			reply = script.rename
		}
	}
	handlers := append([]transport.NotificationHandler(nil), m.handlers...)
	m.mu.Unlock()

	if script != nil && script.onSend != nil {
		script.onSend(cmd)
	}
	if reply == "" {
		return nil
	}
	for _, h := range handlers {
		h(reply)
	}
	return nil
}

func (m *mockChannel) commands() []transport.Command {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]transport.Command(nil), m.sent...)
}

func (m *mockChannel) ops() []transport.Opcode {
	cmds := m.commands()
	ops := make([]transport.Opcode, len(cmds))
	for i, c := range cmds {
		ops[i] = c.Op
	}
	return ops
}

// chunkIndices returns the index field of every chunk command in send order.
func (m *mockChannel) chunkIndices() []int {
	var out []int
	for _, c := range m.commands() {
		if c.Op == transport.OpChunk {
			out = append(out, chunkIndex(c))
		}
	}
	return out
}

func chunkIndex(cmd transport.Command) int {
	return int(codec.Field(cmd.Payload, 0, 2))
}

// progressRecorder captures every progress report.
type progressRecorder struct {
	mu      sync.Mutex
	reports [][2]int
}

func (p *progressRecorder) Report(sent, total int) {
	p.mu.Lock()
	p.reports = append(p.reports, [2]int{sent, total})
	p.mu.Unlock()
}

func (p *progressRecorder) last() [2]int {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.reports) == 0 {
		return [2]int{-1, -1}
	}
	return p.reports[len(p.reports)-1]
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func testOptions() Options {
	opts := DefaultOptions()
	opts.PaceInterval = 0
	opts.StartTimeout = testAckTimeout
	opts.FinalizeTimeout = testAckTimeout
	opts.RenameTimeout = testAckTimeout
	opts.Logger = quietLogger()
	opts.TimeProvider = newMockTimeProvider()
	return opts
}

// newTestSession wires a session to ch the way Uploader does.
func newTestSession(ch *mockChannel, data []byte, name string, opts Options) (*Session, error) {
	waiter := transport.NewAckWaiter()
	ch.OnNotification(func(p string) { waiter.Deliver(p) })
	return NewSession(ch, waiter, data, name, opts)
}

func testPayload(size int) []byte {
	data := make([]byte, size)
	for i := range data {
		data[i] = byte(i * 7)
	}
	return data
}
