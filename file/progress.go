package file

import "time"

// ProgressSink receives chunk progress after every chunk send or replay.
type ProgressSink interface {
	Report(sent, total int)
}

// ProgressFunc adapts a function to ProgressSink.
type ProgressFunc func(sent, total int)

// Report implements ProgressSink.
func (f ProgressFunc) Report(sent, total int) { f(sent, total) }

type nopProgress struct{}

func (nopProgress) Report(int, int) {}

// Stats summarizes a session.
type Stats struct {
	TransferID     string
	Name           string
	State          SessionState
	Size           int
	ChunkSize      int
	ChunkCount     int
	StartIndex     int
	ChunksSent     int
	ChunksReplayed int
	BytesSent      uint64
	FinalizeRounds int
	Elapsed        time.Duration
	// Speed is an exponential moving average in bytes per second.
	Speed float64
}

// speedMeter tracks an exponential moving average of the send rate.
type speedMeter struct {
	tp       TimeProvider
	last     time.Time
	speed    float64
	started  time.Time
	finished time.Time
}

func newSpeedMeter(tp TimeProvider) *speedMeter {
	now := tp.Now()
	return &speedMeter{tp: tp, last: now, started: now}
}

func (m *speedMeter) update(n int) {
	now := m.tp.Now()
	duration := m.tp.Since(m.last).Seconds()

	if duration > 0 {
		instant := float64(n) / duration

		// Exponential moving average with alpha = 0.3
		if m.speed == 0 {
			m.speed = instant
		} else {
			m.speed = 0.7*m.speed + 0.3*instant
		}
	}

	m.last = now
}

func (m *speedMeter) stop() {
	m.finished = m.tp.Now()
}

func (m *speedMeter) elapsed() time.Duration {
	if !m.finished.IsZero() {
		return m.finished.Sub(m.started)
	}
	return m.tp.Since(m.started)
}
