package file

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/opd-ai/blefile/codec"
	"github.com/opd-ai/blefile/limits"
	"github.com/opd-ai/blefile/transport"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// Acknowledgment field offsets, in hex characters from the start of the payload.
const (
	ackFailedOffset = 4
	ackFieldOffset  = 6
)

// Session uploads one payload: start, stream, finalize with replay, rename.
//
// A Session is single-use. Run drives it to completion on the calling
// goroutine; Cancel, State, Progress and Stats may be called from others.
type Session struct {
	id      string
	data    []byte
	name    string
	nameHex string
	plan    ChunkPlan

	channel transport.Channel
	waiter  *transport.AckWaiter
	opts    Options
	log     *logrus.Entry
	limiter *rate.Limiter
	chunks  *ChunkStore

	cancelled atomic.Bool
	ran       atomic.Bool

	mu         sync.Mutex
	state      SessionState
	current    int
	resumeFrom int // -1 when unset
	stop       context.CancelFunc
	stats      Stats
	meter      *speedMeter
}

// NewSession prepares an upload of data under name. The payload is copied, so
// the caller may reuse data afterwards. Notifications from ch must be delivered
// to waiter by the caller.
func NewSession(ch transport.Channel, waiter *transport.AckWaiter, data []byte, name string, opts Options) (*Session, error) {
	if ch == nil {
		return nil, ErrNilChannel
	}
	if waiter == nil {
		return nil, ErrNilWaiter
	}
	if err := limits.ValidatePayloadSize(uint64(len(data))); err != nil {
		return nil, err
	}

	opts = opts.withDefaults()
	plan := PlanChunks(len(data), opts.Planner)
	if err := limits.ValidateChunkCount(plan.ChunkCount); err != nil {
		return nil, err
	}

	safeName := codec.SanitizeASCIIName(name, opts.NameLength)
	id := uuid.New().String()

	s := &Session{
		id:         id,
		data:       append([]byte(nil), data...),
		name:       safeName,
		nameHex:    codec.EncodeUTF16LENull(safeName),
		plan:       plan,
		channel:    ch,
		waiter:     waiter,
		opts:       opts,
		chunks:     NewChunkStore(),
		resumeFrom: -1,
		log: opts.Logger.WithFields(logrus.Fields{
			"transfer_id": id,
			"file_name":   safeName,
		}),
	}
	if opts.PaceInterval > 0 {
		s.limiter = rate.NewLimiter(rate.Every(opts.PaceInterval), 1)
	}
	s.stats = Stats{
		TransferID: id,
		Name:       safeName,
		Size:       len(data),
		ChunkSize:  plan.ChunkSize,
		ChunkCount: plan.ChunkCount,
	}

	s.log.WithFields(logrus.Fields{
		"function":    "NewSession",
		"size":        len(data),
		"chunk_size":  plan.ChunkSize,
		"chunk_count": plan.ChunkCount,
	}).Debug("Upload session created")

	return s, nil
}

// ID returns the transfer identifier used in logs.
func (s *Session) ID() string { return s.id }

// Name returns the sanitized ASCII file name.
func (s *Session) Name() string { return s.name }

// Plan returns the chunking chosen for the payload.
func (s *Session) Plan() ChunkPlan { return s.plan }

// State returns the current phase.
func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Progress returns the chunk cursor and the chunk count.
func (s *Session) Progress() (sent, total int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current, s.plan.ChunkCount
}

// Stats returns a snapshot of transfer statistics.
func (s *Session) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.stats
	st.State = s.state
	if s.meter != nil {
		st.Elapsed = s.meter.elapsed()
		st.Speed = s.meter.speed
	}
	return st
}

// RetainedChunks returns the number of chunk payloads held for replay.
func (s *Session) RetainedChunks() int {
	return s.chunks.Len()
}

// Cancel requests cooperative cancellation. The run stops at the next chunk
// boundary or interrupts the wait in progress.
func (s *Session) Cancel() {
	s.cancelled.Store(true)
	s.mu.Lock()
	stop := s.stop
	s.mu.Unlock()
	if stop != nil {
		stop()
	}
	s.log.WithField("function", "Cancel").Info("Cancellation requested")
}

// RequestResume makes the streaming loop jump to index before its next send.
func (s *Session) RequestResume(index int) error {
	if index < 0 || index > s.plan.ChunkCount {
		return fmt.Errorf("%w: %d not in [0, %d]", ErrResumeOutOfRange, index, s.plan.ChunkCount)
	}
	s.mu.Lock()
	s.resumeFrom = index
	s.mu.Unlock()
	return nil
}

// Run executes the upload. It returns nil once the device has renamed the
// file, or a *TransferError naming the phase that failed.
func (s *Session) Run(ctx context.Context) (err error) {
	if !s.channel.IsConnected() {
		s.log.WithField("function", "Run").Warn("Not connected, cannot send file")
		return &TransferError{Phase: StateIdle, Err: ErrNotConnected}
	}
	if !s.ran.CompareAndSwap(false, true) {
		return &TransferError{Phase: s.State(), Err: ErrSessionUsed}
	}

	ctx, stop := context.WithCancel(ctx)
	defer stop()

	s.mu.Lock()
	s.stop = stop
	s.current = 0
	s.meter = newSpeedMeter(s.opts.TimeProvider)
	s.mu.Unlock()
	s.chunks.Clear()
	s.opts.Progress.Report(0, 0)
	if s.cancelled.Load() {
		stop()
	}

	defer s.finish(&err)

	s.setState(StateStarting)
	if err := s.checkContinue(ctx); err != nil {
		return s.fail(err)
	}
	startIndex, err := s.start(ctx)
	if err != nil {
		return s.fail(err)
	}

	s.setState(StateStreaming)
	if err := s.stream(ctx, startIndex); err != nil {
		return s.fail(err)
	}

	s.setState(StateFinalizing)
	if err := s.finalize(ctx); err != nil {
		return s.fail(err)
	}

	s.setState(StateRenaming)
	if err := s.rename(ctx); err != nil {
		return s.fail(err)
	}

	s.setState(StateComplete)
	return nil
}

// start sends the start command and returns the chunk index to stream from.
func (s *Session) start(ctx context.Context) (int, error) {
	size := len(s.data)
	payload := codec.EncodeIntBE(uint64(size), limits.SizeFieldWidth) +
		codec.EncodeIntBE(uint64(s.plan.ChunkCount), limits.CountFieldWidth) +
		s.opts.Marker +
		s.nameHex

	s.log.WithFields(logrus.Fields{
		"function":    "start",
		"size":        size,
		"chunk_size":  s.plan.ChunkSize,
		"chunk_count": s.plan.ChunkCount,
	}).Info("Starting upload")

	ack, err := s.exchange(ctx, transport.Command{Op: transport.OpStart, Payload: payload}, s.opts.StartTimeout)
	if err != nil {
		return 0, err
	}

	failed := codec.Field(ack, ackFailedOffset, 1)
	written := codec.Field(ack, ackFieldOffset, limits.SizeFieldWidth)
	s.log.WithFields(logrus.Fields{
		"function": "start",
		"failed":   failed,
		"written":  written,
	}).Debug("Start acknowledged")

	if failed != 0 {
		return 0, fmt.Errorf("%w (flag %d)", ErrStartRejected, failed)
	}

	per := uint64(s.plan.ChunkSize)
	startIndex := int(written / per)
	if startIndex > s.plan.ChunkCount {
		startIndex = s.plan.ChunkCount
	}

	if written%per != 0 {
		s.log.WithFields(logrus.Fields{
			"function":    "start",
			"written":     written,
			"start_index": startIndex,
		}).Warn("Resume align: device wrote a partial chunk, resuming at chunk boundary")
	} else if startIndex > 0 {
		s.log.WithFields(logrus.Fields{
			"function":    "start",
			"written":     written,
			"start_index": startIndex,
		}).Warn("Resuming at chunk index reported by device")
	}

	s.mu.Lock()
	s.stats.StartIndex = startIndex
	s.current = startIndex
	s.mu.Unlock()

	return startIndex, nil
}

// stream writes chunks [from, count) in ascending order.
func (s *Session) stream(ctx context.Context, from int) error {
	count := s.plan.ChunkCount
	for idx := from; idx < count; idx++ {
		if err := s.checkContinue(ctx); err != nil {
			return err
		}
		if next, ok := s.takeResume(); ok {
			s.log.WithFields(logrus.Fields{
				"function": "stream",
				"from":     idx,
				"to":       next,
			}).Info("Jumping to resume cursor")
			idx = next
			if idx >= count {
				break
			}
		}

		start, end := s.plan.Bounds(idx, len(s.data))
		payload := codec.EncodeIntBE(uint64(idx), limits.IndexFieldWidth) + codec.EncodeHex(s.data[start:end])
		s.chunks.Put(idx, payload)

		if err := s.send(ctx, transport.Command{Op: transport.OpChunk, Payload: payload}); err != nil {
			return err
		}
		s.advance(idx+1, end-start, false)

		if err := s.pace(ctx); err != nil {
			return err
		}
	}
	return nil
}

// finalize commits the upload, replaying retained chunks from the cursor the
// device reports for up to FinalizeRetries rounds.
func (s *Session) finalize(ctx context.Context) error {
	cmd := transport.Command{Op: transport.OpFinalize, Trailer: FinalizeTrailer}

	for round := 0; ; round++ {
		ack, err := s.exchange(ctx, cmd, s.opts.FinalizeTimeout)
		if err != nil {
			return err
		}
		s.mu.Lock()
		s.stats.FinalizeRounds = round + 1
		s.mu.Unlock()

		failed := codec.Field(ack, ackFailedOffset, 1)
		if failed == 0 {
			return nil
		}

		if round >= s.opts.FinalizeRetries {
			if s.opts.StrictFinalize {
				return fmt.Errorf("%w after %d replay rounds (flag %d)", ErrFinalizeRejected, round, failed)
			}
			s.log.WithFields(logrus.Fields{
				"function": "finalize",
				"rounds":   round,
				"failed":   failed,
			}).Warn("Device still reports finalize failure after replay, proceeding to rename")
			return nil
		}

		last := int(codec.Field(ack, ackFieldOffset, limits.IndexFieldWidth))
		if last > s.plan.ChunkCount {
			last = s.plan.ChunkCount
		}
		s.log.WithFields(logrus.Fields{
			"function":   "finalize",
			"last_index": last,
			"chunks":     s.plan.ChunkCount,
		}).Warn("Finalize reported missing data, replaying retained chunks")

		if err := s.RequestResume(last); err != nil {
			return err
		}
		if err := s.replay(ctx); err != nil {
			return err
		}
	}
}

// replay re-sends retained chunks from the resume cursor to the end.
func (s *Session) replay(ctx context.Context) error {
	from, ok := s.takeResume()
	if !ok {
		return nil
	}
	s.mu.Lock()
	s.current = from
	s.mu.Unlock()

	for idx := from; idx < s.plan.ChunkCount; idx++ {
		if err := s.checkContinue(ctx); err != nil {
			return err
		}
		payload, ok := s.chunks.Get(idx)
		if !ok {
			s.log.WithFields(logrus.Fields{
				"function": "replay",
				"index":    idx,
			}).Warn("No retained payload for chunk, stopping replay")
			return nil
		}
		if err := s.send(ctx, transport.Command{Op: transport.OpChunk, Payload: payload}); err != nil {
			return err
		}
		s.advance(idx+1, len(payload)/2-limits.IndexFieldWidth, true)

		if err := s.pace(ctx); err != nil {
			return err
		}
	}
	return nil
}

// rename moves the committed file to its final name.
func (s *Session) rename(ctx context.Context) error {
	cmd := transport.Command{
		Op:      transport.OpRename,
		Payload: s.opts.Marker + s.nameHex,
		Trailer: FinalizeTrailer,
	}
	ack, err := s.exchange(ctx, cmd, s.opts.RenameTimeout)
	if err != nil {
		return err
	}
	if failed := codec.Field(ack, ackFailedOffset, 1); failed != 0 {
		return fmt.Errorf("%w (flag %d)", ErrRenameRejected, failed)
	}
	return nil
}

// exchange registers for the acknowledgment, sends cmd and waits.
func (s *Session) exchange(ctx context.Context, cmd transport.Command, timeout time.Duration) (string, error) {
	pending := s.waiter.Register(cmd.Op.AckPrefix(), timeout)
	if err := s.send(ctx, cmd); err != nil {
		pending.Cancel()
		return "", err
	}
	ack, err := pending.Wait(ctx)
	if err != nil {
		return "", s.interrupted(ctx, err)
	}
	return ack, nil
}

func (s *Session) send(ctx context.Context, cmd transport.Command) error {
	if !s.channel.IsConnected() {
		return ErrDisconnected
	}
	if err := s.channel.Send(ctx, cmd); err != nil {
		if !s.channel.IsConnected() || errors.Is(err, transport.ErrChannelClosed) {
			return fmt.Errorf("%w: %v", ErrDisconnected, err)
		}
		return s.interrupted(ctx, fmt.Errorf("send %s: %w", cmd.Op, err))
	}
	return nil
}

// checkContinue is the cooperative check made before every chunk write.
func (s *Session) checkContinue(ctx context.Context) error {
	if !s.channel.IsConnected() {
		return ErrDisconnected
	}
	if s.cancelled.Load() {
		return ErrCancelled
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrCancelled, err)
	}
	return nil
}

func (s *Session) pace(ctx context.Context) error {
	if s.limiter == nil {
		return nil
	}
	if err := s.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrCancelled, err)
	}
	return nil
}

// interrupted maps context errors to ErrCancelled and passes others through.
func (s *Session) interrupted(ctx context.Context, err error) error {
	if s.cancelled.Load() || ctx.Err() != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("%w: %v", ErrCancelled, err)
		}
	}
	return err
}

func (s *Session) takeResume() (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.resumeFrom < 0 {
		return 0, false
	}
	idx := s.resumeFrom
	s.resumeFrom = -1
	return idx, true
}

func (s *Session) advance(current, n int, replayed bool) {
	s.mu.Lock()
	s.current = current
	s.stats.BytesSent += uint64(n)
	if replayed {
		s.stats.ChunksReplayed++
	} else {
		s.stats.ChunksSent++
	}
	s.meter.update(n)
	total := s.plan.ChunkCount
	s.mu.Unlock()

	s.opts.Progress.Report(current, total)
	s.log.WithFields(logrus.Fields{
		"function": "advance",
		"chunk":    current,
		"total":    total,
		"replayed": replayed,
	}).Debug("Chunk written")
}

func (s *Session) setState(state SessionState) {
	s.mu.Lock()
	prev := s.state
	s.state = state
	s.mu.Unlock()

	s.log.WithFields(logrus.Fields{
		"function": "setState",
		"from":     prev.String(),
		"to":       state.String(),
	}).Debug("Session state changed")
}

func (s *Session) fail(err error) error {
	return &TransferError{Phase: s.State(), Err: err}
}

// finish is the single cleanup path for every exit from Run.
func (s *Session) finish(errp *error) {
	s.chunks.Clear()

	s.mu.Lock()
	s.stop = nil
	s.resumeFrom = -1
	s.meter.stop()
	s.mu.Unlock()

	if err := *errp; err != nil {
		s.setState(StateAborted)
		s.mu.Lock()
		s.current = 0
		s.mu.Unlock()
		s.opts.Progress.Report(0, 0)

		s.log.WithFields(logrus.Fields{
			"function": "Run",
			"error":    err.Error(),
		}).Error("File send error")
		return
	}

	st := s.Stats()
	s.log.WithFields(logrus.Fields{
		"function":        "Run",
		"chunks_sent":     st.ChunksSent,
		"chunks_replayed": st.ChunksReplayed,
		"bytes_sent":      st.BytesSent,
		"elapsed":         st.Elapsed,
	}).Info("File transfer complete")

	if s.opts.OnComplete != nil {
		s.opts.OnComplete()
	}
}
