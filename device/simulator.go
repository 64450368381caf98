package device

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/opd-ai/blefile/codec"
	"github.com/opd-ai/blefile/transport"
	"github.com/sirupsen/logrus"
)

const (
	startHeaderLen  = 8 // size(4) + count(2) + marker(2)
	renameHeaderLen = 2 // marker(2)
	chunkHeaderLen  = 2 // index(2)
)

var (
	// ErrMalformedCommand indicates a command payload too short for its opcode.
	ErrMalformedCommand = errors.New("malformed command")
	// ErrUnknownOpcode indicates a frame with an opcode the device does not handle.
	ErrUnknownOpcode = errors.New("unknown opcode")
)

// Faults injects device-side failures.
type Faults struct {
	// RejectStart answers every start command with the failure flag set.
	RejectStart bool
	// DropChunks lists chunk indices discarded the first time they arrive.
	DropChunks []int
	// RejectRename answers every rename command with the failure flag set.
	RejectRename bool
	// Silent lists opcodes the device never acknowledges.
	Silent []transport.Opcode
}

func (f Faults) silent(op transport.Opcode) bool {
	for _, s := range f.Silent {
		if s == op {
			return true
		}
	}
	return false
}

// upload is the device-side state of one incoming file.
type upload struct {
	id     string
	name   string
	size   int
	count  int
	chunks map[int][]byte
	data   []byte // set once finalize succeeds
}

// contiguous returns the bytes received in order from chunk 0.
func (u *upload) contiguous() int {
	n := 0
	for i := 0; i < u.count; i++ {
		c, ok := u.chunks[i]
		if !ok {
			break
		}
		n += len(c)
	}
	return n
}

func (u *upload) firstMissing() (int, bool) {
	for i := 0; i < u.count; i++ {
		if _, ok := u.chunks[i]; !ok {
			return i, true
		}
	}
	return 0, false
}

func (u *upload) assemble() []byte {
	out := make([]byte, 0, u.size)
	for i := 0; i < u.count; i++ {
		out = append(out, u.chunks[i]...)
	}
	return out
}

type partialKey struct {
	name string
	size int
}

// Simulator is an in-memory upload target speaking the C0-C3 protocol. An
// upload interrupted by a new start is remembered, so a later start for the
// same name and size reports the bytes already written.
type Simulator struct {
	framer *transport.Framer
	log    *logrus.Entry

	mu      sync.Mutex
	faults  Faults
	dropped map[int]bool
	current *upload
	partial map[partialKey]*upload
	files   map[string][]byte
}

// NewSimulator creates a device with the given faults. A nil framer selects
// transport.NewFramer.
func NewSimulator(faults Faults, framer *transport.Framer) *Simulator {
	if framer == nil {
		framer = transport.NewFramer()
	}
	return &Simulator{
		framer:  framer,
		log:     logrus.WithField("component", "simulator"),
		faults:  faults,
		dropped: make(map[int]bool),
		partial: make(map[partialKey]*upload),
		files:   make(map[string][]byte),
	}
}

// SetFaults replaces the injected faults. Chunks already dropped are not
// dropped again.
func (s *Simulator) SetFaults(faults Faults) {
	s.mu.Lock()
	s.faults = faults
	s.mu.Unlock()
}

// Handle processes one frame and returns the notification to push back, or
// nil when the command is not acknowledged.
func (s *Simulator) Handle(frame []byte) ([]byte, error) {
	cmd, err := s.framer.Decode(frame)
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"function": "Handle",
			"error":    err.Error(),
		}).Warn("Dropping undecodable frame")
		return nil, err
	}
	payload, err := codec.DecodeHex(cmd.Payload)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var ack []byte
	switch cmd.Op {
	case transport.OpStart:
		ack, err = s.start(payload)
	case transport.OpChunk:
		err = s.chunk(payload)
	case transport.OpFinalize:
		ack = s.finalize()
	case transport.OpRename:
		ack, err = s.rename(payload)
	default:
		err = fmt.Errorf("%w: %s", ErrUnknownOpcode, cmd.Op)
	}
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"function": "Handle",
			"opcode":   cmd.Op.String(),
			"error":    err.Error(),
		}).Warn("Command failed")
		return nil, err
	}
	if ack == nil || s.faults.silent(cmd.Op) {
		return nil, nil
	}
	return ack, nil
}

func (s *Simulator) start(payload []byte) ([]byte, error) {
	if len(payload) < startHeaderLen {
		return nil, fmt.Errorf("%w: start payload %d bytes", ErrMalformedCommand, len(payload))
	}
	size := int(binary.BigEndian.Uint32(payload[0:4]))
	count := int(binary.BigEndian.Uint16(payload[4:6]))
	name, err := codec.DecodeUTF16LENull(codec.EncodeHex(payload[startHeaderLen:]))
	if err != nil {
		return nil, fmt.Errorf("start name: %w", err)
	}

	if s.current != nil && s.current.data == nil {
		s.partial[partialKey{s.current.name, s.current.size}] = s.current
	}
	s.current = nil

	if s.faults.RejectStart {
		return ack(transport.OpStart, 1, 0, 4), nil
	}

	key := partialKey{name, size}
	u, resumed := s.partial[key]
	if resumed && u.count == count {
		delete(s.partial, key)
	} else {
		u = &upload{
			id:     uuid.New().String(),
			name:   name,
			size:   size,
			count:  count,
			chunks: make(map[int][]byte),
		}
	}
	s.current = u
	written := u.contiguous()

	s.log.WithFields(logrus.Fields{
		"function":    "start",
		"upload_id":   u.id,
		"file_name":   name,
		"size":        size,
		"chunk_count": count,
		"written":     written,
	}).Info("Upload started")

	return ack(transport.OpStart, 0, uint64(written), 4), nil
}

func (s *Simulator) chunk(payload []byte) error {
	if len(payload) < chunkHeaderLen {
		return fmt.Errorf("%w: chunk payload %d bytes", ErrMalformedCommand, len(payload))
	}
	if s.current == nil {
		s.log.WithField("function", "chunk").Debug("Chunk without active upload ignored")
		return nil
	}
	idx := int(binary.BigEndian.Uint16(payload[:chunkHeaderLen]))
	for _, d := range s.faults.DropChunks {
		if d == idx && !s.dropped[idx] {
			s.dropped[idx] = true
			s.log.WithFields(logrus.Fields{
				"function": "chunk",
				"index":    idx,
			}).Debug("Dropping chunk")
			return nil
		}
	}
	s.current.chunks[idx] = append([]byte(nil), payload[chunkHeaderLen:]...)
	return nil
}

func (s *Simulator) finalize() []byte {
	u := s.current
	if u == nil {
		return ack(transport.OpFinalize, 1, 0, 2)
	}
	if missing, ok := u.firstMissing(); ok {
		s.log.WithFields(logrus.Fields{
			"function":  "finalize",
			"upload_id": u.id,
			"missing":   missing,
		}).Info("Finalize found missing chunk")
		return ack(transport.OpFinalize, 1, uint64(missing), 2)
	}
	data := u.assemble()
	if len(data) != u.size {
		s.log.WithFields(logrus.Fields{
			"function":  "finalize",
			"upload_id": u.id,
			"received":  len(data),
			"size":      u.size,
		}).Warn("Finalize size mismatch")
		return ack(transport.OpFinalize, 2, 0, 2)
	}
	u.data = data
	return ack(transport.OpFinalize, 0, 0, 2)
}

func (s *Simulator) rename(payload []byte) ([]byte, error) {
	if len(payload) < renameHeaderLen {
		return nil, fmt.Errorf("%w: rename payload %d bytes", ErrMalformedCommand, len(payload))
	}
	name, err := codec.DecodeUTF16LENull(codec.EncodeHex(payload[renameHeaderLen:]))
	if err != nil {
		return nil, fmt.Errorf("rename name: %w", err)
	}

	u := s.current
	if s.faults.RejectRename || u == nil || u.data == nil {
		return ack(transport.OpRename, 1, 0, 0), nil
	}
	s.files[name] = u.data
	s.current = nil

	s.log.WithFields(logrus.Fields{
		"function":  "rename",
		"upload_id": u.id,
		"file_name": name,
		"size":      len(u.data),
	}).Info("Upload stored")

	return ack(transport.OpRename, 0, 0, 0), nil
}

// Files returns the stored file names in order.
func (s *Simulator) Files() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.files))
	for name := range s.files {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// File returns the contents stored under name.
func (s *Simulator) File(name string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.files[name]
	return data, ok
}

// ack builds BB <op> <failed> <field of width bytes>.
func ack(op transport.Opcode, failed byte, field uint64, width int) []byte {
	out := []byte{transport.AckHeader, byte(op), failed}
	for i := width - 1; i >= 0; i-- {
		out = append(out, byte(field>>(8*uint(i))))
	}
	return out
}
