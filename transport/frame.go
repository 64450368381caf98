package transport

import (
	"errors"
	"fmt"

	"github.com/opd-ai/blefile/codec"
	"github.com/sigurn/crc8"
)

// Opcode identifies an upload command on the wire.
type Opcode byte

const (
	// OpStart announces an upload: size, chunk count, marker and display name.
	OpStart Opcode = 0xC0
	// OpChunk carries one indexed chunk of file data.
	OpChunk Opcode = 0xC1
	// OpFinalize asks the device to commit the received chunks.
	OpFinalize Opcode = 0xC2
	// OpRename moves the committed file to its final name.
	OpRename Opcode = 0xC3
)

// FrameHeader starts every command frame.
const FrameHeader byte = 0xAA

// AckHeader starts every acknowledgment the device pushes back.
const AckHeader byte = 0xBB

var (
	// ErrFrameTooShort indicates a frame without header, opcode and checksum.
	ErrFrameTooShort = errors.New("frame too short")
	// ErrBadFrameHeader indicates a frame that does not start with FrameHeader.
	ErrBadFrameHeader = errors.New("bad frame header")
	// ErrChecksumMismatch indicates a frame whose CRC-8 does not match its contents.
	ErrChecksumMismatch = errors.New("frame checksum mismatch")
)

// String returns the opcode as the two hex characters used on the wire.
func (o Opcode) String() string {
	return codec.EncodeHex([]byte{byte(o)})
}

// AckPrefix returns the notification prefix that acknowledges this opcode.
func (o Opcode) AckPrefix() string {
	return codec.EncodeHex([]byte{AckHeader, byte(o)})
}

// Command is one upload command before framing.
type Command struct {
	Op Opcode
	// Payload is uppercase hex text.
	Payload string
	// Trailer is the minimum payload length in bytes; shorter payloads are
	// zero-padded up to it.
	Trailer byte
}

// Framer turns commands into checksummed frames and back.
//
// Frame format: [0xAA][opcode][payload, zero-padded to Trailer bytes][CRC-8]
type Framer struct {
	table *crc8.Table
}

// NewFramer creates a Framer using the CRC-8 (poly 0x07) checksum.
func NewFramer() *Framer {
	return NewFramerWithParams(crc8.CRC8)
}

// NewFramerWithParams creates a Framer with custom CRC-8 parameters.
func NewFramerWithParams(params crc8.Params) *Framer {
	return &Framer{table: crc8.MakeTable(params)}
}

// Encode builds the frame for cmd.
func (f *Framer) Encode(cmd Command) ([]byte, error) {
	payload, err := codec.DecodeHex(cmd.Payload)
	if err != nil {
		return nil, fmt.Errorf("invalid %s payload: %w", cmd.Op, err)
	}
	if pad := int(cmd.Trailer) - len(payload); pad > 0 {
		payload = append(payload, make([]byte, pad)...)
	}

	frame := make([]byte, 0, 3+len(payload))
	frame = append(frame, FrameHeader, byte(cmd.Op))
	frame = append(frame, payload...)
	frame = append(frame, crc8.Checksum(frame, f.table))
	return frame, nil
}

// Decode parses a frame produced by Encode. The returned payload keeps any
// padding, since padding cannot be told apart from trailing zero bytes.
func (f *Framer) Decode(frame []byte) (Command, error) {
	if len(frame) < 3 {
		return Command{}, fmt.Errorf("%w: %d bytes", ErrFrameTooShort, len(frame))
	}
	if frame[0] != FrameHeader {
		return Command{}, fmt.Errorf("%w: 0x%02X", ErrBadFrameHeader, frame[0])
	}
	body, sum := frame[:len(frame)-1], frame[len(frame)-1]
	if want := crc8.Checksum(body, f.table); want != sum {
		return Command{}, fmt.Errorf("%w: got 0x%02X want 0x%02X", ErrChecksumMismatch, sum, want)
	}
	return Command{
		Op:      Opcode(frame[1]),
		Payload: codec.EncodeHex(body[2:]),
	}, nil
}

// Checksum returns the CRC-8 of data under this framer's parameters.
func (f *Framer) Checksum(data []byte) byte {
	return crc8.Checksum(data, f.table)
}
