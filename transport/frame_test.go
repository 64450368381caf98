package transport

import (
	"testing"

	"github.com/sigurn/crc8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpcodeStrings(t *testing.T) {
	assert.Equal(t, "C0", OpStart.String())
	assert.Equal(t, "C1", OpChunk.String())
	assert.Equal(t, "BBC2", OpFinalize.AckPrefix())
	assert.Equal(t, "BBC3", OpRename.AckPrefix())
}

func TestFramer_EncodeLayout(t *testing.T) {
	f := NewFramer()

	frame, err := f.Encode(Command{Op: OpChunk, Payload: "0003A1B2", Trailer: 0})
	require.NoError(t, err)
	require.Len(t, frame, 2+4+1)
	assert.Equal(t, []byte{0xAA, 0xC1, 0x00, 0x03, 0xA1, 0xB2}, frame[:6])
	assert.Equal(t, crc8.Checksum(frame[:6], crc8.MakeTable(crc8.CRC8)), frame[6])
}

func TestFramer_TrailerPadsPayload(t *testing.T) {
	f := NewFramer()

	frame, err := f.Encode(Command{Op: OpFinalize, Payload: "", Trailer: 8})
	require.NoError(t, err)
	assert.Len(t, frame, 2+8+1)
	assert.Equal(t, make([]byte, 8), frame[2:10])

	// payloads longer than the trailer are untouched
	frame, err = f.Encode(Command{Op: OpRename, Payload: "5C5561006200630000000000", Trailer: 8})
	require.NoError(t, err)
	assert.Len(t, frame, 2+12+1)
}

func TestFramer_RoundTrip(t *testing.T) {
	f := NewFramer()
	cmd := Command{Op: OpStart, Payload: "000007D000025C5561000000"}

	frame, err := f.Encode(cmd)
	require.NoError(t, err)

	got, err := f.Decode(frame)
	require.NoError(t, err)
	assert.Equal(t, cmd.Op, got.Op)
	assert.Equal(t, cmd.Payload, got.Payload)
}

func TestFramer_DecodeErrors(t *testing.T) {
	f := NewFramer()

	_, err := f.Decode([]byte{0xAA, 0xC0})
	assert.ErrorIs(t, err, ErrFrameTooShort)

	_, err = f.Decode([]byte{0x00, 0xC0, 0x00})
	assert.ErrorIs(t, err, ErrBadFrameHeader)

	frame, err := f.Encode(Command{Op: OpChunk, Payload: "0000FF"})
	require.NoError(t, err)
	frame[len(frame)-1] ^= 0xFF
	_, err = f.Decode(frame)
	assert.ErrorIs(t, err, ErrChecksumMismatch)
}

func TestFramer_InvalidPayload(t *testing.T) {
	_, err := NewFramer().Encode(Command{Op: OpChunk, Payload: "ABC"})
	assert.Error(t, err)
}

func TestFramer_CustomParams(t *testing.T) {
	maxim := NewFramerWithParams(crc8.CRC8_MAXIM)
	frame, err := maxim.Encode(Command{Op: OpFinalize, Trailer: 8})
	require.NoError(t, err)

	_, err = NewFramer().Decode(frame)
	assert.ErrorIs(t, err, ErrChecksumMismatch)

	_, err = maxim.Decode(frame)
	assert.NoError(t, err)
}
