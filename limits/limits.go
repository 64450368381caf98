// Package limits provides centralized wire-width limits for the upload protocol.
// This ensures consistent validation across the codec, planner and session.
package limits

import (
	"errors"
	"fmt"
)

const (
	// MaxPayloadSize is the largest upload the Start command can describe.
	// The size field is 4 bytes wide on the wire.
	MaxPayloadSize = 0xFFFFFFFF

	// MaxChunkCount is the largest chunk count the Start command can describe.
	// The count field is 2 bytes wide on the wire.
	MaxChunkCount = 0xFFFF

	// MaxChunkIndex is the highest index a Chunk command can address.
	MaxChunkIndex = MaxChunkCount

	// SizeFieldWidth is the width in bytes of the Start size field
	SizeFieldWidth = 4

	// CountFieldWidth is the width in bytes of the Start chunk count field
	CountFieldWidth = 2

	// IndexFieldWidth is the width in bytes of a chunk index
	IndexFieldWidth = 2

	// MaxGATTAttribute is the largest value a single GATT write may carry.
	MaxGATTAttribute = 512
)

var (
	// ErrPayloadTooLarge indicates the payload does not fit the 4-byte size field
	ErrPayloadTooLarge = errors.New("payload too large")

	// ErrTooManyChunks indicates the chunk count does not fit the 2-byte count field
	ErrTooManyChunks = errors.New("too many chunks")

	// ErrChunkIndexOutOfRange indicates a chunk index does not fit the 2-byte index field
	ErrChunkIndexOutOfRange = errors.New("chunk index out of range")
)

// ValidatePayloadSize validates a payload length against MaxPayloadSize.
// An empty payload is valid: it produces zero chunks.
func ValidatePayloadSize(size uint64) error {
	if size > MaxPayloadSize {
		return fmt.Errorf("%w: size %d exceeds limit %d", ErrPayloadTooLarge, size, uint64(MaxPayloadSize))
	}
	return nil
}

// ValidateChunkCount validates a planned chunk count against MaxChunkCount.
func ValidateChunkCount(count int) error {
	if count > MaxChunkCount {
		return fmt.Errorf("%w: count %d exceeds limit %d", ErrTooManyChunks, count, MaxChunkCount)
	}
	return nil
}

// ValidateChunkIndex validates a chunk index against MaxChunkIndex.
func ValidateChunkIndex(index int) error {
	if index < 0 || index > MaxChunkIndex {
		return fmt.Errorf("%w: index %d outside [0, %d]", ErrChunkIndexOutOfRange, index, MaxChunkIndex)
	}
	return nil
}
