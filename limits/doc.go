// Package limits provides centralized wire-width constants and validation functions
// for the chunked upload protocol.
//
// # Field Widths
//
// The Start command describes an upload with two fixed-width fields:
//
//   - size (4 bytes): total payload length, so at most MaxPayloadSize bytes
//   - chunk count (2 bytes): at most MaxChunkCount chunks
//
// Every Chunk command is prefixed with a 2-byte index, so MaxChunkIndex bounds the
// addressable range. These are hard wire constraints, not conventions: the codec wraps
// values that overflow a field, which would silently corrupt an upload. Callers validate
// before encoding instead:
//
//	if err := limits.ValidatePayloadSize(len(data)); err != nil {
//	    // errors.Is(err, limits.ErrPayloadTooLarge)
//	}
//
// # GATT Writes
//
// MaxGATTAttribute (512 bytes) is the largest attribute value a GATT write may carry.
// Channels that sit on a GATT characteristic split longer frames into writes of at most
// this size.
package limits
