// Package codec holds the stateless encoders shared by the upload session and the
// device simulator.
//
// The channel carries commands as uppercase hexadecimal text. Integers are written
// as fixed-width big-endian fields that wrap on overflow:
//
//	codec.EncodeIntBE(2000, 4)    // "000007D0"
//	codec.EncodeIntBE(0x12345, 2) // "2345"
//
// Acknowledgments are read back with Field, which treats a missing or short field
// as zero:
//
//	failed := codec.Field(ack, 4, 1)
//	written := codec.Field(ack, 6, 4)
//
// File names travel twice. EncodeUTF16LENull produces the display name the device
// shows, while SanitizeASCIIName produces the short ASCII label its filesystem
// stores.
package codec
