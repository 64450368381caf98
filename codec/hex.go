// Package codec converts between binary data and the uppercase hexadecimal text
// representation the upload channel carries.
package codec

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrOddLength indicates hex text with an incomplete trailing byte.
var ErrOddLength = errors.New("hex text has odd length")

// EncodeHex renders each byte as two uppercase hexadecimal characters.
func EncodeHex(data []byte) string {
	return strings.ToUpper(hex.EncodeToString(data))
}

// DecodeHex parses hexadecimal text in either case.
func DecodeHex(text string) ([]byte, error) {
	if len(text)%2 != 0 {
		return nil, fmt.Errorf("%w: %d characters", ErrOddLength, len(text))
	}
	return hex.DecodeString(text)
}

// EncodeIntBE encodes n as width bytes of big-endian hex text.
// Values that do not fit are truncated to their low width*8 bits, mirroring the
// fixed-width command fields of the channel.
func EncodeIntBE(n uint64, width int) string {
	if width <= 0 {
		return ""
	}
	if width < 8 {
		n &= uint64(1)<<(8*uint(width)) - 1
	}
	text := strings.ToUpper(strconv.FormatUint(n, 16))
	if pad := 2*width - len(text); pad > 0 {
		text = strings.Repeat("0", pad) + text
	}
	return text
}

// DecodeIntBE parses big-endian hex text of at most 8 bytes.
func DecodeIntBE(text string) (uint64, error) {
	if text == "" {
		return 0, nil
	}
	return strconv.ParseUint(text, 16, 64)
}

// Field reads a width-byte big-endian field that starts at a character offset
// of text. Absent, short or malformed fields read as 0.
func Field(text string, offset, width int) uint64 {
	end := offset + 2*width
	if offset < 0 || width <= 0 || end > len(text) {
		return 0
	}
	v, err := DecodeIntBE(text[offset:end])
	if err != nil {
		return 0
	}
	return v
}
