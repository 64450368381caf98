package codec

import (
	"errors"
	"unicode/utf16"
)

// ErrMissingTerminator indicates UTF-16 text without its two-byte null terminator.
var ErrMissingTerminator = errors.New("utf-16 text is not null terminated")

// EncodeUTF16LENull encodes text as UTF-16 little-endian code units followed by a
// two-byte null terminator, rendered as uppercase hex. Code points above U+FFFF
// become surrogate pairs; each surrogate is serialized little-endian.
func EncodeUTF16LENull(text string) string {
	units := utf16.Encode([]rune(text))
	buf := make([]byte, 0, 2*len(units)+2)
	for _, u := range units {
		buf = append(buf, byte(u), byte(u>>8))
	}
	buf = append(buf, 0, 0)
	return EncodeHex(buf)
}

// DecodeUTF16LENull reverses EncodeUTF16LENull. Anything after the first null
// code unit is ignored.
func DecodeUTF16LENull(text string) (string, error) {
	raw, err := DecodeHex(text)
	if err != nil {
		return "", err
	}
	units := make([]uint16, 0, len(raw)/2)
	for i := 0; i+1 < len(raw); i += 2 {
		u := uint16(raw[i]) | uint16(raw[i+1])<<8
		if u == 0 {
			return string(utf16.Decode(units)), nil
		}
		units = append(units, u)
	}
	return "", ErrMissingTerminator
}
