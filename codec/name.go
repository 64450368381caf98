package codec

const (
	// FallbackName replaces a name with no usable characters.
	FallbackName = "file.mp3"

	// DefaultNameLength is the longest name the remote filesystem accepts.
	DefaultNameLength = 31
)

// SanitizeASCIIName keeps only [A-Za-z0-9_.-], truncates to maxLen characters and
// substitutes FallbackName when nothing survives. The fallback is itself cut to
// maxLen so the result never exceeds it.
func SanitizeASCIIName(name string, maxLen int) string {
	if maxLen <= 0 {
		return ""
	}
	out := make([]byte, 0, len(name))
	for i := 0; i < len(name) && len(out) < maxLen; i++ {
		if isNameByte(name[i]) {
			out = append(out, name[i])
		}
	}
	if len(out) == 0 {
		if maxLen < len(FallbackName) {
			return FallbackName[:maxLen]
		}
		return FallbackName
	}
	return string(out)
}

func isNameByte(c byte) bool {
	switch {
	case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z', c >= '0' && c <= '9':
		return true
	case c == '_', c == '.', c == '-':
		return true
	}
	return false
}
