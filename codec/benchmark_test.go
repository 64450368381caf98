package codec

import "testing"

func BenchmarkEncodeHex4K(b *testing.B) {
	data := make([]byte, 4096)
	for i := range data {
		data[i] = byte(i)
	}
	b.SetBytes(int64(len(data)))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = EncodeHex(data)
	}
}

func BenchmarkEncodeUTF16LENull(b *testing.B) {
	for i := 0; i < b.N; i++ {
		_ = EncodeUTF16LENull("Spooky Skeleton Song \U0001F480.mp3")
	}
}
