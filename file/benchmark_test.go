package file

import (
	"context"
	"testing"
)

func BenchmarkPlanChunks(b *testing.B) {
	cfg := DefaultPlannerConfig()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = PlanChunks(testSizeLarge, cfg)
	}
}

func BenchmarkSession_Run64KB(b *testing.B) {
	data := testPayload(64 * 1024)
	opts := testOptions()

	b.SetBytes(int64(len(data)))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		ch := newMockChannel(okScript())
		session, err := newTestSession(ch, data, testFileName, opts)
		if err != nil {
			b.Fatal(err)
		}
		if err := session.Run(context.Background()); err != nil {
			b.Fatal(err)
		}
	}
}
